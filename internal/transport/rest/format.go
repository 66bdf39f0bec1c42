package rest

import (
	"strings"

	"github.com/heartmarshall/dutchstory-backend/internal/domain"
)

// FormatText renders a paragraph as the plain-text learning sheet. Sentences
// are stored without final periods; ". " joins them and one "." closes the block.
func FormatText(p *domain.LearningParagraph) string {
	var b strings.Builder

	b.WriteString("**Dutch Paragraph (5 sentences):**\n")
	b.WriteString(strings.Join(p.DutchSentences, ". "))
	b.WriteString(".\n\n")

	b.WriteString("**English Translation:**\n")
	b.WriteString(strings.Join(p.EnglishTranslations, ". "))
	b.WriteString(".\n\n")

	b.WriteString("**Key Vocabulary:**\n")
	for _, v := range p.Vocabulary {
		b.WriteString(v.Dutch)
		b.WriteString(": ")
		b.WriteString(v.English)
		b.WriteByte('\n')
	}

	return b.String()
}
