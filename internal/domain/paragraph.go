package domain

import (
	"fmt"
	"strings"
)

// SentenceCount is the number of sentences every learning paragraph carries.
const SentenceCount = 5

// Level is the learner proficiency a paragraph is written for.
// It is advisory: unknown values are kept as returned by the model.
type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

func (l Level) String() string { return string(l) }

func (l Level) IsValid() bool {
	switch l {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
		return true
	}
	return false
}

// VocabularyEntry is a Dutch word with its English translation.
type VocabularyEntry struct {
	Dutch   string `json:"dutch"   jsonschema_description:"Dutch word"`
	English string `json:"english" jsonschema_description:"English translation"`
}

// LearningParagraph is the structured result of one generation run.
// DutchSentences[i] corresponds to EnglishTranslations[i].
type LearningParagraph struct {
	DutchSentences      []string          `json:"dutch_sentences"      jsonschema_description:"Exactly 5 Dutch sentences forming a coherent paragraph about the requested topic."`
	EnglishTranslations []string          `json:"english_translations" jsonschema_description:"English translations of the 5 Dutch sentences, in the same order."`
	Topic               string            `json:"topic"                jsonschema_description:"The topic of the Dutch paragraph."`
	Level               Level             `json:"level"                jsonschema_description:"The Dutch proficiency level for which this content is intended."`
	Vocabulary          []VocabularyEntry `json:"vocabulary"           jsonschema_description:"List of key vocabulary words used in the Dutch sentences with their English translations."`
}

// Normalize trims whitespace and trailing sentence punctuation and lowercases
// the level. Formatting adds the periods back.
func (p *LearningParagraph) Normalize() {
	for i, s := range p.DutchSentences {
		p.DutchSentences[i] = TrimSentence(s)
	}
	for i, s := range p.EnglishTranslations {
		p.EnglishTranslations[i] = TrimSentence(s)
	}
	p.Topic = strings.TrimSpace(p.Topic)
	p.Level = Level(NormalizeText(string(p.Level)))
	for i := range p.Vocabulary {
		p.Vocabulary[i].Dutch = strings.TrimSpace(p.Vocabulary[i].Dutch)
		p.Vocabulary[i].English = strings.TrimSpace(p.Vocabulary[i].English)
	}
}

// Validate checks the shape contract: five sentences, five aligned
// translations, a topic and complete vocabulary pairs. All violations are
// collected into a single *SchemaViolationError.
func (p *LearningParagraph) Validate() error {
	var v []FieldError

	if n := len(p.DutchSentences); n != SentenceCount {
		v = append(v, FieldError{Field: "dutch_sentences", Message: fmt.Sprintf("want %d, got %d", SentenceCount, n)})
	}
	if n := len(p.EnglishTranslations); n != SentenceCount {
		v = append(v, FieldError{Field: "english_translations", Message: fmt.Sprintf("want %d, got %d", SentenceCount, n)})
	}
	for i, s := range p.DutchSentences {
		if strings.TrimSpace(s) == "" {
			v = append(v, FieldError{Field: fmt.Sprintf("dutch_sentences[%d]", i), Message: "empty"})
		}
	}
	for i, s := range p.EnglishTranslations {
		if strings.TrimSpace(s) == "" {
			v = append(v, FieldError{Field: fmt.Sprintf("english_translations[%d]", i), Message: "empty"})
		}
	}
	if strings.TrimSpace(p.Topic) == "" {
		v = append(v, FieldError{Field: "topic", Message: "empty"})
	}
	for i, w := range p.Vocabulary {
		if strings.TrimSpace(w.Dutch) == "" || strings.TrimSpace(w.English) == "" {
			v = append(v, FieldError{Field: fmt.Sprintf("vocabulary[%d]", i), Message: "incomplete pair"})
		}
	}

	if len(v) > 0 {
		return &SchemaViolationError{Violations: v}
	}
	return nil
}
