package domain

import (
	"strings"
)

// NormalizeText prepares text for comparison:
//   - trims leading/trailing whitespace
//   - converts to lowercase
//   - compresses multiple spaces into one
//
// Diacritics, hyphens, and apostrophes are preserved.
func NormalizeText(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// TrimSentence removes surrounding whitespace and any trailing periods.
// Question and exclamation marks are kept.
func TrimSentence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, ".")
	return strings.TrimSpace(s)
}
