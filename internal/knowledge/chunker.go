package knowledge

import "strings"

// Split cuts text into chunks of at most size words. Consecutive chunks share
// overlap words. Whitespace is collapsed to single spaces.
func Split(text string, size, overlap int) []string {
	words := strings.Fields(text)
	if len(words) == 0 || size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	step := size - overlap
	var chunks []string
	for start := 0; start < len(words); start += step {
		end := min(start+size, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}
