package speech

import (
	"regexp"
	"strings"
)

var sentenceRegexp = regexp.MustCompile(`[^.!?]+[.!?]+`)

// SplitText breaks text into chunks that each stay at or under maxBytes,
// cutting only on sentence boundaries. A single sentence longer than the
// ceiling becomes its own oversized chunk rather than being cut mid-word.
func SplitText(text string, maxBytes int) []string {
	sentences := sentenceRegexp.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{text}
	}

	var chunks []string
	current := ""
	for _, sentence := range sentences {
		test := current + sentence
		if len(test) > maxBytes && current != "" {
			chunks = append(chunks, strings.TrimSpace(current))
			current = sentence
		} else {
			current = test
		}
	}
	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}
	return chunks
}
