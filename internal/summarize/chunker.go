package summarize

import (
	"math"
	"strings"
	"unicode/utf8"
)

// Token-budget headroom per chunk. The system prompt plus metadata eats
// into the window, and the model needs room to answer.
const (
	promptOverheadTokens = 2048
	outputReserveTokens  = 8192
	minChunkTokens       = 1024
)

// EstimateTokens gives a rough token count for text. A token averages
// about 3.5 characters across the mixed prose and markdown this
// pipeline sees.
func EstimateTokens(text string) int {
	charCount := utf8.RuneCountInString(strings.TrimSpace(text))
	return int(math.Ceil(float64(charCount) / 3.5))
}

// SplitIntoChunks splits text into ordered chunks that each fit the
// context window after prompt overhead and output reserve are
// subtracted. Splits happen at paragraph boundaries; a single paragraph
// larger than the budget is hard-split at rune boundaries. Concatenating
// the returned chunks reproduces the input exactly.
func SplitIntoChunks(text string, contextWindow int) []string {
	budget := contextWindow - promptOverheadTokens - outputReserveTokens
	if budget < minChunkTokens {
		budget = minChunkTokens
	}

	if EstimateTokens(text) <= budget {
		return []string{text}
	}

	maxChars := int(float64(budget) * 3.5)
	paragraphs := splitParagraphs(text)

	var chunks []string
	var current strings.Builder
	currentRunes := 0

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentRunes = 0
		}
	}

	for _, para := range paragraphs {
		paraRunes := utf8.RuneCountInString(para)

		if currentRunes > 0 && currentRunes+paraRunes > maxChars {
			flush()
		}

		if paraRunes > maxChars {
			// Oversized paragraph: hard-split at rune boundaries.
			flush()
			chunks = append(chunks, hardSplit(para, maxChars)...)
			continue
		}

		current.WriteString(para)
		currentRunes += paraRunes
	}
	flush()

	if len(chunks) == 0 {
		return []string{text}
	}
	return chunks
}

// splitParagraphs cuts text at blank lines, keeping each separator
// attached to the paragraph it follows so concatenation is lossless.
func splitParagraphs(text string) []string {
	var paragraphs []string
	rest := text
	for {
		idx := strings.Index(rest, "\n\n")
		if idx == -1 {
			if rest != "" {
				paragraphs = append(paragraphs, rest)
			}
			return paragraphs
		}
		end := idx + 2
		for end < len(rest) && rest[end] == '\n' {
			end++
		}
		paragraphs = append(paragraphs, rest[:end])
		rest = rest[end:]
	}
}

// hardSplit cuts s into pieces of at most maxRunes runes, never inside a
// multi-byte character.
func hardSplit(s string, maxRunes int) []string {
	var pieces []string
	runes := []rune(s)
	for len(runes) > 0 {
		n := maxRunes
		if n > len(runes) {
			n = len(runes)
		}
		pieces = append(pieces, string(runes[:n]))
		runes = runes[n:]
	}
	return pieces
}
