package summarize

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"condense/internal/core"
)

// The model references attachments by opaque tokens instead of real
// URLs: {{IMG_n}} for attached images, {{FILE_n}} for source files from
// a code page's file map, {{VIDEO_URL}} for a video's canonical URL.

var (
	fileMapRe   = regexp.MustCompile(`<!-- FILE_MAP: ({.*?}) -->`)
	videoTimeRe = regexp.MustCompile(`[&?]t=\d+s?`)
)

// Placeholder pairs a token with its replacement value.
type Placeholder struct {
	Token string
	Value string
}

// BuildPlaceholders collects every token the model may have used for
// this content: one per listed image, the cleaned video URL for video
// content, and one per file-map entry for code-hosting content.
func BuildPlaceholders(content *core.ExtractedContent, images []ImageRef) []Placeholder {
	var placeholders []Placeholder

	for i, img := range images {
		placeholders = append(placeholders, Placeholder{
			Token: fmt.Sprintf("{{IMG_%d}}", i+1),
			Value: img.URL,
		})
	}

	if content.Type == core.ContentYouTube {
		// Strip any timestamp fragment so the model's &t=SECONDS links
		// compose cleanly.
		placeholders = append(placeholders, Placeholder{
			Token: "{{VIDEO_URL}}",
			Value: videoTimeRe.ReplaceAllString(content.URL, ""),
		})
	}

	if content.Type == core.ContentGitHub {
		if match := fileMapRe.FindStringSubmatch(content.Content); match != nil {
			var fileMap map[string]string
			if err := json.Unmarshal([]byte(match[1]), &fileMap); err == nil {
				for n, url := range fileMap {
					placeholders = append(placeholders, Placeholder{
						Token: fmt.Sprintf("{{FILE_%s}}", n),
						Value: url,
					})
				}
			}
		}
	}

	return placeholders
}

// ReplacePlaceholders substitutes every known token in every free-text
// field of the document, including nested extra-section titles and
// bodies. Idempotent: once substituted, no token remains to match.
func ReplacePlaceholders(doc *core.SummaryDocument, placeholders []Placeholder) {
	if len(placeholders) == 0 {
		return
	}

	r := func(s string) string {
		for _, p := range placeholders {
			s = strings.ReplaceAll(s, p.Token, p.Value)
		}
		return s
	}
	ra := func(items []string) {
		for i := range items {
			items[i] = r(items[i])
		}
	}

	doc.TLDR = r(doc.TLDR)
	doc.Summary = r(doc.Summary)
	doc.Conclusion = r(doc.Conclusion)
	doc.FactCheck = r(doc.FactCheck)
	ra(doc.KeyTakeaways)
	ra(doc.NotableQuotes)
	ra(doc.RelatedTopics)
	ra(doc.CommentsHighlights)
	if doc.ProsAndCons != nil {
		ra(doc.ProsAndCons.Pros)
		ra(doc.ProsAndCons.Cons)
	}
	if len(doc.ExtraSections) > 0 {
		replaced := make(map[string]string, len(doc.ExtraSections))
		for title, body := range doc.ExtraSections {
			replaced[r(title)] = r(body)
		}
		doc.ExtraSections = replaced
	}
}
