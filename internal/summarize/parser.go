package summarize

import (
	"regexp"
	"strings"

	"condense/internal/core"
	"condense/internal/jsonrepair"
)

var (
	fenceOpenRe  = regexp.MustCompile("^```(?:json)?\\s*\n?")
	fenceCloseRe = regexp.MustCompile("\n?```\\s*$")
)

// ParseSummaryResponse turns raw model output into a SummaryDocument or
// one of the typed signals. imageAnalysisEnabled gates whether a
// requestedImages value raises ImageRequestError; on the image-retry
// pass it is disabled so a second request is ignored.
func ParseSummaryResponse(response string, imageAnalysisEnabled bool) (*core.SummaryDocument, error) {
	cleaned := strings.TrimSpace(response)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = fenceOpenRe.ReplaceAllString(cleaned, "")
		cleaned = fenceCloseRe.ReplaceAllString(cleaned, "")
	}

	parsed, ok := jsonrepair.ParseObject(cleaned)

	// Full-text parse failed: try the JSON object embedded in prose.
	if !ok {
		if braceIdx := strings.Index(cleaned, "{"); braceIdx >= 0 {
			if braceEnd := jsonrepair.FindMatchingBrace(cleaned, braceIdx); braceEnd != -1 {
				parsed, ok = jsonrepair.ParseObject(cleaned[braceIdx : braceEnd+1])
			}
		}
	}

	if !ok {
		// Prose instead of JSON: surface it as a chat message, not a
		// broken summary.
		return nil, &TextResponseError{Response: cleaned}
	}

	// Some models stringify the nested summary object; parse it in place.
	if inner, isStr := parsed["summary"].(string); isStr && strings.HasPrefix(strings.TrimSpace(inner), "{") {
		if innerObj, innerOK := jsonrepair.ParseObject(inner); innerOK {
			parsed["summary"] = innerObj
		}
	}

	summaryObj, summaryIsObj := parsed["summary"].(map[string]any)
	_, hasText := parsed["text"]
	isEnvelope := hasText || (summaryIsObj && isString(summaryObj["tldr"]))
	_, isFlat := parsed["tldr"].(string)

	switch {
	case isEnvelope:
		text, _ := parsed["text"].(string)

		if truthy(parsed["noContent"]) {
			return nil, &NoContentError{Reason: orDefault(text, "No meaningful content found on this page.")}
		}
		if imageAnalysisEnabled {
			if urls := stringList(parsed["requestedImages"]); len(urls) > 0 {
				return nil, &ImageRequestError{RequestedImages: urls}
			}
		}
		if !summaryIsObj {
			// Envelope without a summary: the model chose to chat.
			return nil, &TextResponseError{Response: orDefault(text, "OK, feel free to ask questions about the content.")}
		}
		return extractSummaryFields(summaryObj), nil

	case isFlat:
		// Legacy flat shape: the model ignored the envelope instruction.
		if truthy(parsed["noSummary"]) {
			msg, _ := parsed["message"].(string)
			return nil, &TextResponseError{Response: orDefault(msg, "OK, feel free to ask questions about the content.")}
		}
		if truthy(parsed["noContent"]) {
			reason, _ := parsed["reason"].(string)
			return nil, &NoContentError{Reason: orDefault(reason, "No meaningful content found on this page.")}
		}
		if imageAnalysisEnabled {
			if urls := stringList(parsed["requestedImages"]); len(urls) > 0 {
				return nil, &ImageRequestError{RequestedImages: urls}
			}
		}
		return extractSummaryFields(parsed), nil

	default:
		// noContent can arrive bare, outside either shape.
		if truthy(parsed["noContent"]) {
			reason, _ := parsed["reason"].(string)
			return nil, &NoContentError{Reason: orDefault(reason, "No meaningful content found on this page.")}
		}
		return nil, &TextResponseError{Response: cleaned}
	}
}

// extractSummaryFields maps the parsed object onto a SummaryDocument,
// coercing absent or mistyped list fields to empty.
func extractSummaryFields(parsed map[string]any) *core.SummaryDocument {
	doc := &core.SummaryDocument{
		TLDR:               stringField(parsed, "tldr"),
		KeyTakeaways:       stringList(parsed["keyTakeaways"]),
		Summary:            stringField(parsed, "summary"),
		NotableQuotes:      stringList(parsed["notableQuotes"]),
		Conclusion:         stringField(parsed, "conclusion"),
		FactCheck:          stringField(parsed, "factCheck"),
		CommentsHighlights: stringList(parsed["commentsHighlights"]),
		ExtraSections:      coerceExtraSections(parsed["extraSections"]),
		RelatedTopics:      stringList(parsed["relatedTopics"]),
		Tags:               stringList(parsed["tags"]),
		SourceLanguage:     stringField(parsed, "sourceLanguage"),
		SummaryLanguage:    stringField(parsed, "summaryLanguage"),
		TranslatedTitle:    stringField(parsed, "translatedTitle"),
		InferredTitle:      stringField(parsed, "inferredTitle"),
		InferredAuthor:     stringField(parsed, "inferredAuthor"),
		InferredDate:       stringField(parsed, "inferredPublishDate"),
	}

	if pc, ok := parsed["prosAndCons"].(map[string]any); ok {
		doc.ProsAndCons = &core.ProsAndCons{
			Pros: stringList(pc["pros"]),
			Cons: stringList(pc["cons"]),
		}
	}

	doc.EnsureDefaults()
	return doc
}

// coerceExtraSections accepts either the map shape or the schema's
// array-of-{title, content} shape and returns the map.
func coerceExtraSections(v any) map[string]string {
	sections := map[string]string{}
	switch typed := v.(type) {
	case map[string]any:
		for title, content := range typed {
			if s, ok := content.(string); ok {
				sections[title] = s
			}
		}
	case []any:
		for _, item := range typed {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			title, _ := entry["title"].(string)
			content, _ := entry["content"].(string)
			if title != "" && content != "" {
				sections[title] = content
			}
		}
	}
	return sections
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

func truthy(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

func orDefault(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

func stringField(parsed map[string]any, key string) string {
	s, _ := parsed[key].(string)
	return s
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
