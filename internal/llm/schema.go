package llm

import "google.golang.org/genai"

// SchemaField is a backend-neutral JSON-schema node. Adapters convert it
// to whatever their wire format wants.
type SchemaField struct {
	Type        string // "object", "array", "string", "boolean", "integer", "number"
	Description string
	Nullable    bool
	Items       *SchemaField
	Properties  map[string]*SchemaField
	Required    []string
}

// ResponseSchema names a schema for providers that enforce output shape
// natively.
type ResponseSchema struct {
	Name string
	Root *SchemaField
}

// SummaryResponseSchema describes the envelope the summarizer expects:
// a conversational text, a nested summary object, and the no-content /
// image-request signals.
func SummaryResponseSchema() *ResponseSchema {
	str := func(desc string) *SchemaField {
		return &SchemaField{Type: "string", Description: desc}
	}
	nullableStr := func(desc string) *SchemaField {
		return &SchemaField{Type: "string", Description: desc, Nullable: true}
	}
	strList := func(desc string) *SchemaField {
		return &SchemaField{Type: "array", Description: desc, Items: &SchemaField{Type: "string"}}
	}

	summary := &SchemaField{
		Type: "object",
		Properties: map[string]*SchemaField{
			"tldr":          str("Concise 2-4 sentence overview of the entire content."),
			"keyTakeaways":  strList("Key points, each starting with a bold label."),
			"summary":       str("Detailed, comprehensive summary in markdown."),
			"notableQuotes": strList("Direct quotes from the text; empty if none."),
			"conclusion":    str("Main conclusion or final thoughts."),
			"prosAndCons": {
				Type:     "object",
				Nullable: true,
				Properties: map[string]*SchemaField{
					"pros": strList("Pros."),
					"cons": strList("Cons."),
				},
				Required: []string{"pros", "cons"},
			},
			"factCheck":          nullableStr("Critical analysis of factual accuracy, or null."),
			"commentsHighlights": {Type: "array", Nullable: true, Items: &SchemaField{Type: "string"}, Description: "Notable comments, or null."},
			"extraSections": {
				Type:        "array",
				Nullable:    true,
				Description: "Supplementary sections, or null.",
				Items: &SchemaField{
					Type: "object",
					Properties: map[string]*SchemaField{
						"title":   str("Section title."),
						"content": str("Section markdown body."),
					},
					Required: []string{"title", "content"},
				},
			},
			"relatedTopics":       strList("3-5 related topics."),
			"tags":                strList("3-7 short lowercase tags."),
			"sourceLanguage":      str("ISO 639-1 code of the source content language."),
			"summaryLanguage":     str("ISO 639-1 code of the language the summary is written in."),
			"translatedTitle":     nullableStr("Title translated to the summary language, or null."),
			"inferredTitle":       nullableStr("Inferred title when metadata was missing, or null."),
			"inferredAuthor":      nullableStr("Inferred author when metadata was missing, or null."),
			"inferredPublishDate": nullableStr("Inferred publish date (YYYY-MM-DD), or null."),
		},
		Required: []string{"tldr", "keyTakeaways", "summary", "conclusion", "relatedTopics", "tags", "sourceLanguage", "summaryLanguage"},
	}

	return &ResponseSchema{
		Name: "summary_response",
		Root: &SchemaField{
			Type: "object",
			Properties: map[string]*SchemaField{
				"text":            nullableStr("Conversational response when not summarizing, or null."),
				"summary":         summary,
				"noContent":       {Type: "boolean", Nullable: true, Description: "True when the page has no summarizable content."},
				"requestedImages": {Type: "array", Nullable: true, Items: &SchemaField{Type: "string"}, Description: "Image URLs to fetch and re-run with (max 3), or null."},
			},
			Required: []string{"summary"},
		},
	}
}

// asJSONSchema renders the field as a plain JSON-schema map for
// OpenAI-style response_format payloads.
func (f *SchemaField) asJSONSchema() map[string]any {
	m := map[string]any{}
	if f.Nullable {
		m["type"] = []string{f.Type, "null"}
	} else {
		m["type"] = f.Type
	}
	if f.Description != "" {
		m["description"] = f.Description
	}
	if f.Items != nil {
		m["items"] = f.Items.asJSONSchema()
	}
	if f.Properties != nil {
		props := map[string]any{}
		for name, p := range f.Properties {
			props[name] = p.asJSONSchema()
		}
		m["properties"] = props
		if len(f.Required) > 0 {
			m["required"] = f.Required
		}
	}
	return m
}

// asGenaiSchema renders the field for the Gemini SDK's ResponseSchema.
func (f *SchemaField) asGenaiSchema() *genai.Schema {
	s := &genai.Schema{
		Description: f.Description,
		Nullable:    genai.Ptr(f.Nullable),
	}
	switch f.Type {
	case "object":
		s.Type = genai.TypeObject
	case "array":
		s.Type = genai.TypeArray
	case "boolean":
		s.Type = genai.TypeBoolean
	case "integer":
		s.Type = genai.TypeInteger
	case "number":
		s.Type = genai.TypeNumber
	default:
		s.Type = genai.TypeString
	}
	if f.Items != nil {
		s.Items = f.Items.asGenaiSchema()
	}
	if f.Properties != nil {
		s.Properties = map[string]*genai.Schema{}
		for name, p := range f.Properties {
			s.Properties[name] = p.asGenaiSchema()
		}
		s.Required = f.Required
	}
	return s
}
