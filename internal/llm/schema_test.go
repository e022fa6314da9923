package llm

import (
	"testing"

	"google.golang.org/genai"
)

func TestSummaryResponseSchemaShape(t *testing.T) {
	schema := SummaryResponseSchema()
	if schema.Name != "summary_response" {
		t.Errorf("unexpected schema name %q", schema.Name)
	}

	root := schema.Root
	for _, key := range []string{"text", "summary", "noContent", "requestedImages"} {
		if root.Properties[key] == nil {
			t.Errorf("root schema missing %q", key)
		}
	}

	summary := root.Properties["summary"]
	for _, key := range []string{"tldr", "keyTakeaways", "summary", "conclusion", "extraSections", "relatedTopics", "tags", "sourceLanguage", "summaryLanguage"} {
		if summary.Properties[key] == nil {
			t.Errorf("summary schema missing %q", key)
		}
	}

	// extraSections travels as an array of {title, content} pairs; the
	// parser folds it back into a map.
	extra := summary.Properties["extraSections"]
	if extra.Type != "array" || extra.Items == nil || extra.Items.Properties["title"] == nil {
		t.Error("extraSections should be an array of title/content objects")
	}
}

func TestAsJSONSchemaNullable(t *testing.T) {
	f := &SchemaField{Type: "string", Nullable: true, Description: "maybe"}
	m := f.asJSONSchema()

	types, ok := m["type"].([]string)
	if !ok || len(types) != 2 || types[0] != "string" || types[1] != "null" {
		t.Errorf("expected [string null] type, got %v", m["type"])
	}
	if m["description"] != "maybe" {
		t.Errorf("expected description to carry through, got %v", m["description"])
	}

	plain := (&SchemaField{Type: "boolean"}).asJSONSchema()
	if plain["type"] != "boolean" {
		t.Errorf("non-nullable field should keep a scalar type, got %v", plain["type"])
	}
}

func TestAsJSONSchemaNesting(t *testing.T) {
	f := &SchemaField{
		Type: "object",
		Properties: map[string]*SchemaField{
			"items": {Type: "array", Items: &SchemaField{Type: "string"}},
		},
		Required: []string{"items"},
	}
	m := f.asJSONSchema()

	props := m["properties"].(map[string]any)
	items := props["items"].(map[string]any)
	if items["type"] != "array" {
		t.Errorf("expected array type, got %v", items["type"])
	}
	inner := items["items"].(map[string]any)
	if inner["type"] != "string" {
		t.Errorf("expected string items, got %v", inner["type"])
	}
	required := m["required"].([]string)
	if len(required) != 1 || required[0] != "items" {
		t.Errorf("expected required [items], got %v", required)
	}
}

func TestAsGenaiSchema(t *testing.T) {
	f := &SchemaField{
		Type:     "object",
		Nullable: true,
		Properties: map[string]*SchemaField{
			"count": {Type: "integer"},
			"names": {Type: "array", Items: &SchemaField{Type: "string"}},
		},
		Required: []string{"count"},
	}
	s := f.asGenaiSchema()

	if s.Type != genai.TypeObject {
		t.Errorf("expected object type, got %v", s.Type)
	}
	if s.Nullable == nil || !*s.Nullable {
		t.Error("expected nullable to carry through")
	}
	if s.Properties["count"].Type != genai.TypeInteger {
		t.Errorf("expected integer type, got %v", s.Properties["count"].Type)
	}
	if s.Properties["names"].Items.Type != genai.TypeString {
		t.Errorf("expected string items, got %v", s.Properties["names"].Items.Type)
	}
	if len(s.Required) != 1 || s.Required[0] != "count" {
		t.Errorf("expected required [count], got %v", s.Required)
	}
}
