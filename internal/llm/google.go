package llm

import (
	"context"
	"encoding/base64"
	"fmt"

	"google.golang.org/genai"

	"condense/internal/core"
)

// googleProvider adapts the Gemini API through the official SDK. Gemini
// enforces response schemas natively via ResponseSchema, so parse-side
// repair is rarely needed here.
type googleProvider struct {
	cfg core.ProviderConfig
}

func newGoogleProvider(cfg core.ProviderConfig) *googleProvider {
	return &googleProvider{cfg: cfg}
}

func (p *googleProvider) ID() string           { return ProviderGoogle }
func (p *googleProvider) Name() string         { return "Google Gemini" }
func (p *googleProvider) SupportsSchema() bool { return true }

func (p *googleProvider) newClient(ctx context.Context) (*genai.Client, error) {
	config := &genai.ClientConfig{
		APIKey:  p.cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if p.cfg.Endpoint != "" {
		config.HTTPOptions = genai.HTTPOptions{BaseURL: p.cfg.Endpoint}
	}
	client, err := genai.NewClient(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return client, nil
}

func (p *googleProvider) buildRequest(messages []core.ChatMessage, opts ChatOptions) ([]*genai.Content, *genai.GenerateContentConfig) {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(opts.temperature())),
		MaxOutputTokens: int32(opts.maxTokens()),
	}
	if opts.Schema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = opts.Schema.Root.asGenaiSchema()
	} else if opts.JSONMode {
		config.ResponseMIMEType = "application/json"
	}

	var contents []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case core.RoleSystem:
			config.SystemInstruction = genai.NewContentFromText(m.Content, genai.RoleUser)
		case core.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			parts := []*genai.Part{genai.NewPartFromText(m.Content)}
			for _, img := range m.Images {
				data, err := base64.StdEncoding.DecodeString(img.Base64)
				if err != nil {
					continue
				}
				parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: img.MIMEType, Data: data}})
			}
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: parts})
		}
	}

	return contents, config
}

func (p *googleProvider) SendChat(ctx context.Context, messages []core.ChatMessage, opts ChatOptions) (string, error) {
	client, err := p.newClient(ctx)
	if err != nil {
		return "", err
	}

	contents, config := p.buildRequest(messages, opts)
	resp, err := client.Models.GenerateContent(ctx, p.cfg.Model, contents, config)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("gemini API error: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from gemini")
	}
	return text, nil
}

func (p *googleProvider) StreamChat(ctx context.Context, messages []core.ChatMessage, opts ChatOptions, yield StreamFunc) error {
	client, err := p.newClient(ctx)
	if err != nil {
		return err
	}

	contents, config := p.buildRequest(messages, opts)
	for resp, err := range client.Models.GenerateContentStream(ctx, p.cfg.Model, contents, config) {
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("gemini stream error: %w", err)
		}
		if text := resp.Text(); text != "" {
			if err := yield(text); err != nil {
				return err
			}
		}
	}
	return nil
}
