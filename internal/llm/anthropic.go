package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"condense/internal/core"
)

// anthropicProvider adapts the Anthropic Messages API. The system prompt
// travels out-of-band, images ride as base64 blocks, and streaming
// arrives as typed delta events instead of raw SSE lines.
type anthropicProvider struct {
	cfg    core.ProviderConfig
	client anthropic.Client
}

func newAnthropicProvider(cfg core.ProviderConfig, endpoint string) *anthropicProvider {
	clientOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(endpoint))
	}
	return &anthropicProvider{
		cfg:    cfg,
		client: anthropic.NewClient(clientOpts...),
	}
}

func (p *anthropicProvider) ID() string   { return ProviderAnthropic }
func (p *anthropicProvider) Name() string { return "Anthropic" }

// SupportsSchema: the Messages API has no response_format equivalent, so
// the schema is embedded in the system prompt instead.
func (p *anthropicProvider) SupportsSchema() bool { return false }

func (p *anthropicProvider) buildParams(messages []core.ChatMessage, opts ChatOptions) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.cfg.Model),
		MaxTokens:   int64(opts.maxTokens()),
		Temperature: anthropic.Float(opts.temperature()),
	}

	for _, m := range messages {
		switch m.Role {
		case core.RoleSystem:
			block := anthropic.TextBlockParam{Text: m.Content}
			if m.CacheHint {
				block.CacheControl = anthropic.NewCacheControlEphemeralParam()
			}
			params.System = append(params.System, block)
		case core.RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			blocks := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(m.Content)}
			for _, img := range m.Images {
				blocks = append(blocks, anthropic.NewImageBlockBase64(img.MIMEType, img.Base64))
			}
			params.Messages = append(params.Messages, anthropic.NewUserMessage(blocks...))
		}
	}

	return params
}

func (p *anthropicProvider) SendChat(ctx context.Context, messages []core.ChatMessage, opts ChatOptions) (string, error) {
	resp, err := p.client.Messages.New(ctx, p.buildParams(messages, opts))
	if err != nil {
		return "", p.normalizeError(ctx, err)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("empty response from anthropic")
	}

	var text string
	for _, block := range resp.Content {
		text += block.Text
	}
	return text, nil
}

func (p *anthropicProvider) StreamChat(ctx context.Context, messages []core.ChatMessage, opts ChatOptions, yield StreamFunc) error {
	stream := p.client.Messages.NewStreaming(ctx, p.buildParams(messages, opts))
	for stream.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		event := stream.Current()
		switch variant := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := variant.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
				if err := yield(delta.Text); err != nil {
					return err
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return p.normalizeError(ctx, err)
	}
	return nil
}

// normalizeError maps SDK errors onto the shared APIError shape so the
// retry classifier sees one taxonomy across providers.
func (p *anthropicProvider) normalizeError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return &APIError{StatusCode: apierr.StatusCode, Body: apierr.Error()}
	}
	return fmt.Errorf("anthropic API error: %w", err)
}
