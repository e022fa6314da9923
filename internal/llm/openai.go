package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"condense/internal/core"
)

// openAICompatible talks the OpenAI chat-completions wire format. It
// serves OpenAI itself plus xAI, DeepSeek, self-hosted (Ollama,
// LM Studio) and any unknown endpoint that speaks the same protocol.
type openAICompatible struct {
	id         string
	name       string
	cfg        core.ProviderConfig
	endpoint   string
	isOpenAI   bool
	httpClient *http.Client
}

func newOpenAICompatible(cfg core.ProviderConfig, name string, endpoint string) *openAICompatible {
	if name == "" {
		name = cfg.ProviderID
	}
	return &openAICompatible{
		id:         cfg.ProviderID,
		name:       name,
		cfg:        cfg,
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		isOpenAI:   cfg.ProviderID == ProviderOpenAI,
		httpClient: newHTTPClient(),
	}
}

func (p *openAICompatible) ID() string   { return p.id }
func (p *openAICompatible) Name() string { return p.name }

// SupportsSchema: OpenAI enforces json_schema response_format natively;
// the other compatible backends only offer best-effort JSON mode.
func (p *openAICompatible) SupportsSchema() bool { return p.isOpenAI }

// tokenLimitParam picks the token-limit field name. OpenAI's newer model
// families reject max_tokens and require max_completion_tokens.
func (p *openAICompatible) tokenLimitParam() string {
	if p.isOpenAI {
		return "max_completion_tokens"
	}
	return "max_tokens"
}

func (p *openAICompatible) buildBody(messages []core.ChatMessage, opts ChatOptions, stream bool) map[string]any {
	wireMessages := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		if len(m.Images) == 0 {
			wireMessages = append(wireMessages, map[string]any{"role": m.Role, "content": m.Content})
			continue
		}
		// Multi-part content: text plus inline base64 data URIs.
		parts := []map[string]any{{"type": "text", "text": m.Content}}
		for _, img := range m.Images {
			parts = append(parts, map[string]any{
				"type": "image_url",
				"image_url": map[string]any{
					"url": fmt.Sprintf("data:%s;base64,%s", img.MIMEType, img.Base64),
				},
			})
		}
		wireMessages = append(wireMessages, map[string]any{"role": m.Role, "content": parts})
	}

	body := map[string]any{
		"model":             p.cfg.Model,
		"messages":          wireMessages,
		"temperature":       opts.temperature(),
		p.tokenLimitParam(): opts.maxTokens(),
		"stream":            stream,
	}

	switch {
	case opts.Schema != nil && p.SupportsSchema():
		body["response_format"] = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   opts.Schema.Name,
				"schema": opts.Schema.Root.asJSONSchema(),
			},
		}
	case opts.JSONMode || opts.Schema != nil:
		body["response_format"] = map[string]any{"type": "json_object"}
	}

	return body
}

func (p *openAICompatible) doRequest(ctx context.Context, body map[string]any, opts ChatOptions) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	if opts.OnRequestBody != nil {
		opts.OnRequestBody(string(payload))
	}

	url := p.endpoint + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		// Surface cancellation distinctly rather than as a wrapped URL error.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	return resp, nil
}

func (p *openAICompatible) SendChat(ctx context.Context, messages []core.ChatMessage, opts ChatOptions) (string, error) {
	resp, err := p.doRequest(ctx, p.buildBody(messages, opts, false), opts)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if opts.OnResponseBody != nil {
		opts.OnResponseBody(string(raw))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return parsed.Choices[0].Message.Content, nil
}

// StreamChat consumes the line-delimited SSE stream, yielding each
// incremental fragment. Malformed data lines are skipped, never fatal.
func (p *openAICompatible) StreamChat(ctx context.Context, messages []core.ChatMessage, opts ChatOptions, yield StreamFunc) error {
	resp, err := p.doRequest(ctx, p.buildBody(messages, opts, true), opts)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return nil
		}

		var frame struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(data), &frame); err != nil {
			continue
		}
		if len(frame.Choices) == 0 || frame.Choices[0].Delta.Content == "" {
			continue
		}
		if err := yield(frame.Choices[0].Delta.Content); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("stream read failed: %w", err)
	}
	return nil
}
