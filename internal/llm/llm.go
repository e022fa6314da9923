// Package llm normalizes heterogeneous chat-completion backends behind
// one Provider interface: authentication, token-limit parameter naming,
// JSON-schema enforcement capability, image attachment encoding, and
// streaming.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"condense/internal/core"
)

// Provider identifiers understood by NewProvider. Unknown identifiers
// fall back to the OpenAI-compatible adapter.
const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderGoogle     = "google"
	ProviderXAI        = "xai"
	ProviderDeepSeek   = "deepseek"
	ProviderSelfHosted = "self-hosted"
)

const (
	defaultTemperature = 0.3
	defaultMaxTokens   = 4096
	requestTimeout     = 5 * time.Minute
)

// ChatOptions tunes a single chat call.
type ChatOptions struct {
	Temperature float64         // 0 means the default of 0.3
	MaxTokens   int             // 0 means the default of 4096
	JSONMode    bool            // best-effort "respond with JSON" flag
	Schema      *ResponseSchema // native schema enforcement; ignored by providers that lack it

	// Debug observers. Receive the raw request/response bodies.
	OnRequestBody  func(body string)
	OnResponseBody func(body string)
}

func (o ChatOptions) temperature() float64 {
	if o.Temperature <= 0 {
		return defaultTemperature
	}
	return o.Temperature
}

func (o ChatOptions) maxTokens() int {
	if o.MaxTokens <= 0 {
		return defaultMaxTokens
	}
	return o.MaxTokens
}

// StreamFunc receives one streamed text fragment. Returning an error
// aborts the stream and propagates the error out of StreamChat.
type StreamFunc func(fragment string) error

// Provider is a uniform client for one chat-completion backend.
// Implementations are resolved once at construction time; no per-call
// provider branching happens above this interface.
type Provider interface {
	ID() string
	Name() string
	// SupportsSchema reports whether the backend enforces a JSON schema
	// natively. When false the schema must be embedded in the prompt.
	SupportsSchema() bool
	SendChat(ctx context.Context, messages []core.ChatMessage, opts ChatOptions) (string, error)
	StreamChat(ctx context.Context, messages []core.ChatMessage, opts ChatOptions, yield StreamFunc) error
}

// Definition describes a known provider's defaults.
type Definition struct {
	ID                   string
	Name                 string
	DefaultEndpoint      string
	DefaultContextWindow int
	APIKeyURL            string
}

// Definitions lists the providers with built-in defaults, in display order.
var Definitions = []Definition{
	{ID: ProviderOpenAI, Name: "OpenAI", DefaultEndpoint: "https://api.openai.com", DefaultContextWindow: 128000, APIKeyURL: "https://platform.openai.com/api-keys"},
	{ID: ProviderAnthropic, Name: "Anthropic", DefaultEndpoint: "https://api.anthropic.com", DefaultContextWindow: 200000, APIKeyURL: "https://console.anthropic.com/settings/keys"},
	{ID: ProviderGoogle, Name: "Google Gemini", DefaultEndpoint: "https://generativelanguage.googleapis.com", DefaultContextWindow: 1000000, APIKeyURL: "https://aistudio.google.com/apikey"},
	{ID: ProviderXAI, Name: "xAI (Grok)", DefaultEndpoint: "https://api.x.ai", DefaultContextWindow: 128000, APIKeyURL: "https://console.x.ai/"},
	{ID: ProviderDeepSeek, Name: "DeepSeek", DefaultEndpoint: "https://api.deepseek.com", DefaultContextWindow: 64000, APIKeyURL: "https://platform.deepseek.com/api_keys"},
	{ID: ProviderSelfHosted, Name: "Self-hosted", DefaultEndpoint: "http://localhost:11434", DefaultContextWindow: 100000},
}

// GetDefinition returns the definition for a provider id, if known.
func GetDefinition(providerID string) (Definition, bool) {
	for _, d := range Definitions {
		if d.ID == providerID {
			return d, true
		}
	}
	return Definition{}, false
}

// NewProvider builds the adapter for the configured backend. Dispatch by
// provider id happens here, once; callers hold only the interface.
func NewProvider(cfg core.ProviderConfig) (Provider, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("provider %q: model is required", cfg.ProviderID)
	}
	if cfg.APIKey == "" && cfg.ProviderID != ProviderSelfHosted {
		return nil, fmt.Errorf("provider %q: API key is required", cfg.ProviderID)
	}

	def, _ := GetDefinition(cfg.ProviderID)
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = def.DefaultEndpoint
	}

	switch cfg.ProviderID {
	case ProviderAnthropic:
		return newAnthropicProvider(cfg, endpoint), nil
	case ProviderGoogle:
		return newGoogleProvider(cfg), nil
	case ProviderOpenAI, ProviderXAI, ProviderDeepSeek, ProviderSelfHosted:
		return newOpenAICompatible(cfg, def.Name, endpoint), nil
	default:
		// Unknown providers are assumed OpenAI-compatible.
		return newOpenAICompatible(cfg, cfg.ProviderID, endpoint), nil
	}
}

// APIError is a non-2xx response from a provider, preserving the raw
// status and body for upstream classification and debugging.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("LLM API error (%d): %s", e.StatusCode, e.Body)
}

var embeddedJSONRe = regexp.MustCompile(`\{[\s\S]*\}`)

// ExtractAPIError pulls a human-readable message out of an error string
// that embeds a JSON error body, falling back to the raw string.
func ExtractAPIError(raw string) string {
	match := embeddedJSONRe.FindString(raw)
	if match == "" {
		return raw
	}
	var parsed struct {
		Message string `json:"message"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(match), &parsed); err != nil {
		return raw
	}
	if parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	if parsed.Message != "" {
		return parsed.Message
	}
	return raw
}

// TestConnection sends a trivial prompt to verify credentials and
// endpoint reachability. Errors come back with a readable message.
func TestConnection(ctx context.Context, p Provider) error {
	_, err := p.SendChat(ctx,
		[]core.ChatMessage{{Role: core.RoleUser, Content: `Reply with "ok"`}},
		ChatOptions{MaxTokens: 10},
	)
	if err != nil {
		return fmt.Errorf("%s", ExtractAPIError(err.Error()))
	}
	return nil
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}
