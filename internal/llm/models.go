package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"condense/internal/core"
)

// chatModelRe matches OpenAI model ids worth surfacing for chat use.
// Embedding, audio, and image models are filtered out.
var chatModelRe = regexp.MustCompile(`^(gpt-|o[134](-|$)|chatgpt-)`)

// ListModels queries the provider's model catalog. Works from the config
// alone so it can run before a full Provider is constructed.
func ListModels(ctx context.Context, cfg core.ProviderConfig) ([]core.ModelInfo, error) {
	def, _ := GetDefinition(cfg.ProviderID)
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = def.DefaultEndpoint
	}
	endpoint = strings.TrimSuffix(endpoint, "/")

	switch cfg.ProviderID {
	case ProviderAnthropic:
		return listAnthropicModels(ctx, endpoint, cfg.APIKey)
	case ProviderGoogle:
		return listGoogleModels(ctx, endpoint, cfg.APIKey)
	case ProviderSelfHosted:
		return listOllamaModels(ctx, endpoint)
	default:
		return listOpenAIModels(ctx, endpoint, cfg.APIKey, cfg.ProviderID == ProviderOpenAI)
	}
}

func fetchJSON(ctx context.Context, url string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := newHTTPClient().Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return json.Unmarshal(body, out)
}

func listOpenAIModels(ctx context.Context, endpoint, apiKey string, filterChat bool) ([]core.ModelInfo, error) {
	var parsed struct {
		Data []struct {
			ID      string `json:"id"`
			Created int64  `json:"created"`
		} `json:"data"`
	}
	headers := map[string]string{}
	if apiKey != "" {
		headers["Authorization"] = "Bearer " + apiKey
	}
	if err := fetchJSON(ctx, endpoint+"/v1/models", headers, &parsed); err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	var models []core.ModelInfo
	for _, m := range parsed.Data {
		if filterChat && !chatModelRe.MatchString(m.ID) {
			continue
		}
		models = append(models, core.ModelInfo{ID: m.ID, Created: m.Created})
	}
	// Newest first so the interesting models surface at the top.
	sort.Slice(models, func(i, j int) bool { return models[i].Created > models[j].Created })
	return models, nil
}

func listAnthropicModels(ctx context.Context, endpoint, apiKey string) ([]core.ModelInfo, error) {
	var parsed struct {
		Data []struct {
			ID          string `json:"id"`
			DisplayName string `json:"display_name"`
		} `json:"data"`
	}
	headers := map[string]string{
		"x-api-key":         apiKey,
		"anthropic-version": "2023-06-01",
	}
	if err := fetchJSON(ctx, endpoint+"/v1/models?limit=1000", headers, &parsed); err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	var models []core.ModelInfo
	for _, m := range parsed.Data {
		models = append(models, core.ModelInfo{ID: m.ID, Name: m.DisplayName})
	}
	return models, nil
}

func listGoogleModels(ctx context.Context, endpoint, apiKey string) ([]core.ModelInfo, error) {
	var parsed struct {
		Models []struct {
			Name                       string   `json:"name"`
			DisplayName                string   `json:"displayName"`
			SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
		} `json:"models"`
	}
	url := endpoint + "/v1beta/models?pageSize=1000&key=" + apiKey
	if err := fetchJSON(ctx, url, nil, &parsed); err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	var models []core.ModelInfo
	for _, m := range parsed.Models {
		supported := false
		for _, method := range m.SupportedGenerationMethods {
			if method == "generateContent" {
				supported = true
				break
			}
		}
		if !supported {
			continue
		}
		// API returns "models/gemini-..." but config wants the bare id.
		models = append(models, core.ModelInfo{ID: strings.TrimPrefix(m.Name, "models/"), Name: m.DisplayName})
	}
	return models, nil
}

// listOllamaModels tries the native Ollama tags endpoint first, then
// falls back to the OpenAI-compatible listing for other local servers.
func listOllamaModels(ctx context.Context, endpoint string) ([]core.ModelInfo, error) {
	var parsed struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := fetchJSON(ctx, endpoint+"/api/tags", nil, &parsed); err == nil {
		var models []core.ModelInfo
		for _, m := range parsed.Models {
			models = append(models, core.ModelInfo{ID: m.Name})
		}
		return models, nil
	}
	return listOpenAIModels(ctx, endpoint, "", false)
}
