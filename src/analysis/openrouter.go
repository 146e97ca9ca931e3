package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"cad-lingo/src/glossary"
	"cad-lingo/src/imageinput"
)

const (
	openRouterBaseURL = "https://openrouter.ai/api/v1"
	maxRetries        = 3
	initialDelay      = 1 * time.Second
)

// OpenRouter API structures
type Message struct {
	Role    string    `json:"role"`
	Content []Content `json:"content"`
}

type Content struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type ProviderPreferences struct {
	Order          []string `json:"order,omitempty"`
	AllowFallbacks *bool    `json:"allow_fallbacks,omitempty"`
}

type ResponseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *JSONSchema `json:"json_schema,omitempty"`
}

type JSONSchema struct {
	Name   string         `json:"name"`
	Strict bool           `json:"strict"`
	Schema map[string]any `json:"schema"`
}

type ChatRequest struct {
	Model          string               `json:"model"`
	Messages       []Message            `json:"messages"`
	Temperature    float64              `json:"temperature"`
	MaxTokens      int                  `json:"max_tokens"`
	Provider       *ProviderPreferences `json:"provider,omitempty"`
	ResponseFormat *ResponseFormat      `json:"response_format,omitempty"`
}

type ChatResponse struct {
	Choices []Choice  `json:"choices"`
	Error   *APIError `json:"error,omitempty"`
}

type Choice struct {
	Message ResponseMessage `json:"message"`
}

type ResponseMessage struct {
	Content string `json:"content"`
}

type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"` // Can be string or number
}

type OpenRouterConfig struct {
	APIKey    string
	Model     string
	Providers []string

	// BaseURL overrides the API root, mainly for tests.
	BaseURL string
}

// OpenRouter analyzes screenshots through OpenRouter's chat-completions API.
type OpenRouter struct {
	apiKey    string
	model     string
	providers []string
	baseURL   string
	client    *http.Client
	delay     time.Duration
}

func NewOpenRouter(cfg OpenRouterConfig) (*OpenRouter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OpenRouter API key is required", ErrNotConfigured)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: MODEL is required for OpenRouter", ErrNotConfigured)
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = openRouterBaseURL
	}
	return &OpenRouter{
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		providers: cfg.Providers,
		baseURL:   base,
		client:    &http.Client{Timeout: 45 * time.Second},
		delay:     initialDelay,
	}, nil
}

func (o *OpenRouter) Name() string {
	return "openrouter:" + o.model
}

// providerPreferences pins routing to the configured providers, without fallbacks.
func (o *OpenRouter) providerPreferences() *ProviderPreferences {
	if len(o.providers) == 0 {
		return nil
	}
	allowFallbacks := false
	return &ProviderPreferences{
		Order:          o.providers,
		AllowFallbacks: &allowFallbacks,
	}
}

func (o *OpenRouter) Analyze(ctx context.Context, img imageinput.Image, entries []glossary.Entry) ([]Result, error) {
	request := ChatRequest{
		Model: o.model,
		Messages: []Message{
			{
				Role:    "system",
				Content: []Content{{Type: "text", Text: SystemInstruction}},
			},
			{
				Role: "user",
				Content: []Content{
					{Type: "text", Text: BuildPrompt(entries)},
					{Type: "image_url", ImageURL: &ImageURL{URL: img.DataURL()}},
				},
			},
		},
		Temperature: 0.1,
		MaxTokens:   4000,
		Provider:    o.providerPreferences(),
		ResponseFormat: &ResponseFormat{
			Type: "json_schema",
			JSONSchema: &JSONSchema{
				Name:   "translations",
				Strict: true,
				Schema: jsonSchema(),
			},
		},
	}

	// Retry with linear backoff
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(o.delay) * (1.5 * float64(attempt)))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		response, err := o.makeAPIRequest(ctx, request)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			zap.S().Warnf("openrouter: attempt %d/%d failed: %v", attempt+1, maxRetries, err)
			lastErr = err
			continue
		}

		if len(response.Choices) == 0 {
			lastErr = fmt.Errorf("no choices in API response")
			continue
		}

		results, err := ParseResponse(cleanResponseText(response.Choices[0].Message.Content))
		if err != nil {
			return nil, err
		}
		return Reconcile(results, entries), nil
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", maxRetries, lastErr)
}

// Ping verifies the key against the authenticated key endpoint.
func (o *OpenRouter) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/key", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("openrouter ping failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("openrouter ping returned status %d", resp.StatusCode)
	}
	return nil
}

func (o *OpenRouter) makeAPIRequest(ctx context.Context, request ChatRequest) (*ChatResponse, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("HTTP-Referer", "https://github.com/cad-lingo/cad-lingo")
	req.Header.Set("X-Title", "CAD-Lingo Bridge")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	var response ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}

	if response.Error != nil {
		return nil, fmt.Errorf("API error: %s (type: %s, code: %v)", response.Error.Message, response.Error.Type, response.Error.Code)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	return &response, nil
}

// cleanResponseText drops a trailing </image> artifact some vision models emit.
func cleanResponseText(text string) string {
	return strings.TrimSuffix(strings.TrimSpace(text), "</image>")
}
