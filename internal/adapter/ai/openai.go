package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/meridianedu/leadmatch/internal/port"
)

const (
	// requestTimeout bounds every call to the AI service.
	requestTimeout = 30 * time.Second
	// maxRetries is the number of additional attempts after the first
	// failure, applied only to transport errors and 5xx responses.
	maxRetries = 2

	retryBackoff = 500 * time.Millisecond
)

// Config holds the settings for an OpenAI-compatible endpoint.
type Config struct {
	BaseURL    string // e.g. https://api.openai.com
	APIKey     string
	EmbedModel string // e.g. text-embedding-3-small
	ChatModel  string // e.g. gpt-4o-mini
}

// OpenAIProvider implements port.AIProvider against the OpenAI REST API
// (or any compatible gateway selected via BaseURL).
type OpenAIProvider struct {
	cfg        Config
	httpClient *http.Client
}

// NewOpenAIProvider creates a provider with a bounded request timeout.
func NewOpenAIProvider(cfg Config) *OpenAIProvider {
	return &OpenAIProvider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// EmbedModel returns the embedding model identifier.
func (o *OpenAIProvider) EmbedModel() string {
	return o.cfg.EmbedModel
}

// ChatModel returns the generative model identifier.
func (o *OpenAIProvider) ChatModel() string {
	return o.cfg.ChatModel
}

// EmbedText generates a vector embedding for the given text.
func (o *OpenAIProvider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, port.Validationf("embedding input is empty")
	}

	payload := map[string]any{
		"model": o.cfg.EmbedModel,
		"input": text,
	}

	body, err := o.post(ctx, "/v1/embeddings", payload)
	if err != nil {
		return nil, port.Externalf("embeddings request: %w", err)
	}

	var resp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, port.Externalf("embeddings decode: %w", err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, port.Externalf("embeddings response contains no vector")
	}

	return resp.Data[0].Embedding, nil
}

// CompleteJSON sends a prompt in JSON-object response mode and returns the
// raw response document produced by the model.
func (o *OpenAIProvider) CompleteJSON(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model": o.cfg.ChatModel,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"response_format": map[string]string{"type": "json_object"},
		// Low temperature for consistent structured output.
		"temperature": 0.1,
	}

	body, err := o.post(ctx, "/v1/chat/completions", payload)
	if err != nil {
		return "", port.Externalf("chat completion request: %w", err)
	}

	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", port.Externalf("chat completion decode: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", port.Externalf("chat completion response contains no content")
	}

	return resp.Choices[0].Message.Content, nil
}

// post sends an authenticated POST request, retrying transport errors and
// 5xx responses up to maxRetries extra attempts.
func (o *OpenAIProvider) post(ctx context.Context, path string, payload any) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * retryBackoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL+path, bytes.NewReader(payloadBytes))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)

		resp, err := o.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("ai API error (%d): %s", resp.StatusCode, string(body))
			continue
		case resp.StatusCode != http.StatusOK:
			return nil, fmt.Errorf("ai API error (%d): %s", resp.StatusCode, string(body))
		case readErr != nil:
			lastErr = fmt.Errorf("read response: %w", readErr)
			continue
		}

		return body, nil
	}

	return nil, lastErr
}
