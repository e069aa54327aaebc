// internal/summarizer/anthropic.go
package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	custom_errors "weekend-activity/internal/errors"
)

const anthropicEndpoint = "https://api.anthropic.com/v1/messages"

// AnthropicGenerator calls the Anthropic Messages API.
type AnthropicGenerator struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewAnthropicGenerator creates a generator for the given API key and model.
func NewAnthropicGenerator(apiKey, model string) *AnthropicGenerator {
	return &AnthropicGenerator{
		apiKey:   apiKey,
		model:    model,
		endpoint: anthropicEndpoint,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

// Anthropic API request/response types

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
	Error   *anthropicError    `json:"error,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Generate sends the prompt and returns the model's text. All failure modes,
// timeouts included, surface as GenerationError so callers can fall back.
func (g *AnthropicGenerator) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	reqBody := anthropicRequest{
		Model:     g.model,
		MaxTokens: maxTokens,
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", &custom_errors.GenerationError{Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", &custom_errors.GenerationError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", g.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := g.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
			return "", &custom_errors.GenerationError{Err: fmt.Errorf("timeout: %w", err)}
		}
		return "", &custom_errors.GenerationError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &custom_errors.GenerationError{Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &custom_errors.GenerationError{Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, respBody)}
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", &custom_errors.GenerationError{Err: fmt.Errorf("parse response: %w", err)}
	}

	if apiResp.Error != nil {
		return "", &custom_errors.GenerationError{Err: fmt.Errorf("API error: %s - %s", apiResp.Error.Type, apiResp.Error.Message)}
	}

	if len(apiResp.Content) == 0 {
		return "", &custom_errors.GenerationError{Err: errors.New("empty response")}
	}

	return apiResp.Content[0].Text, nil
}
