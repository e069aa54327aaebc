// internal/summarizer/anthropic_test.go
package summarizer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	custom_errors "weekend-activity/internal/errors"
)

func newStubbedGenerator(t *testing.T, handler http.HandlerFunc) *AnthropicGenerator {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	gen := NewAnthropicGenerator("test-key", "test-model")
	gen.endpoint = server.URL
	gen.client = server.Client()
	return gen
}

func TestAnthropicGenerator_Generate(t *testing.T) {
	gen := newStubbedGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, 512, req.MaxTokens)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		json.NewEncoder(w).Encode(anthropicResponse{
			Content: []anthropicContent{{Type: "text", Text: "SUMMARY: Done.\nIMPACT: LOW"}},
		})
	})

	text, err := gen.Generate(context.Background(), "describe this", 512)

	require.NoError(t, err)
	assert.Equal(t, "SUMMARY: Done.\nIMPACT: LOW", text)
}

func TestAnthropicGenerator_ServerErrorIsGenerationError(t *testing.T) {
	gen := newStubbedGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := gen.Generate(context.Background(), "describe this", 512)

	var genErr *custom_errors.GenerationError
	assert.ErrorAs(t, err, &genErr)
}

func TestAnthropicGenerator_APIErrorIsGenerationError(t *testing.T) {
	gen := newStubbedGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(anthropicResponse{
			Error: &anthropicError{Type: "overloaded_error", Message: "try later"},
		})
	})

	_, err := gen.Generate(context.Background(), "describe this", 512)

	var genErr *custom_errors.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Contains(t, genErr.Error(), "overloaded_error")
}

func TestAnthropicGenerator_EmptyContentIsGenerationError(t *testing.T) {
	gen := newStubbedGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(anthropicResponse{})
	})

	_, err := gen.Generate(context.Background(), "describe this", 512)

	var genErr *custom_errors.GenerationError
	assert.ErrorAs(t, err, &genErr)
}
