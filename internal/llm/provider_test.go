package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeContent(t *testing.T) {
	tests := []struct {
		name      string
		primary   string
		secondary string
		want      string
	}{
		{"primary wins", "answer", "reasoning", "answer"},
		{"empty primary falls back", "", "reasoning", "reasoning"},
		{"whitespace primary falls back", "  \n", "reasoning", "reasoning"},
		{"both empty", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeContent(tt.primary, tt.secondary))
		})
	}
}

func TestAnthropicChatExtractsTextBlocks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		json.NewEncoder(w).Encode(map[string]any{
			"model":       "claude-3-5-sonnet-20241022",
			"stop_reason": "end_turn",
			"content": []map[string]string{
				{"type": "text", "text": "hello "},
				{"type": "text", "text": "world"},
			},
			"usage": map[string]int{"input_tokens": 10, "output_tokens": 5},
		})
	}))
	defer srv.Close()

	p := NewAnthropicProvider(&ProviderConfig{Endpoint: srv.URL, APIKey: "test-key"})
	resp, err := p.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello world", resp.Content)
	assert.Equal(t, 10, resp.PromptTokens)
	assert.Equal(t, 5, resp.CompletionTokens)
}

func TestAnthropicChatFallsBackToThinking(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"model": "claude-3-5-sonnet-20241022",
			"content": []map[string]string{
				{"type": "thinking", "thinking": "the real answer"},
			},
		})
	}))
	defer srv.Close()

	p := NewAnthropicProvider(&ProviderConfig{Endpoint: srv.URL, APIKey: "test-key"})
	resp, err := p.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "the real answer", resp.Content)
}

func TestAnthropicChatRequiresAPIKey(t *testing.T) {
	p := NewAnthropicProvider(&ProviderConfig{Endpoint: "http://127.0.0.1:1"})
	_, err := p.Chat(context.Background(), &ChatRequest{})
	require.Error(t, err)
}

func TestOllamaChatNormalizesThinkingField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)

		json.NewEncoder(w).Encode(map[string]any{
			"model": "llama3.1:8b",
			"message": map[string]string{
				"role":     "assistant",
				"content":  "",
				"thinking": "recovered answer",
			},
			"done":        true,
			"done_reason": "stop",
		})
	}))
	defer srv.Close()

	p := NewOllamaProvider(&ProviderConfig{Endpoint: srv.URL})
	resp, err := p.Chat(context.Background(), &ChatRequest{
		SystemPrompt: "be brief",
		Messages:     []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered answer", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
}

func TestOllamaChatErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewOllamaProvider(&ProviderConfig{Endpoint: srv.URL})
	_, err := p.Chat(context.Background(), &ChatRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}
