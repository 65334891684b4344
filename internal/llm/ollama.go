package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// OllamaProvider implements the Provider interface for a local Ollama server.
type OllamaProvider struct {
	baseProvider
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(cfg *ProviderConfig) *OllamaProvider {
	return &OllamaProvider{
		baseProvider: newBaseProvider(cfg, "ollama"),
	}
}

// Available reports whether the Ollama endpoint is configured.
// Ollama needs no API key, so a non-empty endpoint is enough.
func (p *OllamaProvider) Available() bool {
	return p.config.Endpoint != ""
}

// Chat sends a non-streaming chat request to Ollama's /api/chat endpoint.
func (p *OllamaProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	ollamaReq := ollamaChatRequest{
		Model:  req.Model,
		Stream: false,
	}
	if ollamaReq.Model == "" {
		ollamaReq.Model = p.config.Model
	}

	if req.SystemPrompt != "" {
		ollamaReq.Messages = append(ollamaReq.Messages, ollamaMessage{
			Role:    "system",
			Content: req.SystemPrompt,
		})
	}
	for _, msg := range req.Messages {
		ollamaReq.Messages = append(ollamaReq.Messages, ollamaMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	temperature := req.Temperature
	if temperature == 0 {
		temperature = p.config.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}
	ollamaReq.Options = &ollamaOptions{
		Temperature: temperature,
		NumPredict:  maxTokens,
	}

	body, err := json.Marshal(ollamaReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.config.Endpoint+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := readLimitedBody(resp.Body, MaxErrorBodySize)
		return nil, fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	var ollamaResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	finishReason := ""
	if ollamaResp.DoneReason != "" {
		finishReason = ollamaResp.DoneReason
	}

	return &ChatResponse{
		// Reasoning models may put the answer in "thinking" and leave
		// content empty; normalize so callers always see text.
		Content:          normalizeContent(ollamaResp.Message.Content, ollamaResp.Message.Thinking),
		Model:            ollamaResp.Model,
		PromptTokens:     ollamaResp.PromptEvalCount,
		CompletionTokens: ollamaResp.EvalCount,
		Duration:         time.Since(start),
		FinishReason:     finishReason,
	}, nil
}

// Ollama API types
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model   string `json:"model"`
	Message struct {
		Role     string `json:"role"`
		Content  string `json:"content"`
		Thinking string `json:"thinking"`
	} `json:"message"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}
