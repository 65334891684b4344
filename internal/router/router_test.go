package router

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rclaybrook/homedeck/internal/llm"
)

// stubProvider records which models were invoked and fails on demand.
type stubProvider struct {
	name     string
	calls    []string
	failFor  map[string]bool
	response string
}

func (s *stubProvider) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	s.calls = append(s.calls, req.Model)
	if s.failFor[req.Model] {
		return nil, fmt.Errorf("backend refused %s", req.Model)
	}
	resp := s.response
	if resp == "" {
		resp = "ok from " + req.Model
	}
	return &llm.ChatResponse{Content: resp, Model: req.Model}, nil
}

func (s *stubProvider) Name() string    { return s.name }
func (s *stubProvider) Available() bool { return true }

func userMsg(text string) []llm.Message {
	return []llm.Message{{Role: "user", Content: text}}
}

func TestTierForTask(t *testing.T) {
	assert.Equal(t, TierLight, TierForTask("classify"))
	assert.Equal(t, TierLight, TierForTask("parse"))
	assert.Equal(t, TierStandard, TierForTask("interpret"))
	assert.Equal(t, TierPremium, TierForTask("recommend"))
	// Unknown tasks get standard.
	assert.Equal(t, TierStandard, TierForTask("nonsense"))
}

func TestInvokeEscalatesLightToStandard(t *testing.T) {
	ollama := &stubProvider{
		name:    "ollama",
		failFor: map[string]bool{"llama3.2:3b": true},
	}
	r, err := New(map[string]llm.Provider{"ollama": ollama}, Config{})
	require.NoError(t, err)

	text, err := r.Invoke(context.Background(), TierLight, userMsg("hi"), "")
	require.NoError(t, err)
	assert.Equal(t, "ok from llama3.1:8b", text)
	// Escalation order tried is exactly light then standard.
	assert.Equal(t, []string{"llama3.2:3b", "llama3.1:8b"}, ollama.calls)
}

func TestInvokeStartsAtRequestedTier(t *testing.T) {
	ollama := &stubProvider{name: "ollama"}
	r, err := New(map[string]llm.Provider{"ollama": ollama}, Config{})
	require.NoError(t, err)

	_, err = r.Invoke(context.Background(), TierPremium, userMsg("hi"), "")
	require.NoError(t, err)
	// Premium request never touches the lower tiers.
	assert.Equal(t, []string{"llama3.1:8b"}, ollama.calls)
}

func TestInvokeAllTiersExhausted(t *testing.T) {
	ollama := &stubProvider{
		name:    "ollama",
		failFor: map[string]bool{"llama3.2:3b": true, "llama3.1:8b": true},
	}
	r, err := New(map[string]llm.Provider{"ollama": ollama}, Config{})
	require.NoError(t, err)

	_, err = r.Invoke(context.Background(), TierLight, userMsg("hi"), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllTiersExhausted)
}

func TestInvokeMixedBackendsSameTierSwap(t *testing.T) {
	// Every ollama model fails; premium (anthropic) also fails. The final
	// same-tier swap retries the requested tier on the other backend.
	ollama := &stubProvider{
		name:    "ollama",
		failFor: map[string]bool{"llama3.2:3b": true, "llama3.1:8b": true},
	}
	anthropic := &stubProvider{
		name:    "anthropic",
		failFor: map[string]bool{"claude-3-5-sonnet-20241022": true},
	}
	r, err := New(map[string]llm.Provider{"ollama": ollama, "anthropic": anthropic}, Config{})
	require.NoError(t, err)

	text, err := r.Invoke(context.Background(), TierLight, userMsg("hi"), "")
	require.NoError(t, err)
	assert.Equal(t, "ok from claude-3-5-haiku-20241022", text)
	assert.Equal(t, []string{"claude-3-5-sonnet-20241022", "claude-3-5-haiku-20241022"}, anthropic.calls)
}

func TestInvokeMixedBackendsPremiumOnCapable(t *testing.T) {
	ollama := &stubProvider{name: "ollama"}
	anthropic := &stubProvider{name: "anthropic"}
	r, err := New(map[string]llm.Provider{"ollama": ollama, "anthropic": anthropic}, Config{})
	require.NoError(t, err)

	_, err = r.Invoke(context.Background(), TierPremium, userMsg("hi"), "")
	require.NoError(t, err)
	assert.Empty(t, ollama.calls)
	assert.Equal(t, []string{"claude-3-5-sonnet-20241022"}, anthropic.calls)
}

func TestInvokeEmptyResponseEscalates(t *testing.T) {
	calls := 0
	// First call returns whitespace, which must be treated as a failure.
	empty := &scriptedProvider{script: func(req *llm.ChatRequest) (*llm.ChatResponse, error) {
		calls++
		if calls == 1 {
			return &llm.ChatResponse{Content: "  \n"}, nil
		}
		return &llm.ChatResponse{Content: "recovered"}, nil
	}}

	r, err := New(map[string]llm.Provider{"ollama": empty}, Config{})
	require.NoError(t, err)

	text, err := r.Invoke(context.Background(), TierLight, userMsg("hi"), "")
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, 2, calls)
}

// scriptedProvider delegates Chat to a closure.
type scriptedProvider struct {
	script func(req *llm.ChatRequest) (*llm.ChatResponse, error)
}

func (s *scriptedProvider) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	return s.script(req)
}
func (s *scriptedProvider) Name() string    { return "scripted" }
func (s *scriptedProvider) Available() bool { return true }

func TestConfigOverridesTierModels(t *testing.T) {
	ollama := &stubProvider{name: "ollama"}
	r, err := New(map[string]llm.Provider{"ollama": ollama}, Config{StandardModel: "qwen2.5:14b"})
	require.NoError(t, err)

	_, err = r.Invoke(context.Background(), TierStandard, userMsg("hi"), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"qwen2.5:14b"}, ollama.calls)
}

func TestNewRequiresAnAvailableBackend(t *testing.T) {
	_, err := New(map[string]llm.Provider{}, Config{})
	require.Error(t, err)
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, IsTimeout(context.DeadlineExceeded))
	assert.True(t, IsTimeout(fmt.Errorf("dial tcp: connection refused")))
	assert.False(t, IsTimeout(fmt.Errorf("backend refused request")))
	assert.False(t, IsTimeout(nil))
}
