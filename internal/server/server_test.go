package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rclaybrook/homedeck/internal/orchestrator"
	"github.com/rclaybrook/homedeck/internal/safety"
)

type stubHandler struct {
	lastReq orchestrator.Request
	result  *orchestrator.Result
}

func (s *stubHandler) Handle(ctx context.Context, req orchestrator.Request) *orchestrator.Result {
	s.lastReq = req
	return s.result
}

type stubStatus struct{}

func (stubStatus) Status() map[string]any {
	return map[string]any{"backends": []string{"ollama"}}
}

func newTestServer(h *stubHandler) *Server {
	return New("127.0.0.1:0", h, stubStatus{}, "test")
}

func TestChatEndpoint(t *testing.T) {
	h := &stubHandler{result: &orchestrator.Result{
		Reply:      "the answer",
		AgentLabel: "general",
		Stage:      orchestrator.StageDone,
		ThreadID:   "t-1",
		Governance: &safety.Decision{Approved: true, RiskLevel: safety.RiskLow},
	}}
	srv := newTestServer(h)

	body := `{"message": "hello", "history": [{"role": "user", "content": "earlier"}], "quickChat": true}`
	req := httptest.NewRequest("POST", "/api/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "the answer", resp.Reply)
	assert.Equal(t, "done", resp.Stage)
	assert.Equal(t, "t-1", resp.ThreadID)
	require.NotNil(t, resp.Governance)
	assert.True(t, resp.Governance.Approved)
	assert.Empty(t, resp.Governance.BlockReason)

	assert.Equal(t, "hello", h.lastReq.Message)
	assert.True(t, h.lastReq.QuickChat)
	require.Len(t, h.lastReq.History, 1)
}

func TestChatEndpointBlockedExposesReason(t *testing.T) {
	h := &stubHandler{result: &orchestrator.Result{
		Reply:      "request involves insider trading",
		AgentLabel: "investment",
		Stage:      orchestrator.StageBlocked,
		ThreadID:   "t-2",
		Governance: &safety.Decision{
			Approved: false, Reason: "request involves insider trading", RiskLevel: safety.RiskHigh,
		},
	}}
	srv := newTestServer(h)

	req := httptest.NewRequest("POST", "/api/chat", strings.NewReader(`{"message": "insider tips please"}`))
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "blocked", resp.Stage)
	assert.Equal(t, "request involves insider trading", resp.Governance.BlockReason)
}

func TestChatEndpointRejectsBadInput(t *testing.T) {
	srv := newTestServer(&stubHandler{result: &orchestrator.Result{}})

	req := httptest.NewRequest("POST", "/api/chat", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest("POST", "/api/chat", strings.NewReader(`{"message": ""}`))
	rec = httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndVersion(t *testing.T) {
	srv := newTestServer(&stubHandler{result: &orchestrator.Result{}})

	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, httptest.NewRequest("GET", "/version", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":"test"`)
}

func TestRouterStatusEndpoint(t *testing.T) {
	srv := newTestServer(&stubHandler{result: &orchestrator.Result{}})

	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, httptest.NewRequest("GET", "/api/router/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "backends")
}
