// Package server exposes the orchestrator over HTTP for the dashboard.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/rclaybrook/homedeck/internal/llm"
	"github.com/rclaybrook/homedeck/internal/orchestrator"
	"github.com/rclaybrook/homedeck/internal/safety"
)

// RouterStatus reports the model-tier mapping for the debug endpoint.
type RouterStatus interface {
	Status() map[string]any
}

// Handler answers chat requests. Satisfied by the orchestrator.
type Handler interface {
	Handle(ctx context.Context, req orchestrator.Request) *orchestrator.Result
}

// Server is the inbound HTTP API.
type Server struct {
	addr       string
	handler    Handler
	router     RouterStatus
	version    string
	httpServer *http.Server
}

// New creates the server. version appears in /version and /health.
func New(addr string, h Handler, rs RouterStatus, version string) *Server {
	s := &Server{addr: addr, handler: h, router: rs, version: version}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/version", s.handleVersion)
	r.Post("/api/chat", s.handleChat)
	r.Get("/api/router/status", s.handleRouterStatus)
	return r
}

// requestLogger emits one structured line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}

// chatRequest is the inbound chat shape.
type chatRequest struct {
	Message         string        `json:"message"`
	History         []llm.Message `json:"history,omitempty"`
	ForceAgentLabel string        `json:"forceAgentLabel,omitempty"`
	QuickChat       bool          `json:"quickChat,omitempty"`
	ThreadID        string        `json:"threadId,omitempty"`
}

// chatGovernance is the governance summary returned to the caller.
type chatGovernance struct {
	Approved    bool     `json:"approved"`
	RiskLevel   string   `json:"riskLevel"`
	Warnings    []string `json:"warnings,omitempty"`
	BlockReason string   `json:"blockReason,omitempty"`
}

// chatResponse is the outbound chat shape.
type chatResponse struct {
	Reply      string          `json:"reply"`
	AgentLabel string          `json:"agentLabel"`
	Stage      string          `json:"stage"`
	ThreadID   string          `json:"threadId"`
	Governance *chatGovernance `json:"governance"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	result := s.handler.Handle(r.Context(), orchestrator.Request{
		Message:         req.Message,
		History:         req.History,
		ForceAgentLabel: req.ForceAgentLabel,
		QuickChat:       req.QuickChat,
		ThreadID:        req.ThreadID,
	})

	writeJSON(w, http.StatusOK, chatResponse{
		Reply:      result.Reply,
		AgentLabel: result.AgentLabel,
		Stage:      string(result.Stage),
		ThreadID:   result.ThreadID,
		Governance: toGovernance(result.Governance),
	})
}

func toGovernance(d *safety.Decision) *chatGovernance {
	if d == nil {
		return nil
	}
	g := &chatGovernance{
		Approved:  d.Approved,
		RiskLevel: string(d.RiskLevel),
		Warnings:  d.Warnings,
	}
	if !d.Approved {
		g.BlockReason = d.Reason
	}
	return g
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.version})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

func (s *Server) handleRouterStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.router.Status())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.addr).Msg("http server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info().Msg("http server shutting down")
	return s.httpServer.Shutdown(shutdownCtx)
}
