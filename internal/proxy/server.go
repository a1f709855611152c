// Copyright 2026 The Variantguard Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package proxy serves the variant guard over HTTP so agent runtimes that
// cannot embed the Go SDK can ask for a decision before each tool call.
package proxy

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/peg/variantguard/internal/build"
	"github.com/peg/variantguard/internal/guard"
	"github.com/peg/variantguard/internal/metrics"
)

const defaultMode = "enforce"

// maxRequestBody is the maximum allowed request body size (1MB).
const maxRequestBody = 1 << 20

// Server is the HTTP runtime for guarded tool calls.
type Server struct {
	guard          atomic.Pointer[guard.Guard]
	token          string
	mode           string
	logger         *slog.Logger
	metricsEnabled bool
	startedAt      time.Time

	mu     sync.Mutex
	server *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithToken requires "Authorization: Bearer <token>" on /v1 routes.
// Without a token the API is open.
func WithToken(token string) Option {
	return func(s *Server) {
		s.token = strings.TrimSpace(token)
	}
}

// WithMode sets the operation mode: enforce or monitor. In monitor mode
// rejections are reported but the response status is always 200.
func WithMode(mode string) Option {
	return func(s *Server) {
		s.mode = mode
	}
}

// WithLogger sets the server's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics enables the /metrics Prometheus endpoint.
func WithMetrics(enabled bool) Option {
	return func(s *Server) {
		s.metricsEnabled = enabled
	}
}

// New creates a server evaluating calls with g.
func New(g *guard.Guard, opts ...Option) *Server {
	s := &Server{
		mode:      defaultMode,
		logger:    slog.Default(),
		startedAt: time.Now().UTC(),
	}
	s.guard.Store(g)

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.mode == "" {
		s.mode = defaultMode
	}
	return s
}

// SetGuard swaps the guard used for subsequent requests. Requests already
// in flight finish with the guard they started with.
func (s *Server) SetGuard(g *guard.Guard) {
	if g != nil {
		s.guard.Store(g)
	}
}

// ListenAndServe starts serving HTTP requests at addr.
func (s *Server) ListenAndServe(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("proxy: listen: %w", err)
	}
	return s.Serve(listener)
}

// Serve starts serving HTTP requests on an existing listener.
func (s *Server) Serve(listener net.Listener) error {
	srv := &http.Server{
		Addr:              listener.Addr().String(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	if err := srv.Serve(listener); err != nil {
		return fmt.Errorf("proxy: serve: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("proxy: shutdown: %w", err)
	}
	return nil
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.metricsEnabled {
		r.Handle("/metrics", metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.requireToken)
		r.Post("/tool-call", s.handleToolCall)
		r.Post("/preflight", s.handlePreflight)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return http.MaxBytesHandler(r, maxRequestBody)
}

type toolRequest struct {
	Tool    string         `json:"tool"`
	Args    map[string]any `json:"args"`
	Agent   string         `json:"agent"`
	Session string         `json:"session"`
}

type toolResponse struct {
	Decision string `json:"decision"`
	Tool     string `json:"tool"`
	Kind     string `json:"kind"`
	Path     string `json:"path,omitempty"`
	Message  string `json:"message,omitempty"`
	Mode     string `json:"mode"`
}

func decodeToolRequest(w http.ResponseWriter, r *http.Request) (toolRequest, bool) {
	var req toolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return req, false
	}
	if strings.TrimSpace(req.Tool) == "" {
		writeError(w, http.StatusBadRequest, "tool is required")
		return req, false
	}
	return req, true
}

func (s *Server) handleToolCall(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeToolRequest(w, r)
	if !ok {
		return
	}

	g := s.guard.Load()
	ctx := r.Context()
	if req.Agent != "" {
		ctx = guard.WithAgent(ctx, req.Agent)
	}
	if req.Session != "" {
		ctx = guard.WithSession(ctx, req.Session)
	}

	resp := toolResponse{
		Decision: "allow",
		Tool:     req.Tool,
		Kind:     g.KindOf(req.Tool).String(),
		Mode:     s.mode,
	}

	err := g.OnBeforeToolExecution(ctx, req.Tool, req.Args)
	var rej *guard.ErrVariantRejected
	if errors.As(err, &rej) {
		resp.Decision = "deny"
		resp.Path = rej.Path
		resp.Message = rej.Message
	}

	if resp.Decision == "deny" && s.mode == "enforce" {
		writeJSON(w, http.StatusForbidden, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePreflight evaluates without notifying or auditing.
func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeToolRequest(w, r)
	if !ok {
		return
	}

	d := s.guard.Load().Evaluate(guard.ToolInvocation{Tool: req.Tool, Args: req.Args})
	resp := toolResponse{
		Decision: d.Action(),
		Tool:     req.Tool,
		Kind:     d.Kind.String(),
		Mode:     s.mode,
	}
	if d.Rejection != nil {
		resp.Path = d.Rejection.Path
		resp.Message = d.Rejection.Message
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"mode":           s.mode,
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
		"version":        build.Version,
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next.ServeHTTP(w, r)
			return
		}

		auth := strings.TrimSpace(r.Header.Get("Authorization"))
		if auth == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}
		token := strings.TrimPrefix(auth, "Bearer ")
		if token == auth || subtle.ConstantTimeCompare([]byte(token), []byte(s.token)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid authorization token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
