package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/warden-mail/warden/internal/dispatch"
	"github.com/warden-mail/warden/internal/instrumentation"
	"github.com/warden-mail/warden/internal/logging"
	"github.com/warden-mail/warden/internal/protocol"
)

const (
	// ExecuteToolPath is the dispatch endpoint.
	ExecuteToolPath = "/mcp/execute_tool"

	// ListToolsPath is the discovery endpoint.
	ListToolsPath = "/mcp/list_tools"

	// HealthPath is the unauthenticated liveness probe.
	HealthPath = "/health"

	defaultReadHeaderTimeout = 10 * time.Second
	defaultIdleTimeout       = 60 * time.Second
)

// Config holds the collaborators and settings of the HTTP server.
type Config struct {
	Addr    string
	APIKey  string
	Engine  *dispatch.Engine
	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// Server is the main HTTP server: the dispatch and discovery
// endpoints behind API-key authentication, plus an open liveness
// probe. Tool-level failures are always carried inside a 200 response;
// only the auth layer uses protocol-level error statuses.
type Server struct {
	addr       string
	apiKey     string
	engine     *dispatch.Engine
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
	health     *HealthChecker
	httpServer *http.Server
}

// New builds a server from its configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("dispatch engine is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:    cfg.Addr,
		apiKey:  cfg.APIKey,
		engine:  cfg.Engine,
		logger:  logging.WithComponent(logger, "server"),
		metrics: cfg.Metrics,
		health:  NewHealthChecker(),
	}, nil
}

// Handler returns the fully assembled route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST "+ExecuteToolPath, requireAPIKey(s.apiKey, http.HandlerFunc(s.handleExecuteTool)))
	mux.Handle("GET "+ListToolsPath, requireAPIKey(s.apiKey, http.HandlerFunc(s.handleListTools)))
	mux.Handle("GET "+HealthPath, s.health.LivenessHandler())
	mux.Handle("GET /readyz", s.health.ReadinessHandler())
	return s.instrumented(mux)
}

// Start runs the server until it is shut down. It blocks; call it in a
// goroutine for non-blocking operation.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		IdleTimeout:       defaultIdleTimeout,
	}
	s.health.SetReady(true)

	s.logger.Info("starting server", slog.String("addr", s.addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("shutting down server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleExecuteTool(w http.ResponseWriter, r *http.Request) {
	var req protocol.ToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Warn("malformed request body", logging.Err(err))
		s.writeEnvelope(w, protocol.NewToolErrorResponse(
			fmt.Sprintf("Malformed request body: %v", err)))
		return
	}

	resp := s.engine.Execute(r.Context(), &req)
	s.writeEnvelope(w, resp)
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(s.engine.ListTools()); err != nil {
		s.logger.Error("failed to encode tool catalog", logging.Err(err))
	}
}

// writeEnvelope serializes a tool response. The status is always 200
// so the caller can branch on is_error instead of transport codes.
func (s *Server) writeEnvelope(w http.ResponseWriter, resp *protocol.ToolResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("failed to encode tool response", logging.Err(err))
	}
}

// statusRecorder captures the written status for request metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) instrumented(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.metrics.RecordHTTPRequest(r.Context(), r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}
