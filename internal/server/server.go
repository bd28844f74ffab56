// Package server exposes page generation over HTTP. Every endpoint lives
// under /api; responses use the {"status":"success", ...} envelope and
// failures carry {"detail": "..."}.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"pagegen/internal/components"
	"pagegen/internal/config"
	"pagegen/internal/generation"
	"pagegen/internal/logging"
	"pagegen/internal/tasks"
	"pagegen/internal/workspace"
)

// Deps are the services the handlers call into.
type Deps struct {
	Workspace *workspace.Workspace
	Analyzer  *components.Analyzer
	Selector  *components.Selector
	Generator *generation.Generator
	Tasks     *tasks.Store
}

// Server is the pagegen HTTP API.
type Server struct {
	cfg  *config.Config
	deps Deps

	mu       sync.RWMutex
	server   *http.Server
	listener net.Listener
	started  bool
}

// New creates a server. All dependencies are required.
func New(cfg *config.Config, deps Deps) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if deps.Workspace == nil || deps.Analyzer == nil || deps.Selector == nil ||
		deps.Generator == nil || deps.Tasks == nil {
		return nil, errors.New("server dependencies are incomplete")
	}
	return &Server{cfg: cfg, deps: deps}, nil
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.setupRoutes(mux)
	return withRecover(withRequestLog(withCORS(s.cfg.Server.AllowedOrigins, mux)))
}

func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/reset", s.handleReset)

	mux.HandleFunc("POST /api/upload-and-analyze", s.handleUploadAndAnalyze)
	mux.HandleFunc("POST /api/select-components", s.handleSelectComponents)
	mux.HandleFunc("POST /api/update-component-metadata", s.handleUpdateComponentMetadata)

	mux.HandleFunc("POST /api/generate-page", s.handleGeneratePage)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/audit", s.handleAudit)

	mux.HandleFunc("POST /api/tasks/generate-page", s.handleGeneratePageTask)
	mux.HandleFunc("POST /api/tasks/audit", s.handleAuditTask)
	mux.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)
}

// Start listens on the configured address and serves until ctx is
// cancelled or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("server already started")
	}

	addr := s.cfg.Addr()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.GetReadTimeout(),
		WriteTimeout: s.cfg.GetWriteTimeout(),
		IdleTimeout:  120 * time.Second,
	}
	s.started = true
	srv := s.server
	s.mu.Unlock()

	logging.Server("Listening on %s", listener.Addr())

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Stop()
		case <-stopped:
		}
	}()

	err = srv.Serve(listener)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.started = false
	logging.Server("Server stopped")
	return nil
}

// ListenAddr returns the bound address, or "" before Start.
func (s *Server) ListenAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
