package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/philipexavier/proxy-rasa/internal/auth"
	"github.com/philipexavier/proxy-rasa/internal/config"
	"github.com/philipexavier/proxy-rasa/internal/metrics"
	"github.com/philipexavier/proxy-rasa/internal/pipeline"
	"github.com/philipexavier/proxy-rasa/internal/upstream"
)

// Server is the main proxy HTTP server.
type Server struct {
	Config     *config.ServerConfig
	httpServer *http.Server
	pipeline   *pipeline.Pipeline
	metrics    *metrics.Collector

	dumpOut     io.Writer
	debugDumpMu sync.Mutex
}

const serverAccessTokenError = "Invalid or missing server access token"

// New creates a new proxy server with all routes registered. Backend
// credentials are resolved here so misconfiguration fails at startup.
func New(cfg *config.ServerConfig) (*Server, error) {
	var collector *metrics.Collector
	if cfg.MetricsEnabled {
		collector = metrics.NewCollector(nil)
	}

	backend, err := auth.NewBackendClient(context.Background(), cfg, &http.Client{})
	if err != nil {
		return nil, fmt.Errorf("failed to configure backend credentials: %w", err)
	}
	d := upstream.NewDispatcher(cfg,
		upstream.WithBackendClient(backend),
		upstream.WithObserver(collector),
	)
	return newServer(cfg, d, collector), nil
}

// newServer wires routes and middleware around an arbitrary dispatcher.
func newServer(cfg *config.ServerConfig, d pipeline.Dispatcher, collector *metrics.Collector) *Server {
	s := &Server{
		Config:  cfg,
		metrics: collector,
		pipeline: &pipeline.Pipeline{
			Config:   cfg,
			Upstream: d,
			Metrics:  collector,
		},
		dumpOut: os.Stderr,
	}

	mux := http.NewServeMux()

	// Health
	mux.HandleFunc("GET /{$}", s.handleHealth)
	mux.HandleFunc("GET /health", s.handleHealth)

	// OpenAI-compatible routes
	mux.HandleFunc("POST /v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("GET /v1/models", s.handleListModels)

	if collector != nil {
		mux.Handle("GET /metrics", collector.Handler())
	}

	// CORS answers every OPTIONS preflight before the mux.
	handler := s.debugMiddleware(mux)
	handler = s.verboseMiddleware(handler)
	handler = s.authMiddleware(handler)
	handler = s.recoveryMiddleware(handler)
	handler = s.accessLogMiddleware(handler)
	handler = s.requestIDMiddleware(handler)
	handler = s.corsMiddleware(handler)

	s.httpServer = &http.Server{
		Addr:    cfg.Addr(),
		Handler: handler,
		// Request bodies are small JSON documents.
		ReadTimeout: 30 * time.Second,
		// Must cover the whole fallback chain: up to four attempts, each
		// bounded by the backend timeout.
		WriteTimeout: 4*cfg.BackendTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the proxy server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
