// Package server implements the Query Service: the HTTP API that answers
// documentation questions through the RAG pipeline. Routes follow the
// LangServe layout (/chat/invoke, /chat/batch, /chat/stream) so existing
// LangServe clients work unchanged. The server is started by `infohub serve`.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/infohub-go/internal/logging"
)

// Defaults applied by New when the corresponding Config field is zero.
const (
	defaultHost = "0.0.0.0"
	defaultPort = 8000

	// DefaultBatchConcurrency is how many questions of one batch are
	// answered in parallel.
	DefaultBatchConcurrency = 4
)

// New constructs a Server that answers questions with a. *pipeline.Pipeline
// is the production answerer.
func New(a answerer, cfg *Config) (*Server, error) {
	if a == nil {
		return nil, fmt.Errorf("server: answerer must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = defaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = DefaultRateBurst
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = DefaultBatchConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		answerer: a,
		cfg:      cfg,
		log:      cfg.Logger,
		pingers:  cfg.Pingers,
		metrics:  newServerMetrics(cfg.MetricsRegistry),
		stopRL:   func() {},
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// routes builds the handler tree: request logging, then CORS, then the mux.
// The /chat/* handlers charge their questions to a per-IP budget when a rate
// limit is configured.
func (s *Server) routes() http.Handler {
	if s.cfg.RateLimit > 0 {
		s.limiter, s.stopRL = newQuestionLimiter(s.cfg.RateLimit, s.cfg.RateBurst)
	}

	route := func(name string, h http.HandlerFunc) http.Handler {
		return s.instrument(name, h)
	}

	mux := http.NewServeMux()
	mux.Handle("POST /chat/invoke", route("invoke", s.handleInvoke))
	mux.Handle("POST /chat/batch", route("batch", s.handleBatch))
	mux.Handle("POST /chat/stream", route("stream", s.handleStream))
	mux.Handle("GET /health", route("health", s.handleHealth))
	mux.Handle("GET /ready", route("ready", s.handleReady))
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.cfg.MetricsGatherer, promhttp.HandlerOpts{}))
	mux.Handle("GET /{$}", route("root", s.handleRoot))

	return requestLogger(s.log, cors(mux))
}

// Handler returns the server's root handler. Tests drive it with httptest.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()

	errCh := make(chan error, 1)

	go func() {
		s.log.Info("infohub query service listening",
			slog.String("addr", "http://"+s.httpServer.Addr),
		)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.log.Info("shutting down", slog.Duration("timeout", s.cfg.ShutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}
