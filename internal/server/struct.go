package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 0.0.0.0).
	Host string
	// Port is the TCP port to listen on (default: 8000).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response. It must
	// cover a full generation plus streaming.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /ready.
	// If empty, /ready returns 200 with no checks.
	Pingers []Pinger
	// RateLimit is the sustained question rate allowed per IP on /chat/*
	// routes (questions/second). A batch spends one per input.
	// 0 disables rate limiting.
	RateLimit float64
	// RateBurst is the most questions one IP may spend at once. Defaults
	// to DefaultRateBurst if zero.
	RateBurst int
	// BatchConcurrency bounds how many questions of one batch request are
	// answered in parallel. Defaults to DefaultBatchConcurrency if zero.
	BatchConcurrency int
	// MetricsRegistry receives the server's Prometheus collectors.
	// Defaults to prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer is served on GET /metrics.
	// Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// answerer is the question-answering capability the chat handlers call.
// *pipeline.Pipeline satisfies it; tests inject a fake.
type answerer interface {
	// Answer returns the complete answer to question.
	Answer(ctx context.Context, question string) (string, error)
	// Stream writes answer fragments to w as they are produced.
	Stream(ctx context.Context, question string, w io.Writer) error
}

// Server is the Query Service HTTP server.
type Server struct {
	// answerer answers questions for every /chat/* route.
	answerer answerer
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors for this server.
	metrics *serverMetrics
	// limiter holds per-IP question budgets. Nil when rate limiting is off.
	limiter *questionLimiter
	// stopRL stops the limiter's idle-client sweeper on shutdown.
	stopRL func()
}

// invokeRequest is the JSON body for POST /chat/invoke and POST /chat/stream.
// LangServe clients also send "config" and "kwargs"; they are ignored.
type invokeRequest struct {
	Input string `json:"input"`
}

// invokeResponse is the JSON body returned by POST /chat/invoke.
type invokeResponse struct {
	Output   string         `json:"output"`
	Metadata invokeMetadata `json:"metadata"`
}

type invokeMetadata struct {
	RunID string `json:"run_id"`
}

// batchRequest is the JSON body for POST /chat/batch.
type batchRequest struct {
	Inputs []string `json:"inputs"`
}

// batchResponse is the JSON body returned by POST /chat/batch. Output and
// RunIDs are index-aligned with the request's Inputs.
type batchResponse struct {
	Output   []string      `json:"output"`
	Metadata batchMetadata `json:"metadata"`
}

type batchMetadata struct {
	RunIDs []string `json:"run_ids"`
}

// errorResponse is the JSON body of every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}

// rootResponse is the JSON body returned by GET /.
type rootResponse struct {
	Message   string            `json:"message"`
	Endpoints map[string]string `json:"endpoints"`
}
