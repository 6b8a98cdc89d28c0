package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// labelHandler partitions HTTP metrics by logical route name rather than raw path.
const labelHandler = "handler"

// Chat mode label values.
const (
	modeInvoke = "invoke"
	modeBatch  = "batch"
	modeStream = "stream"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New so that tests can inject a fresh
// prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// chatRequestsTotal counts answered questions by mode and outcome.
	// A batch of n questions counts once with mode="batch".
	chatRequestsTotal *prometheus.CounterVec

	// chatDurationSeconds records the wall-clock duration of each /chat/* request.
	chatDurationSeconds *prometheus.HistogramVec

	// chatActiveStreams is the number of /chat/stream responses currently open.
	chatActiveStreams prometheus.Gauge

	// chatRateLimited counts /chat requests refused for an exhausted question budget.
	chatRateLimited *prometheus.CounterVec

	// httpRequestsTotal counts HTTP requests by method, handler, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		chatRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "infohub",
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Total number of /chat requests completed, partitioned by mode and outcome.",
		}, []string{"mode", "outcome"}),

		chatDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "infohub",
			Subsystem: "chat",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of /chat requests from receipt to last byte.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"mode", "outcome"}),

		chatActiveStreams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "infohub",
			Subsystem: "chat",
			Name:      "active_streams",
			Help:      "Number of /chat/stream responses currently open.",
		}),

		chatRateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "infohub",
			Subsystem: "chat",
			Name:      "rate_limited_total",
			Help:      "Total number of /chat requests refused because the client's question budget was spent, partitioned by mode.",
		}, []string{"mode"}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "infohub",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "infohub",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}

// observeChat records one completed chat request.
func (m *serverMetrics) observeChat(mode string, err error, seconds float64) {
	outcome := outcomeFor(err)
	m.chatRequestsTotal.WithLabelValues(mode, outcome).Inc()
	m.chatDurationSeconds.WithLabelValues(mode, outcome).Observe(seconds)
}
