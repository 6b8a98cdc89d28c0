package server

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/54b3r/infohub-go/internal/logging"
)

// Question rate defaults used by `infohub serve` when RATE_LIMIT_RPS and
// RATE_LIMIT_BURST are unset. Every question runs a paid generation, so the
// budget is counted in questions: a batch of n questions costs n.
const (
	DefaultRateLimit = 10.0
	DefaultRateBurst = 20
)

// idleClientTTL is how long a client's bucket survives without questions.
const idleClientTTL = 5 * time.Minute

// RateLimitedError reports a /chat/* request refused because the client
// has spent its question budget.
type RateLimitedError struct {
	// Questions is what the request asked to spend.
	Questions int
	// Burst is the most questions a client may spend at once.
	Burst int
	// RetryAfter is how long until the request would fit. Zero when it
	// never fits because Questions exceeds Burst.
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter == 0 {
		return fmt.Sprintf("rate limit: %d questions exceed the burst of %d", e.Questions, e.Burst)
	}
	return fmt.Sprintf("rate limit: %d questions available again in %s", e.Questions, e.RetryAfter)
}

// retryAfterSeconds rounds RetryAfter up to whole seconds for the header.
func (e *RateLimitedError) retryAfterSeconds() int {
	return int((e.RetryAfter + time.Second - 1) / time.Second)
}

// questionBudget is one client's token bucket.
type questionBudget struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// questionLimiter keeps a question budget per client IP. Idle clients are
// dropped once a minute.
type questionLimiter struct {
	mu      sync.Mutex
	clients map[string]*questionBudget
	perSec  rate.Limit
	burst   int
	now     func() time.Time
}

// newQuestionLimiter starts a limiter allowing perSec questions per client
// with bursts of up to burst. Call the returned func to stop its sweeper.
func newQuestionLimiter(perSec float64, burst int) (*questionLimiter, func()) {
	ql := &questionLimiter{
		clients: make(map[string]*questionBudget),
		perSec:  rate.Limit(perSec),
		burst:   burst,
		now:     time.Now,
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				ql.sweep()
			}
		}
	}()

	return ql, func() { close(done) }
}

// spend charges questions to client, or returns a *RateLimitedError and
// charges nothing.
func (ql *questionLimiter) spend(client string, questions int) error {
	now := ql.now()

	ql.mu.Lock()
	b, ok := ql.clients[client]
	if !ok {
		b = &questionBudget{bucket: rate.NewLimiter(ql.perSec, ql.burst)}
		ql.clients[client] = b
	}
	b.lastSeen = now
	ql.mu.Unlock()

	res := b.bucket.ReserveN(now, questions)
	if !res.OK() {
		return &RateLimitedError{Questions: questions, Burst: ql.burst}
	}
	if wait := res.DelayFrom(now); wait > 0 {
		res.CancelAt(now)
		return &RateLimitedError{Questions: questions, Burst: ql.burst, RetryAfter: wait}
	}
	return nil
}

// sweep forgets clients idle for longer than idleClientTTL.
func (ql *questionLimiter) sweep() {
	ql.mu.Lock()
	defer ql.mu.Unlock()

	cutoff := ql.now().Add(-idleClientTTL)
	for client, b := range ql.clients {
		if b.lastSeen.Before(cutoff) {
			delete(ql.clients, client)
		}
	}
}

// admit charges the questions of one /chat/* request to the caller's budget.
// Requests always cost at least one question. It returns nil when rate
// limiting is off.
func (s *Server) admit(r *http.Request, mode string, questions int) error {
	if s.limiter == nil {
		return nil
	}
	questions = max(questions, 1)
	client := clientIP(r)
	err := s.limiter.spend(client, questions)
	if err != nil {
		s.metrics.chatRateLimited.WithLabelValues(mode).Inc()
		logging.FromContext(r.Context()).Warn("question budget exhausted",
			slog.String("ip", client),
			slog.String("mode", mode),
			slog.Int("questions", questions),
		)
	}
	return err
}

// clientIP extracts the remote IP from the request, stripping the port.
// X-Forwarded-For is not trusted; put a proxy that rewrites RemoteAddr in
// front of the service if it runs behind a load balancer.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
