package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// size returns the number of clients with a live budget.
func (ql *questionLimiter) size() int {
	ql.mu.Lock()
	defer ql.mu.Unlock()
	return len(ql.clients)
}

// newTestLimiter returns a limiter whose clock only moves when the test
// advances it.
func newTestLimiter(t *testing.T, perSec float64, burst int) (*questionLimiter, *time.Time) {
	t.Helper()
	ql, stop := newQuestionLimiter(perSec, burst)
	t.Cleanup(stop)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ql.now = func() time.Time { return now }
	return ql, &now
}

func TestQuestionLimiter_SpendsUntilBurst(t *testing.T) {
	t.Parallel()
	ql, now := newTestLimiter(t, 1, 3)

	if err := ql.spend("10.0.0.1", 2); err != nil {
		t.Fatalf("first spend: %v", err)
	}
	if err := ql.spend("10.0.0.1", 1); err != nil {
		t.Fatalf("second spend: %v", err)
	}

	err := ql.spend("10.0.0.1", 2)
	var limited *RateLimitedError
	if !errors.As(err, &limited) {
		t.Fatalf("err = %v, want *RateLimitedError", err)
	}
	if limited.RetryAfter != 2*time.Second {
		t.Errorf("RetryAfter = %v, want 2s", limited.RetryAfter)
	}

	// A refused request is not charged, so two seconds restore two questions.
	*now = now.Add(2 * time.Second)
	if err := ql.spend("10.0.0.1", 2); err != nil {
		t.Errorf("spend after refill: %v", err)
	}
}

func TestQuestionLimiter_BatchOverBurstNeverFits(t *testing.T) {
	t.Parallel()
	ql, _ := newTestLimiter(t, 100, 5)

	err := ql.spend("10.0.0.1", 6)
	var limited *RateLimitedError
	if !errors.As(err, &limited) {
		t.Fatalf("err = %v, want *RateLimitedError", err)
	}
	if limited.RetryAfter != 0 || limited.Burst != 5 || limited.Questions != 6 {
		t.Errorf("limited = %+v", limited)
	}
	if err := ql.spend("10.0.0.1", 5); err != nil {
		t.Errorf("full burst after refusal: %v", err)
	}
}

func TestQuestionLimiter_PerClientIsolation(t *testing.T) {
	t.Parallel()
	ql, _ := newTestLimiter(t, 0.001, 1)

	_ = ql.spend("192.168.1.1", 1)
	if err := ql.spend("192.168.1.1", 1); err == nil {
		t.Fatal("client A: expected refusal")
	}
	if err := ql.spend("192.168.1.2", 1); err != nil {
		t.Errorf("client B: %v", err)
	}
}

func TestQuestionLimiter_SweepsIdleClients(t *testing.T) {
	t.Parallel()
	ql, now := newTestLimiter(t, 1, 1)

	_ = ql.spend("10.0.0.1", 1)
	*now = now.Add(idleClientTTL + time.Minute)
	_ = ql.spend("10.0.0.2", 1)

	ql.sweep()

	if got := ql.size(); got != 1 {
		t.Errorf("size after sweep = %d, want 1", got)
	}
}

func TestRateLimitedError_RetryAfterSeconds(t *testing.T) {
	t.Parallel()
	tests := []struct {
		wait time.Duration
		want int
	}{
		{time.Second, 1},
		{1500 * time.Millisecond, 2},
		{100 * time.Millisecond, 1},
		{3 * time.Second, 3},
	}
	for _, tt := range tests {
		e := &RateLimitedError{RetryAfter: tt.wait}
		if got := e.retryAfterSeconds(); got != tt.want {
			t.Errorf("retryAfterSeconds(%v) = %d, want %d", tt.wait, got, tt.want)
		}
	}
}

// TestRateLimit_BatchSpendsOnePerQuestion drives the full handler tree: a
// batch of two and one invoke use up a burst of three.
func TestRateLimit_BatchSpendsOnePerQuestion(t *testing.T) {
	t.Parallel()
	s, reg := newTestServer(t, &fakeAnswerer{}, func(c *Config) {
		c.RateLimit = 0.001
		c.RateBurst = 3
	})

	if w := do(t, s, http.MethodPost, "/chat/batch", `{"inputs":["a","b"]}`); w.Code != http.StatusOK {
		t.Fatalf("batch status = %d, want 200", w.Code)
	}
	if w := do(t, s, http.MethodPost, "/chat/invoke", `{"input":"c"}`); w.Code != http.StatusOK {
		t.Fatalf("invoke status = %d, want 200", w.Code)
	}

	w := do(t, s, http.MethodPost, "/chat/stream", `{"input":"d"}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("stream status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header on 429 response")
	}
	var body errorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "rate limit exceeded" {
		t.Errorf("error = %q", body.Error)
	}

	m := findMetric(t, reg, "infohub_chat_rate_limited_total", map[string]string{"mode": modeStream})
	if m == nil || m.GetCounter().GetValue() != 1 {
		t.Errorf("infohub_chat_rate_limited_total{mode=stream} = %v, want 1", m)
	}
	m = findMetric(t, reg, "infohub_chat_requests_total", map[string]string{"mode": modeStream, "outcome": outcomeRateLimited})
	if m == nil || m.GetCounter().GetValue() != 1 {
		t.Errorf("infohub_chat_requests_total{mode=stream,outcome=rate_limited} = %v, want 1", m)
	}
}

func TestRateLimit_BatchOverBurstRejected(t *testing.T) {
	t.Parallel()
	a := &fakeAnswerer{}
	s, _ := newTestServer(t, a, func(c *Config) {
		c.RateLimit = 100
		c.RateBurst = 2
	})

	w := do(t, s, http.MethodPost, "/chat/batch", `{"inputs":["a","b","c"]}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "" {
		t.Errorf("Retry-After = %q, want none for a batch that can never fit", got)
	}
	if a.maxInFlight != 0 {
		t.Error("answerer called for a refused batch")
	}
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	cases := []struct {
		remoteAddr string
		wantIP     string
	}{
		{"127.0.0.1:54321", "127.0.0.1"},
		{"10.0.0.1:80", "10.0.0.1"},
		{"[::1]:8080", "::1"},
		{"noport", "noport"},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tc.remoteAddr
		if got := clientIP(req); got != tc.wantIP {
			t.Errorf("remoteAddr=%q: expected %q, got %q", tc.remoteAddr, tc.wantIP, got)
		}
	}
}
