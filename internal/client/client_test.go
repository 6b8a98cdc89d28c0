package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// newTestService starts an httptest server running h and returns a Client for it.
func newTestService(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", opts...)
}

func TestInvoke_Success(t *testing.T) {
	t.Parallel()
	c := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/invoke" || r.Method != http.MethodPost {
			t.Errorf("got %s %s", r.Method, r.URL.Path)
		}
		var req invokeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		fmt.Fprintf(w, `{"output":"answer to %s","metadata":{"run_id":"x"}}`, req.Input)
	})

	got, err := c.Invoke(context.Background(), "What is LangChain?")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != "answer to What is LangChain?" {
		t.Errorf("got %q", got)
	}
}

func TestInvoke_EmptyOutputIsNotMissing(t *testing.T) {
	t.Parallel()
	c := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"output":""}`)
	})

	got, err := c.Invoke(context.Background(), "q")
	if err != nil || got != "" {
		t.Errorf("got (%q, %v), want empty answer and nil error", got, err)
	}
}

func TestInvoke_MissingOutput(t *testing.T) {
	t.Parallel()
	c := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"metadata":{}}`)
	})

	if _, err := c.Invoke(context.Background(), "q"); !errors.Is(err, ErrNoOutput) {
		t.Errorf("err = %v, want ErrNoOutput", err)
	}
}

func TestInvoke_StatusError(t *testing.T) {
	t.Parallel()
	c := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error":"document retrieval is unavailable"}`)
	})

	_, err := c.Invoke(context.Background(), "q")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if se.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d", se.StatusCode)
	}
	if se.Message != "document retrieval is unavailable" {
		t.Errorf("Message = %q", se.Message)
	}
}

func TestInvoke_Timeout(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	c := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, WithInvokeTimeout(50*time.Millisecond))

	_, err := c.Invoke(context.Background(), "q")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("server saw %d requests, want exactly 1 (no retry)", n)
	}
}

func TestInvoke_Unreachable(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url).Invoke(context.Background(), "q")
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("err = %v, want ErrUnreachable", err)
	}
}

func TestBatch(t *testing.T) {
	t.Parallel()
	c := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		var req batchRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		out := make([]string, len(req.Inputs))
		for i, q := range req.Inputs {
			out[i] = strings.ToUpper(q)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"output": out})
	})

	got, err := c.Batch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Errorf("got %v", got)
	}
}

func TestBatch_LengthMismatch(t *testing.T) {
	t.Parallel()
	c := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"output":["only one"]}`)
	})

	if _, err := c.Batch(context.Background(), []string{"a", "b"}); err == nil {
		t.Error("expected error for misaligned batch output")
	}
}

func TestProbe(t *testing.T) {
	t.Parallel()

	alive := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path = %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"status":"healthy"}`)
	})
	if l := alive.Probe(context.Background()); !l.Alive || l.Err != nil {
		t.Errorf("Probe = %+v, want alive", l)
	}

	broken := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	l := broken.Probe(context.Background())
	var se *StatusError
	if l.Alive || !errors.As(l.Err, &se) {
		t.Errorf("Probe = %+v, want *StatusError", l)
	}

	slow := newTestService(t, func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, WithHealthTimeout(20*time.Millisecond))
	if l := slow.Probe(context.Background()); l.Alive || !errors.Is(l.Err, ErrTimeout) {
		t.Errorf("Probe = %+v, want ErrTimeout", l)
	}
}

func TestStatusError_Error(t *testing.T) {
	t.Parallel()
	if got := (&StatusError{StatusCode: 502}).Error(); !strings.Contains(got, "502") {
		t.Errorf("Error() = %q", got)
	}
	if got := (&StatusError{StatusCode: 504, Message: "the language model timed out"}).Error(); !strings.Contains(got, "timed out") {
		t.Errorf("Error() = %q", got)
	}
}
