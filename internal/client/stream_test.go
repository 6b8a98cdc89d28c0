package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func sseHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, body)
	}
}

func collect(t *testing.T, c *Client) (string, error) {
	t.Helper()
	var sb strings.Builder
	err := c.Stream(context.Background(), "q", func(frag string) error {
		sb.WriteString(frag)
		return nil
	})
	return sb.String(), err
}

func TestStream_Fragments(t *testing.T) {
	t.Parallel()
	c := newTestService(t, sseHandler(
		"event: metadata\ndata: {\"run_id\": \"r1\"}\n\n"+
			"event: data\ndata: \"Lang\"\n\n"+
			"event: data\ndata: \"Chain\\nrocks\"\n\n"+
			"event: end\n\n"))

	got, err := collect(t, c)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if got != "LangChain\nrocks" {
		t.Errorf("got %q", got)
	}
}

func TestStream_ErrorEvent(t *testing.T) {
	t.Parallel()
	c := newTestService(t, sseHandler(
		"event: metadata\ndata: {\"run_id\": \"r1\"}\n\n"+
			"event: data\ndata: \"partial\"\n\n"+
			"event: error\ndata: {\"status_code\": 504, \"message\": \"the language model timed out\"}\n\n"))

	got, err := collect(t, c)
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != 504 {
		t.Fatalf("err = %v, want *StatusError 504", err)
	}
	if got != "partial" {
		t.Errorf("fragments before error = %q", got)
	}
}

func TestStream_NonOKStatus(t *testing.T) {
	t.Parallel()
	c := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"input must be a non-empty question"}`)
	})

	_, err := collect(t, c)
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusBadRequest {
		t.Errorf("err = %v, want *StatusError 400", err)
	}
}

func TestStream_TruncatedWithoutEnd(t *testing.T) {
	t.Parallel()
	c := newTestService(t, sseHandler("event: data\ndata: \"half\"\n\n"))

	if _, err := collect(t, c); err == nil {
		t.Error("expected error for stream without end event")
	}
}

func TestStream_CallbackErrorStops(t *testing.T) {
	t.Parallel()
	c := newTestService(t, sseHandler(
		"event: data\ndata: \"a\"\n\nevent: data\ndata: \"b\"\n\nevent: end\n\n"))

	errStop := errors.New("stop")
	calls := 0
	err := c.Stream(context.Background(), "q", func(string) error {
		calls++
		return errStop
	})
	if !errors.Is(err, errStop) || calls != 1 {
		t.Errorf("err = %v, calls = %d", err, calls)
	}
}
