package server

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// sseWriter emits the /chat/stream event sequence. Headers and the metadata
// event are sent lazily on the first fragment, so a failure before any
// output can still be reported with a normal HTTP status.
//
// Frames:
//
//	event: metadata\ndata: {"run_id": "..."}\n\n
//	event: data\ndata: "<JSON string fragment>"\n\n
//	event: error\ndata: {"status_code": N, "message": "..."}\n\n
//	event: end\n\n
type sseWriter struct {
	// w is the underlying response writer.
	w http.ResponseWriter
	// flusher flushes buffered data to the client after each frame.
	flusher http.Flusher
	// runID is sent in the metadata event.
	runID string
	// started is set once headers and the metadata event have been written.
	started bool
}

// start writes the SSE headers and the metadata event if not yet sent.
func (s *sseWriter) start() error {
	if s.started {
		return nil
	}
	s.started = true

	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)

	return s.event("metadata", invokeMetadata{RunID: s.runID})
}

// Write sends p as one data event whose payload is p encoded as a JSON string.
// Encoding as JSON keeps newlines in the fragment from breaking SSE framing.
func (s *sseWriter) Write(p []byte) (int, error) {
	if err := s.start(); err != nil {
		return 0, err
	}
	if err := s.event("data", string(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// end sends the terminal end event.
func (s *sseWriter) end() error {
	if err := s.start(); err != nil {
		return err
	}
	if _, err := fmt.Fprint(s.w, "event: end\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// fail sends an in-band error event after streaming has begun.
func (s *sseWriter) fail(status int, message string) error {
	return s.event("error", struct {
		StatusCode int    `json:"status_code"`
		Message    string `json:"message"`
	}{status, message})
}

// event writes one named frame with v JSON-encoded on a single data line.
func (s *sseWriter) event(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("sse: encode %s: %w", name, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
