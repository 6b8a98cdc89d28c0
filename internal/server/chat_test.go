package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/54b3r/infohub-go/internal/pipeline"
)

func TestHandleInvoke_Success(t *testing.T) {
	t.Parallel()
	a := &fakeAnswerer{answers: map[string]string{
		"What is LangChain?": "LangChain is a framework for developing applications powered by language models.",
	}}
	s, _ := newTestServer(t, a, nil)

	w := do(t, s, http.MethodPost, "/chat/invoke", `{"input":"What is LangChain?","config":{},"kwargs":{}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp invokeResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(resp.Output, "framework") {
		t.Errorf("output = %q", resp.Output)
	}
	if resp.Metadata.RunID == "" {
		t.Error("metadata.run_id is empty")
	}
}

func TestHandleInvoke_Errors(t *testing.T) {
	t.Parallel()
	a := &fakeAnswerer{errs: map[string]error{
		"long":    pipeline.ErrQuestionTooLong,
		"index":   pipeline.ErrRetrievalUnavailable,
		"model":   pipeline.ErrGenerationUnavailable,
		"slow":    pipeline.ErrGenerationTimeout,
		"unknown": errors.New("surprise"),
	}}
	s, _ := newTestServer(t, a, nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"input":`, http.StatusBadRequest},
		{"wrong type", `{"input":42}`, http.StatusBadRequest},
		{"missing input", `{}`, http.StatusBadRequest},
		{"blank input", `{"input":"   "}`, http.StatusBadRequest},
		{"too long", `{"input":"long"}`, http.StatusRequestEntityTooLarge},
		{"retrieval", `{"input":"index"}`, http.StatusServiceUnavailable},
		{"generation", `{"input":"model"}`, http.StatusBadGateway},
		{"timeout", `{"input":"slow"}`, http.StatusGatewayTimeout},
		{"other", `{"input":"unknown"}`, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := do(t, s, http.MethodPost, "/chat/invoke", tt.body)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
			var resp errorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Error == "" {
				t.Error("error body is empty")
			}
			if strings.Contains(resp.Error, "surprise") {
				t.Error("internal error text leaked to client")
			}
		})
	}
}

func TestHandleInvoke_BodyTooLarge(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, &fakeAnswerer{}, nil)

	body := `{"input":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	w := do(t, s, http.MethodPost, "/chat/invoke", body)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}

func TestHandleBatch_IndexAligned(t *testing.T) {
	t.Parallel()
	a := &fakeAnswerer{delay: 5 * time.Millisecond}
	s, _ := newTestServer(t, a, func(c *Config) { c.BatchConcurrency = 2 })

	inputs := []string{"q0", "q1", "q2", "q3", "q4", "q5"}
	body, _ := json.Marshal(batchRequest{Inputs: inputs})
	w := do(t, s, http.MethodPost, "/chat/batch", string(body))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp batchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Output) != len(inputs) || len(resp.Metadata.RunIDs) != len(inputs) {
		t.Fatalf("lengths = %d/%d, want %d", len(resp.Output), len(resp.Metadata.RunIDs), len(inputs))
	}
	for i, q := range inputs {
		if resp.Output[i] != "A:"+q {
			t.Errorf("output[%d] = %q, want %q", i, resp.Output[i], "A:"+q)
		}
	}
	seen := map[string]bool{}
	for _, id := range resp.Metadata.RunIDs {
		if id == "" || seen[id] {
			t.Errorf("run id %q empty or duplicated", id)
		}
		seen[id] = true
	}
	if a.maxInFlight > 2 {
		t.Errorf("max in flight = %d, want <= 2", a.maxInFlight)
	}
}

func TestHandleBatch_Empty(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, &fakeAnswerer{}, nil)

	w := do(t, s, http.MethodPost, "/chat/batch", `{"inputs":[]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"output":[]`) {
		t.Errorf("body = %s, want empty output array", w.Body.String())
	}
}

func TestHandleBatch_FailureFailsWholeBatch(t *testing.T) {
	t.Parallel()
	a := &fakeAnswerer{errs: map[string]error{
		"bad-model": pipeline.ErrGenerationUnavailable,
		"bad-index": pipeline.ErrRetrievalUnavailable,
	}}
	s, _ := newTestServer(t, a, func(c *Config) { c.BatchConcurrency = 1 })

	w := do(t, s, http.MethodPost, "/chat/batch", `{"inputs":["ok","bad-model","bad-index"]}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502 from first failing index", w.Code)
	}
	if strings.Contains(w.Body.String(), `"output"`) {
		t.Errorf("partial output leaked: %s", w.Body.String())
	}
}

// sseEvent is one parsed server-sent event.
type sseEvent struct {
	name string
	data string
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	var cur sseEvent
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if cur.name != "" {
				events = append(events, cur)
			}
			cur = sseEvent{}
		case strings.HasPrefix(line, "event: "):
			cur.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.data = strings.TrimPrefix(line, "data: ")
		}
	}
	return events
}

func TestHandleStream_Events(t *testing.T) {
	t.Parallel()
	a := &fakeAnswerer{fragments: []string{"Lang", "Chain is\na framework."}}
	s, _ := newTestServer(t, a, nil)

	w := do(t, s, http.MethodPost, "/chat/stream", `{"input":"What is LangChain?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	events := parseSSE(t, w.Body.String())
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4: %+v", len(events), events)
	}
	if events[0].name != "metadata" || !strings.Contains(events[0].data, "run_id") {
		t.Errorf("first event = %+v, want metadata with run_id", events[0])
	}
	var answer strings.Builder
	for _, ev := range events[1:3] {
		if ev.name != "data" {
			t.Fatalf("event = %+v, want data", ev)
		}
		var frag string
		if err := json.Unmarshal([]byte(ev.data), &frag); err != nil {
			t.Fatalf("fragment %q is not a JSON string: %v", ev.data, err)
		}
		answer.WriteString(frag)
	}
	if answer.String() != "LangChain is\na framework." {
		t.Errorf("concatenated = %q", answer.String())
	}
	if events[3].name != "end" {
		t.Errorf("last event = %+v, want end", events[3])
	}
}

func TestHandleStream_ErrorBeforeFirstFragment(t *testing.T) {
	t.Parallel()
	a := &fakeAnswerer{errs: map[string]error{"q": pipeline.ErrRetrievalUnavailable}}
	s, _ := newTestServer(t, a, nil)

	w := do(t, s, http.MethodPost, "/chat/stream", `{"input":"q"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestHandleStream_ErrorMidStream(t *testing.T) {
	t.Parallel()
	a := &fakeAnswerer{fragments: []string{"partial"}, streamErr: pipeline.ErrGenerationTimeout}
	s, _ := newTestServer(t, a, nil)

	w := do(t, s, http.MethodPost, "/chat/stream", `{"input":"q"}`)
	events := parseSSE(t, w.Body.String())
	last := events[len(events)-1]
	if last.name != "error" {
		t.Fatalf("last event = %+v, want error", last)
	}
	if !strings.Contains(last.data, `"status_code":504`) {
		t.Errorf("error data = %s, want status_code 504", last.data)
	}
	for _, ev := range events {
		if ev.name == "end" {
			t.Error("end event sent after error")
		}
	}
}

func TestHandleStream_EmptyAnswerStillFramed(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, &fakeAnswerer{}, nil)

	w := do(t, s, http.MethodPost, "/chat/stream", `{"input":"q"}`)
	events := parseSSE(t, w.Body.String())
	if len(events) != 2 || events[0].name != "metadata" || events[1].name != "end" {
		t.Errorf("events = %+v, want metadata then end", events)
	}
}
