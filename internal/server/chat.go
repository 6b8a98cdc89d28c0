package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/54b3r/infohub-go/internal/logging"
)

// maxBodyBytes caps request bodies on /chat/* routes.
const maxBodyBytes = 1 << 20

// decodeBody reads a JSON request body into v, wrapping syntax and type
// errors in errBadRequest. Oversized bodies keep their *http.MaxBytesError.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}

// handleInvoke handles POST /chat/invoke: one question, one answer.
func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var err error
	defer func() { s.metrics.observeChat(modeInvoke, err, time.Since(start).Seconds()) }()

	var req invokeRequest
	if err = decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err = s.admit(r, modeInvoke, 1); err != nil {
		writeError(w, r, err)
		return
	}

	runID := uuid.NewString()
	ctx := logging.WithLogger(r.Context(), logging.FromContext(r.Context()).With(slog.String("run_id", runID)))

	var answer string
	answer, err = s.answerer.Answer(ctx, req.Input)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, invokeResponse{
		Output:   answer,
		Metadata: invokeMetadata{RunID: runID},
	})
}

// handleBatch handles POST /chat/batch. Questions are answered concurrently,
// at most BatchConcurrency at a time, and the output is index-aligned with
// the inputs. Any failure fails the whole batch with the status of the
// lowest failing index.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var err error
	defer func() { s.metrics.observeChat(modeBatch, err, time.Since(start).Seconds()) }()

	var req batchRequest
	if err = decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err = s.admit(r, modeBatch, len(req.Inputs)); err != nil {
		writeError(w, r, err)
		return
	}

	n := len(req.Inputs)
	resp := batchResponse{
		Output:   make([]string, n),
		Metadata: batchMetadata{RunIDs: make([]string, n)},
	}
	errs := make([]error, n)

	// A failed element cancels the questions that have not started yet.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var g errgroup.Group
	g.SetLimit(s.cfg.BatchConcurrency)
	for i, question := range req.Inputs {
		runID := uuid.NewString()
		resp.Metadata.RunIDs[i] = runID
		g.Go(func() error {
			if ctx.Err() != nil {
				errs[i] = ctx.Err()
				return nil
			}
			log := logging.FromContext(ctx).With(slog.String("run_id", runID), slog.Int("index", i))
			answer, err := s.answerer.Answer(logging.WithLogger(ctx, log), question)
			if err != nil {
				errs[i] = err
				cancel()
				return nil
			}
			resp.Output[i] = answer
			return nil
		})
	}
	_ = g.Wait()

	if err = firstBatchError(errs); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// firstBatchError returns the lowest-index error that is not a cancellation
// caused by an earlier failure, falling back to the lowest-index error.
func firstBatchError(errs []error) error {
	var first error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if first == nil {
			first = err
		}
		if !errors.Is(err, context.Canceled) {
			return fmt.Errorf("batch: %w", err)
		}
	}
	if first != nil {
		return fmt.Errorf("batch: %w", first)
	}
	return nil
}

// handleStream handles POST /chat/stream, emitting the answer as
// Server-Sent Events. Errors raised before the first fragment are returned
// as a normal JSON error response; later errors arrive as an error event.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var err error
	defer func() { s.metrics.observeChat(modeStream, err, time.Since(start).Seconds()) }()

	var req invokeRequest
	if err = decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err = s.admit(r, modeStream, 1); err != nil {
		writeError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		err = errors.New("streaming not supported by response writer")
		writeError(w, r, err)
		return
	}

	s.metrics.chatActiveStreams.Inc()
	defer s.metrics.chatActiveStreams.Dec()

	runID := uuid.NewString()
	log := logging.FromContext(r.Context()).With(slog.String("run_id", runID))
	ctx := logging.WithLogger(r.Context(), log)

	sw := &sseWriter{w: w, flusher: flusher, runID: runID}
	err = s.answerer.Stream(ctx, req.Input, sw)

	switch {
	case err != nil && !sw.started:
		writeError(w, r, err)
	case err != nil:
		log.Error("stream failed after first fragment", slog.Any("error", err))
		if ferr := sw.fail(statusFor(err), publicMessage(err)); ferr != nil {
			log.Debug("stream error event not delivered", slog.Any("error", ferr))
		}
	default:
		if eerr := sw.end(); eerr != nil {
			log.Debug("stream end event not delivered", slog.Any("error", eerr))
		}
	}
}
