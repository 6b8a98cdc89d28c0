package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/54b3r/infohub-go/internal/logging"
	"github.com/54b3r/infohub-go/internal/pipeline"
)

// errBadRequest marks request bodies that could not be decoded.
var errBadRequest = errors.New("invalid request body")

// Outcome label values for chat metrics.
const (
	outcomeOK          = "ok"
	outcomeInvalid     = "invalid"
	outcomeRateLimited = "rate_limited"
	outcomeTimeout     = "timeout"
	outcomeError       = "error"
)

// statusFor maps a pipeline or decoding error to an HTTP status code.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	var limited *RateLimitedError
	switch {
	case errors.As(err, &limited):
		return http.StatusTooManyRequests
	case errors.Is(err, errBadRequest), errors.Is(err, pipeline.ErrEmptyQuestion):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrQuestionTooLong), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, pipeline.ErrRetrievalUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, pipeline.ErrGenerationUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, pipeline.ErrGenerationTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// outcomeFor maps an error to its chat metrics outcome label.
func outcomeFor(err error) string {
	switch status := statusFor(err); {
	case err == nil:
		return outcomeOK
	case status == http.StatusTooManyRequests:
		return outcomeRateLimited
	case status == http.StatusGatewayTimeout:
		return outcomeTimeout
	case status < http.StatusInternalServerError:
		return outcomeInvalid
	default:
		return outcomeError
	}
}

// publicMessage returns the client-facing message for err. Client errors
// carry the sentinel text; server faults are reported without internals.
func publicMessage(err error) string {
	switch statusFor(err) {
	case http.StatusBadRequest:
		if errors.Is(err, pipeline.ErrEmptyQuestion) {
			return "input must be a non-empty question"
		}
		return errBadRequest.Error()
	case http.StatusTooManyRequests:
		var limited *RateLimitedError
		if errors.As(err, &limited) && limited.RetryAfter == 0 {
			return "batch has more questions than the rate limit burst allows"
		}
		return "rate limit exceeded"
	case http.StatusRequestEntityTooLarge:
		return "question too long"
	case http.StatusServiceUnavailable:
		return "document retrieval is unavailable"
	case http.StatusBadGateway:
		return "the language model is unavailable"
	case http.StatusGatewayTimeout:
		return "the language model timed out"
	default:
		return "internal server error"
	}
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("response encode error", slog.Any("error", err))
	}
}

// writeError logs err and writes the matching status with an {"error": msg} body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	var limited *RateLimitedError
	if errors.As(err, &limited) && limited.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(limited.retryAfterSeconds()))
	}
	log := logging.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", slog.Int("status", status), slog.Any("error", err))
	} else {
		log.Info("request rejected", slog.Int("status", status), slog.Any("error", err))
	}
	writeJSON(w, r, status, errorResponse{Error: publicMessage(err)})
}
