// Package client is the HTTP client for the InfoHub Query Service. It is used
// by the chat TUI and by `infohub ask`.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultInvokeTimeout bounds one /chat/invoke round trip.
	DefaultInvokeTimeout = 30 * time.Second
	// DefaultHealthTimeout bounds one /health probe.
	DefaultHealthTimeout = 2 * time.Second
)

var (
	// ErrUnreachable is returned when no connection to the server could be made.
	ErrUnreachable = errors.New("query service unreachable")
	// ErrTimeout is returned when a request exceeded its time budget.
	ErrTimeout = errors.New("query service request timed out")
	// ErrNoOutput is returned when a 200 response carries no "output" field.
	ErrNoOutput = errors.New("response has no output")
)

// StatusError is returned when the server answers with a non-200 status, or
// reports a failure in-band on a stream.
type StatusError struct {
	// StatusCode is the HTTP status reported by the server.
	StatusCode int
	// Message is the server's error text, if any.
	Message string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("query service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("query service returned status %d: %s", e.StatusCode, e.Message)
}

// Client talks to one Query Service instance.
type Client struct {
	baseURL       string
	http          *http.Client
	invokeTimeout time.Duration
	healthTimeout time.Duration
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithInvokeTimeout overrides DefaultInvokeTimeout.
func WithInvokeTimeout(d time.Duration) Option {
	return func(c *Client) { c.invokeTimeout = d }
}

// WithHealthTimeout overrides DefaultHealthTimeout.
func WithHealthTimeout(d time.Duration) Option {
	return func(c *Client) { c.healthTimeout = d }
}

// New returns a Client for the service at baseURL (e.g. http://localhost:8000).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		http:          &http.Client{},
		invokeTimeout: DefaultInvokeTimeout,
		healthTimeout: DefaultHealthTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the service URL this client targets.
func (c *Client) BaseURL() string { return c.baseURL }

type invokeRequest struct {
	Input string `json:"input"`
}

type invokeResponse struct {
	Output *string `json:"output"`
}

type batchRequest struct {
	Inputs []string `json:"inputs"`
}

type batchResponse struct {
	Output []string `json:"output"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Invoke asks one question via POST /chat/invoke. A 200 response without an
// output field returns ErrNoOutput.
func (c *Client) Invoke(ctx context.Context, question string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.invokeTimeout)
	defer cancel()

	var resp invokeResponse
	if err := c.postJSON(ctx, "/chat/invoke", invokeRequest{Input: question}, &resp); err != nil {
		return "", err
	}
	if resp.Output == nil {
		return "", ErrNoOutput
	}
	return *resp.Output, nil
}

// Batch asks several questions via POST /chat/batch and returns the answers
// in input order. It has no timeout of its own; ctx bounds the call.
func (c *Client) Batch(ctx context.Context, questions []string) ([]string, error) {
	var resp batchResponse
	if err := c.postJSON(ctx, "/chat/batch", batchRequest{Inputs: questions}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Output) != len(questions) {
		return nil, fmt.Errorf("client: batch returned %d answers for %d questions", len(resp.Output), len(questions))
	}
	return resp.Output, nil
}

// Health calls GET /health with the health timeout. Any non-200 status is
// returned as a *StatusError.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("client: build health request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return classify(ctx, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

// Liveness is the outcome of a health probe. It feeds the status indicator
// only and is never shown as a chat message.
type Liveness struct {
	// Alive is true when /health answered 200.
	Alive bool
	// Err is the probe failure when Alive is false.
	Err error
}

// Probe runs Health and folds the result into a Liveness value.
func (c *Client) Probe(ctx context.Context) Liveness {
	if err := c.Health(ctx); err != nil {
		return Liveness{Err: err}
	}
	return Liveness{Alive: true}
}

// postJSON sends body to path and decodes a 200 response into out.
func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	resp, err := c.post(ctx, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if cerr := classify(ctx, err); errors.Is(cerr, ErrTimeout) {
			return cerr
		}
		return fmt.Errorf("client: decode %s response: %w", path, err)
	}
	return nil
}

// post sends body as JSON and returns the raw response.
func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("client: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(ctx, err)
	}
	return resp, nil
}

// statusError builds a *StatusError from a non-200 response, reading the
// server's {"error": msg} body when present.
func statusError(resp *http.Response) error {
	se := &StatusError{StatusCode: resp.StatusCode}
	var body errorBody
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil {
		se.Message = body.Error
	}
	return se
}

// classify maps a transport error to ErrTimeout or ErrUnreachable when it
// is one, keeping the original error in the chain.
func classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("client: %w", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	return fmt.Errorf("client: %w", err)
}
