package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// streamError is the payload of an in-band "error" event.
type streamError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}

// Stream asks one question via POST /chat/stream and calls onFragment for
// every answer fragment in arrival order. It returns nil after the end event,
// a *StatusError for an error event or non-200 status, and the callback's
// error if onFragment fails. ctx bounds the whole stream.
func (c *Client) Stream(ctx context.Context, question string, onFragment func(string) error) error {
	resp, err := c.post(ctx, "/chat/stream", invokeRequest{Input: question})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)

	var event string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			event = ""
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			if event == "end" {
				return nil
			}
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if err := handleEvent(event, data, onFragment); err != nil {
				return err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return classify(ctx, err)
	}
	return errors.New("client: stream closed before end event")
}

// handleEvent dispatches one data line according to its event name.
func handleEvent(event, data string, onFragment func(string) error) error {
	switch event {
	case "data":
		var frag string
		if err := json.Unmarshal([]byte(data), &frag); err != nil {
			return fmt.Errorf("client: decode stream fragment: %w", err)
		}
		return onFragment(frag)
	case "error":
		var se streamError
		if err := json.Unmarshal([]byte(data), &se); err != nil {
			return fmt.Errorf("client: decode stream error: %w", err)
		}
		return &StatusError{StatusCode: se.StatusCode, Message: se.Message}
	default:
		// metadata and unknown events carry nothing the caller needs.
		return nil
	}
}
