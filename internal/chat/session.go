// Package chat holds the client-side conversation state for one chat
// session: the transcript and the Idle/AwaitingReply turn state machine.
// Every reply, including transport failures, is recorded as an assistant
// message so the user always sees an outcome for each question.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/54b3r/infohub-go/internal/client"
	"github.com/54b3r/infohub-go/internal/logging"
)

// Greeting seeds every new or cleared transcript.
const Greeting = "Hello! I'm your LangChain assistant. How can I help you today?"

// Fixed reply texts for responses that carry no answer.
const (
	replyNoOutput = "Sorry, I couldn't generate a response."
	replyTimeout  = "Error: The request timed out. Please try again."
)

// Role identifies who authored a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry.
type Message struct {
	Role    Role
	Content string
}

// State is the turn state of a Session.
type State int

const (
	// Idle accepts a new question or a clear.
	Idle State = iota
	// AwaitingReply waits for the answer to the last question.
	AwaitingReply
)

// String returns the state name for logs.
func (s State) String() string {
	if s == AwaitingReply {
		return "awaiting_reply"
	}
	return "idle"
}

var (
	// ErrBusy is returned by Begin and Clear while a reply is outstanding.
	ErrBusy = errors.New("chat: a reply is still pending")
	// ErrEmptyInput is returned by Begin for blank text.
	ErrEmptyInput = errors.New("chat: message is empty")
	// ErrNotAwaiting is returned by Complete when no question is outstanding.
	ErrNotAwaiting = errors.New("chat: no question is awaiting a reply")
)

// Invoker answers one question. *client.Client satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, question string) (string, error)
}

// Session is one chat session. It is safe for concurrent use, but turns are
// serial: a second question is refused until the first has its reply.
type Session struct {
	mu         sync.Mutex
	invoker    Invoker
	backendURL string
	transcript []Message
	state      State
}

// NewSession returns an Idle session seeded with the greeting. backendURL is
// quoted in the connection-failure reply.
func NewSession(inv Invoker, backendURL string) *Session {
	return &Session{
		invoker:    inv,
		backendURL: backendURL,
		transcript: seed(),
	}
}

func seed() []Message {
	return []Message{{Role: RoleAssistant, Content: Greeting}}
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// State returns the current turn state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Begin appends a user message and moves to AwaitingReply.
func (s *Session) Begin(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Idle {
		return ErrBusy
	}
	if strings.TrimSpace(text) == "" {
		return ErrEmptyInput
	}
	s.transcript = append(s.transcript, Message{Role: RoleUser, Content: text})
	s.state = AwaitingReply
	return nil
}

// Complete appends exactly one assistant message and returns to Idle.
func (s *Session) Complete(reply string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != AwaitingReply {
		return ErrNotAwaiting
	}
	s.transcript = append(s.transcript, Message{Role: RoleAssistant, Content: reply})
	s.state = Idle
	return nil
}

// Clear resets the transcript to the greeting. It never contacts the server.
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Idle {
		return ErrBusy
	}
	s.transcript = seed()
	return nil
}

// Reply calls the Query Service for question and maps the outcome to the
// text recorded in the transcript. It does not change session state.
func (s *Session) Reply(ctx context.Context, question string) string {
	log := logging.FromContext(ctx)
	start := time.Now()

	answer, err := s.invoker.Invoke(ctx, question)
	if err != nil {
		log.Warn("chat: invoke failed",
			slog.String("backend", s.backendURL),
			slog.Duration("elapsed", time.Since(start)),
			slog.Any("error", err),
		)
	} else {
		log.Debug("chat: invoke complete",
			slog.Duration("elapsed", time.Since(start)),
			slog.Int("answer_len", len(answer)),
		)
	}
	return ReplyText(answer, err, s.backendURL)
}

// Ask runs one whole turn: Begin, Reply, Complete. It returns the assistant
// message that was appended.
func (s *Session) Ask(ctx context.Context, text string) (Message, error) {
	if err := s.Begin(text); err != nil {
		return Message{}, err
	}
	reply := s.Reply(ctx, text)
	if err := s.Complete(reply); err != nil {
		return Message{}, err
	}
	return Message{Role: RoleAssistant, Content: reply}, nil
}

// ReplyText maps an invoke outcome to the assistant text shown to the user.
func ReplyText(answer string, err error, backendURL string) string {
	var se *client.StatusError
	switch {
	case err == nil:
		return answer
	case errors.Is(err, client.ErrNoOutput):
		return replyNoOutput
	case errors.As(err, &se):
		return fmt.Sprintf("Error: Received status code %d from the server.", se.StatusCode)
	case errors.Is(err, client.ErrUnreachable):
		return "Error: Could not connect to the server. Please make sure the InfoHub server is running on " + backendURL
	case errors.Is(err, client.ErrTimeout):
		return replyTimeout
	default:
		return "Error: " + err.Error()
	}
}
