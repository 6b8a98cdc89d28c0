package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Generator turns a rendered prompt into an answer.
type Generator interface {
	Complete(ctx context.Context, prompt *schema.Message) (string, error)
}

// StreamGenerator is a Generator that can also emit the answer incrementally.
// Fragments are written to w in order; their concatenation is the answer.
type StreamGenerator interface {
	Generator
	CompleteStream(ctx context.Context, prompt *schema.Message, w io.Writer) error
}

// ChatGenerator adapts an eino chat model to StreamGenerator.
type ChatGenerator struct {
	model model.BaseChatModel
}

// NewChatGenerator wraps m. m must not be nil.
func NewChatGenerator(m model.BaseChatModel) *ChatGenerator {
	return &ChatGenerator{model: m}
}

// Complete sends prompt as the only message and returns the reply content.
func (g *ChatGenerator) Complete(ctx context.Context, prompt *schema.Message) (string, error) {
	msg, err := g.model.Generate(ctx, []*schema.Message{prompt})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	if msg == nil {
		return "", nil
	}
	return msg.Content, nil
}

// CompleteStream streams the reply content to w chunk by chunk.
func (g *ChatGenerator) CompleteStream(ctx context.Context, prompt *schema.Message, w io.Writer) error {
	sr, err := g.model.Stream(ctx, []*schema.Message{prompt})
	if err != nil {
		return fmt.Errorf("stream: %w", err)
	}
	defer sr.Close()

	for {
		msg, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("stream receive: %w", err)
		}
		if msg == nil || msg.Content == "" {
			continue
		}
		if _, err := io.WriteString(w, msg.Content); err != nil {
			return fmt.Errorf("stream write: %w", err)
		}
	}
}
