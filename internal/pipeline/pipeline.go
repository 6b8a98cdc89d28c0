// Package pipeline answers documentation questions with retrieval-augmented
// generation: it retrieves the most similar passages, fills the answer
// prompt, and asks the language model to complete it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/infohub-go/internal/budget"
	"github.com/54b3r/infohub-go/internal/logging"
	"github.com/54b3r/infohub-go/internal/rag"
)

// DefaultGenerationTimeout bounds one generation call when Config leaves it unset.
const DefaultGenerationTimeout = 60 * time.Second

// passageSeparator joins retrieved passages into the prompt context.
const passageSeparator = "\n\n"

// Config holds the dependencies and policies for a Pipeline.
type Config struct {
	// Retriever finds passages similar to the question. Required.
	Retriever rag.Retriever

	// Generator completes the rendered prompt. Required. When it also
	// implements StreamGenerator, Stream emits fragments as they arrive.
	Generator Generator

	// TopK is the number of passages retrieved per question. Defaults to rag.DefaultTopK.
	TopK int

	// GenerationTimeout bounds each generation call. Defaults to DefaultGenerationTimeout.
	GenerationTimeout time.Duration

	// MaxQuestionTokens rejects longer questions with ErrQuestionTooLong.
	// 0 disables the check.
	MaxQuestionTokens int

	// Handlers are eino callback handlers (e.g. Langfuse) attached to every
	// generation call. May be empty.
	Handlers []callbacks.Handler
}

// Pipeline is the question-answering core. It holds no per-question state and
// is safe for concurrent use.
type Pipeline struct {
	retriever         rag.Retriever
	generator         Generator
	template          *Template
	topK              int
	generationTimeout time.Duration
	maxQuestionTokens int
	handlers          []callbacks.Handler
}

// New constructs a Pipeline from cfg.
func New(cfg *Config) (*Pipeline, error) {
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("pipeline: Retriever must not be nil")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("pipeline: Generator must not be nil")
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = rag.DefaultTopK
	}
	timeout := cfg.GenerationTimeout
	if timeout <= 0 {
		timeout = DefaultGenerationTimeout
	}

	return &Pipeline{
		retriever:         cfg.Retriever,
		generator:         cfg.Generator,
		template:          NewTemplate(),
		topK:              topK,
		generationTimeout: timeout,
		maxQuestionTokens: cfg.MaxQuestionTokens,
		handlers:          cfg.Handlers,
	}, nil
}

// Answer returns the model's answer to question, grounded on the retrieved
// passages. The answer is returned verbatim.
func (p *Pipeline) Answer(ctx context.Context, question string) (string, error) {
	prompt, err := p.prepare(ctx, question)
	if err != nil {
		return "", err
	}

	genCtx, cancel := p.generationContext(ctx)
	defer cancel()

	start := time.Now()
	answer, err := p.generator.Complete(genCtx, prompt)
	if err != nil {
		return "", p.classifyGeneration(ctx, genCtx, err)
	}

	logging.FromContext(ctx).Debug("pipeline: answer generated",
		slog.Int("answer_chars", len(answer)),
		slog.Duration("generation", time.Since(start)),
	)
	return answer, nil
}

// Stream writes the answer to w as the model produces it. When the generator
// cannot stream, the whole answer is written as a single fragment.
func (p *Pipeline) Stream(ctx context.Context, question string, w io.Writer) error {
	prompt, err := p.prepare(ctx, question)
	if err != nil {
		return err
	}

	genCtx, cancel := p.generationContext(ctx)
	defer cancel()

	sg, ok := p.generator.(StreamGenerator)
	if !ok {
		answer, err := p.generator.Complete(genCtx, prompt)
		if err != nil {
			return p.classifyGeneration(ctx, genCtx, err)
		}
		if _, err := io.WriteString(w, answer); err != nil {
			return fmt.Errorf("pipeline: write answer: %w", err)
		}
		return nil
	}

	tw := &trackingWriter{w: w}
	if err := sg.CompleteStream(genCtx, prompt, tw); err != nil {
		if tw.err != nil {
			return fmt.Errorf("pipeline: write fragment: %w", tw.err)
		}
		return p.classifyGeneration(ctx, genCtx, err)
	}
	return nil
}

// prepare validates the question, retrieves passages, and renders the prompt.
func (p *Pipeline) prepare(ctx context.Context, question string) (*schema.Message, error) {
	log := logging.FromContext(ctx)

	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	if err := budget.Check(question, p.maxQuestionTokens); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuestionTooLong, err)
	}

	docs, err := p.retriever.Retrieve(ctx, question, p.topK)
	if err != nil {
		log.Warn("pipeline: retrieval failed", slog.Any("error", err))
		return nil, fmt.Errorf("%w: %w", ErrRetrievalUnavailable, err)
	}

	prompt, err := p.template.Render(ctx, joinPassages(docs), question)
	if err != nil {
		return nil, err
	}

	log.Debug("pipeline: prompt rendered",
		slog.String("prompt_version", PromptVersion),
		slog.Int("passages", len(docs)),
		slog.Int("prompt_tokens_est", budget.EstimateMessages([]*schema.Message{prompt})),
	)
	return prompt, nil
}

// generationContext applies the generation time budget and attaches the
// configured callback handlers.
func (p *Pipeline) generationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if len(p.handlers) > 0 {
		ctx = callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
			Name:      "infohub_answer_" + PromptVersion,
			Type:      "RAG",
			Component: components.ComponentOfChatModel,
		}, p.handlers...)
	}
	return context.WithTimeout(ctx, p.generationTimeout)
}

// classifyGeneration maps a generator error to a pipeline sentinel. A caller
// cancellation is returned as-is so it is not reported as a model fault.
func (p *Pipeline) classifyGeneration(parent, genCtx context.Context, err error) error {
	if parent.Err() != nil {
		return fmt.Errorf("pipeline: %w", parent.Err())
	}
	if errors.Is(genCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %w", ErrGenerationTimeout, p.generationTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrGenerationUnavailable, err)
}

// joinPassages concatenates passage contents in retrieval order.
func joinPassages(docs []rag.Document) string {
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = d.Content
	}
	return strings.Join(parts, passageSeparator)
}

// trackingWriter records the first write error so Stream can tell a broken
// client connection apart from a model failure.
type trackingWriter struct {
	w   io.Writer
	err error
}

func (t *trackingWriter) Write(b []byte) (int, error) {
	n, err := t.w.Write(b)
	if err != nil && t.err == nil {
		t.err = err
	}
	return n, err
}
