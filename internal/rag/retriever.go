package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/54b3r/infohub-go/internal/logging"
)

// DefaultTopK is the number of passages returned when a caller passes topK <= 0.
const DefaultTopK = 4

// PassageRetriever answers a question with the stored passages nearest to it.
// The same LangChain page is often published under several URLs (versioned
// docs, mirrors), so passages with identical text are collapsed into the best
// scoring one, and blank passages are dropped before they reach the prompt.
type PassageRetriever struct {
	embedder    Embedder
	store       VectorStore
	defaultTopK int
}

// NewRetriever builds a PassageRetriever. defaultTopK applies when Retrieve
// is called with topK <= 0.
func NewRetriever(embedder Embedder, store VectorStore, defaultTopK int) (*PassageRetriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if defaultTopK <= 0 {
		defaultTopK = DefaultTopK
	}
	return &PassageRetriever{embedder: embedder, store: store, defaultTopK: defaultTopK}, nil
}

// Retrieve embeds question and returns up to topK distinct passages, most
// similar first. The store is asked for twice as many so that duplicates do
// not leave the prompt short.
func (r *PassageRetriever) Retrieve(ctx context.Context, question string, topK int) ([]Document, error) {
	if topK <= 0 {
		topK = r.defaultTopK
	}

	vecs, err := r.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding question: %w", err)
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("rag: embedder returned no vector for the question")
	}

	candidates, err := r.store.Search(ctx, vecs[0], 2*topK)
	if err != nil {
		return nil, fmt.Errorf("rag: passage search: %w", err)
	}

	passages := distinctPassages(candidates, topK)

	log := logging.FromContext(ctx)
	if len(passages) == 0 {
		log.Warn("no passages retrieved; is the index empty?", slog.Int("candidates", len(candidates)))
		return passages, nil
	}
	log.Debug("passages retrieved",
		slog.Int("passages", len(passages)),
		slog.Int("candidates", len(candidates)),
		slog.Float64("top_score", float64(passages[0].Score)),
		slog.Float64("last_score", float64(passages[len(passages)-1].Score)),
		slog.String("top_source", passages[0].Source),
	)
	return passages, nil
}

// distinctPassages keeps the first passage for each distinct text, skipping
// blank ones, and stops at limit. docs must already be ordered best first.
func distinctPassages(docs []Document, limit int) []Document {
	seen := make(map[string]bool, len(docs))
	out := make([]Document, 0, min(len(docs), limit))
	for _, d := range docs {
		key := strings.Join(strings.Fields(d.Content), " ")
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, d)
		if len(out) == limit {
			break
		}
	}
	return out
}
