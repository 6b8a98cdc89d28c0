// Package embedder provides rag.Embedder implementations that turn passage
// and question text into dense vectors. Each backend (OpenAI, Azure OpenAI,
// Ollama) is an eino embedding component adapted to float32 vectors, with a
// readiness probe that lists models instead of spending tokens.
package embedder

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/embedding"
)

// defaultHTTPTimeout bounds a single embeddings request.
const defaultHTTPTimeout = 30 * time.Second

// Client adapts an eino embedding.Embedder to rag.Embedder. It is safe for
// concurrent use when the wrapped embedder is.
type Client struct {
	// backend names the embedding service ("openai", "azure", "ollama").
	backend string
	// emb performs the embedding calls.
	emb embedding.Embedder
	// probe checks the service without embedding anything.
	probe func(ctx context.Context) error
}

// Backend returns the name of the embedding service this client calls.
func (c *Client) Backend() string { return c.backend }

// Embed converts a batch of texts into their corresponding embeddings.
// The returned slice is parallel to the input slice.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vecs, err := c.emb.EmbedStrings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%s embedder: %w", c.backend, err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%s embedder: expected %d embeddings, got %d", c.backend, len(texts), len(vecs))
	}

	out := make([][]float32, len(vecs))
	for i, v := range vecs {
		out[i] = toFloat32(v)
	}
	return out, nil
}

// Ping confirms the service is reachable and the credentials are accepted.
func (c *Client) Ping(ctx context.Context) error {
	if c.probe == nil {
		return nil
	}
	if err := c.probe(ctx); err != nil {
		return fmt.Errorf("%s embedder: %w", c.backend, err)
	}
	return nil
}

// toFloat32 narrows one eino vector to the precision the stores keep.
func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
