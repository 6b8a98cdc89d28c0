package embedder

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	einoollama "github.com/cloudwego/eino-ext/components/embedding/ollama"
	"github.com/ollama/ollama/api"
)

// OllamaConfig holds the settings for an Ollama embedder. Ollama runs
// locally and needs no API key.
type OllamaConfig struct {
	// Host is the Ollama server base URL (e.g. "http://localhost:11434").
	Host string
	// Model is the embedding model name (e.g. "nomic-embed-text").
	Model string
}

// NewOllama builds an embedder for the Ollama /api/embed endpoint. Ping
// checks that the model has been pulled.
func NewOllama(ctx context.Context, cfg *OllamaConfig) (*Client, error) {
	base, err := url.Parse(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: invalid host %q: %w", cfg.Host, err)
	}

	emb, err := einoollama.NewEmbedder(ctx, &einoollama.EmbeddingConfig{
		Timeout: 2 * defaultHTTPTimeout,
		BaseURL: cfg.Host,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: %w", err)
	}

	tags := api.NewClient(base, &http.Client{Timeout: defaultHTTPTimeout})
	return &Client{
		backend: "ollama",
		emb:     emb,
		probe: func(ctx context.Context) error {
			list, err := tags.List(ctx)
			if err != nil {
				return err
			}
			for _, m := range list.Models {
				if modelMatches(m.Name, cfg.Model) {
					return nil
				}
			}
			return fmt.Errorf("model %q is not pulled", cfg.Model)
		},
	}, nil
}

// modelMatches reports whether an installed model name satisfies want.
// A want without a tag matches the ":latest" tag.
func modelMatches(installed, want string) bool {
	if installed == want {
		return true
	}
	return !strings.Contains(want, ":") && installed == want+":latest"
}
