package embedder

import (
	"context"
	"fmt"
	"strings"

	"github.com/54b3r/infohub-go/internal/config"
	"github.com/54b3r/infohub-go/internal/rag"
)

// Default embedding models per backend.
const (
	defaultOpenAIModel = "text-embedding-ada-002"
	defaultOllamaModel = "nomic-embed-text"

	defaultOpenAIDimensions = 1536
	defaultOllamaDimensions = 768
)

// Embedder is a rag.Embedder that can also report whether its backend is reachable.
type Embedder interface {
	rag.Embedder
	Ping(ctx context.Context) error
}

// Backend resolves the embedding backend: EMBEDDING_PROVIDER, then
// MODEL_PROVIDER, then openai.
func Backend() string {
	if b := config.EnvOr("EMBEDDING_PROVIDER", ""); b != "" {
		return b
	}
	return config.EnvOr("MODEL_PROVIDER", "openai")
}

// DefaultDimensions returns the embedding vector size for backend.
// EMBEDDING_DIMENSIONS always takes precedence when set.
func DefaultDimensions(backend string) int {
	if v := config.EnvInt("EMBEDDING_DIMENSIONS", 0); v > 0 {
		return v
	}
	if backend == "ollama" {
		return defaultOllamaDimensions
	}
	return defaultOpenAIDimensions
}

// NewFromEnv constructs an Embedder using cascading defaults that inherit
// from the chat provider configuration when embedding-specific overrides are
// not set.
//
// Resolution order:
//
//  1. EMBEDDING_PROVIDER, falling back to MODEL_PROVIDER (default: openai)
//  2. Per-backend credentials are inherited from the chat provider's env vars
//  3. EMBEDDING_MODEL overrides the default model for the resolved backend
//  4. EMBEDDING_API_KEY overrides the inherited API key
//  5. EMBEDDING_ENDPOINT overrides the inherited endpoint
//  6. EMBEDDING_DIMENSIONS is sent to the API only when explicitly set
func NewFromEnv(ctx context.Context) (Embedder, error) {
	backend := Backend()

	switch backend {
	case "openai":
		apiKey := config.EnvOr("EMBEDDING_API_KEY", config.EnvOr("OPENAI_API_KEY", ""))
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		return orNil(NewOpenAI(ctx, &OpenAIConfig{
			BaseURL:    config.EnvOr("EMBEDDING_ENDPOINT", "https://api.openai.com/v1"),
			APIKey:     apiKey,
			Model:      config.EnvOr("EMBEDDING_MODEL", defaultOpenAIModel),
			Dimensions: config.EnvInt("EMBEDDING_DIMENSIONS", 0),
		}))

	case "azure":
		apiKey := config.EnvOr("EMBEDDING_API_KEY", config.EnvOr("AZURE_OPENAI_API_KEY", ""))
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		endpoint := config.EnvOr("EMBEDDING_ENDPOINT", config.EnvOr("AZURE_OPENAI_ENDPOINT", ""))
		if endpoint == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
		return orNil(NewOpenAI(ctx, &OpenAIConfig{
			BaseURL:    strings.TrimRight(endpoint, "/"),
			APIKey:     apiKey,
			Model:      config.EnvOr("EMBEDDING_MODEL", defaultOpenAIModel),
			Dimensions: config.EnvInt("EMBEDDING_DIMENSIONS", 0),
			Azure:      true,
			APIVersion: config.EnvOr("AZURE_OPENAI_API_VERSION", "2024-02-01"),
		}))

	case "ollama":
		return orNil(NewOllama(ctx, &OllamaConfig{
			Host:  config.EnvOr("EMBEDDING_ENDPOINT", config.EnvOr("OLLAMA_HOST", "http://localhost:11434")),
			Model: config.EnvOr("EMBEDDING_MODEL", defaultOllamaModel),
		}))

	case "gemini", "ark":
		return nil, fmt.Errorf("embedder: %s has no embeddings backend here, set EMBEDDING_PROVIDER to openai, azure, or ollama", backend)

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q (valid: openai, azure, ollama)", backend)
	}
}

// orNil keeps a failed constructor from returning a typed nil Embedder.
func orNil(c *Client, err error) (Embedder, error) {
	if err != nil {
		return nil, err
	}
	return c, nil
}
