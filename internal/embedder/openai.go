package embedder

import (
	"context"
	"fmt"

	einoopenai "github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
)

// OpenAIConfig holds the settings for an OpenAI or Azure OpenAI embedder.
type OpenAIConfig struct {
	// BaseURL is the API base URL. For OpenAI: "https://api.openai.com/v1".
	// For Azure: the resource endpoint, "https://<resource>.openai.azure.com".
	BaseURL string
	// APIKey is the authentication key.
	APIKey string
	// Model is the embedding model name, or the deployment name on Azure.
	Model string
	// Dimensions is the desired vector length. 0 leaves it to the model.
	// text-embedding-ada-002 rejects the parameter, so it is only sent when set.
	Dimensions int
	// Azure enables Azure OpenAI mode (api-key header + api-version param).
	Azure bool
	// APIVersion is the Azure OpenAI API version. Ignored when Azure is false.
	APIVersion string
}

// NewOpenAI builds an embedder for the OpenAI or Azure OpenAI embeddings API.
func NewOpenAI(ctx context.Context, cfg *OpenAIConfig) (*Client, error) {
	ecfg := &einoopenai.EmbeddingConfig{
		Timeout: defaultHTTPTimeout,
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
	}
	if cfg.Dimensions > 0 {
		dims := cfg.Dimensions
		ecfg.Dimensions = &dims
	}
	backend := "openai"
	if cfg.Azure {
		backend = "azure"
		ecfg.ByAzure = true
		ecfg.APIVersion = cfg.APIVersion
	}

	emb, err := einoopenai.NewEmbedder(ctx, ecfg)
	if err != nil {
		return nil, fmt.Errorf("%s embedder: %w", backend, err)
	}

	models := openai.NewClient(openAIOptions(cfg)...)
	return &Client{
		backend: backend,
		emb:     emb,
		probe: func(ctx context.Context) error {
			_, err := models.Models.List(ctx)
			return err
		},
	}, nil
}

// openAIOptions configures the model-listing client used by Ping.
func openAIOptions(cfg *OpenAIConfig) []option.RequestOption {
	opts := []option.RequestOption{
		option.WithMaxRetries(0),
		option.WithRequestTimeout(defaultHTTPTimeout),
	}
	if cfg.Azure {
		return append(opts,
			azure.WithEndpoint(cfg.BaseURL, cfg.APIVersion),
			azure.WithAPIKey(cfg.APIKey),
		)
	}
	return append(opts,
		option.WithBaseURL(cfg.BaseURL),
		option.WithAPIKey(cfg.APIKey),
	)
}
