package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/54b3r/infohub-go/internal/budget"
	"github.com/54b3r/infohub-go/internal/config"
	"github.com/54b3r/infohub-go/internal/logging"
	"github.com/54b3r/infohub-go/internal/pipeline"
	"github.com/54b3r/infohub-go/internal/provider"
	"github.com/54b3r/infohub-go/internal/rag"
	"github.com/54b3r/infohub-go/internal/server"
	"github.com/54b3r/infohub-go/internal/tracing"
)

// NewServeCmd constructs the `infohub serve` command, which starts the
// Query Service.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the InfoHub query service",
		Long: `Start the InfoHub query service.

The service answers LangChain questions over HTTP using the LangServe route
layout:

  POST /chat/invoke   {"input": "..."}      one answer
  POST /chat/batch    {"inputs": ["..."]}   answers, index-aligned
  POST /chat/stream   {"input": "..."}      answer fragments as SSE
  GET  /health        liveness
  GET  /ready         vector store and embedder probes
  GET  /metrics       Prometheus metrics

Any provider, embedder, or vector store misconfiguration stops startup.

Examples:
  infohub serve
  infohub serve --port 9000
  MODEL_PROVIDER=ollama VECTOR_STORE=qdrant infohub serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			// Flags win; otherwise the environment (after YAML and .env) decides.
			if !cmd.Flags().Changed("host") {
				host = config.EnvOr("INFOHUB_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = config.EnvInt("INFOHUB_PORT", port)
			}

			providerCfg := provider.ConfigFromEnv()
			chatModel, err := provider.New(ctx, providerCfg)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}
			log.Info("provider initialised",
				slog.String("provider", string(providerCfg.Backend)),
				slog.String("model", providerCfg.ModelName()),
			)

			emb, err := buildEmbedder(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			store, err := openStore(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer closeQuietly(log, "vector store", store)

			topK := config.EnvInt("RAG_TOP_K", rag.DefaultTopK)
			retriever, err := rag.NewRetriever(emb, store, topK)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			// Langfuse tracing is opt-in and a no-op when keys are absent.
			var handlers []callbacks.Handler
			handler, flush, ok := tracing.Setup()
			defer flush()
			if ok {
				handlers = append(handlers, handler)
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			answerer, err := pipeline.New(&pipeline.Config{
				Retriever:         retriever,
				Generator:         pipeline.NewChatGenerator(chatModel),
				TopK:              topK,
				GenerationTimeout: config.EnvDuration("GENERATION_TIMEOUT", pipeline.DefaultGenerationTimeout),
				MaxQuestionTokens: config.EnvInt("MAX_QUESTION_TOKENS", budget.DefaultMaxQuestionTokens),
				Handlers:          handlers,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to initialise pipeline: %w", err)
			}

			srv, err := server.New(answerer, &server.Config{
				Host:   host,
				Port:   port,
				Logger: log,
				Pingers: []server.Pinger{
					server.NewPinger("vector_store", store),
					server.NewPinger("embedder", emb),
				},
				RateLimit:        config.EnvFloat("RATE_LIMIT_RPS", server.DefaultRateLimit),
				RateBurst:        config.EnvInt("RATE_LIMIT_BURST", server.DefaultRateBurst),
				BatchConcurrency: config.EnvInt("BATCH_CONCURRENCY", server.DefaultBatchConcurrency),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8000, "TCP port to listen on")

	return cmd
}
