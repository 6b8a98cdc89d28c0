package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/infohub-go/internal/ingestion"
	"github.com/54b3r/infohub-go/internal/logging"
)

// NewIngestCmd constructs the `infohub ingest` command, which builds the
// passage index the query service searches.
func NewIngestCmd() *cobra.Command {
	var urls []string
	var paths []string
	var watchDir string
	var section string
	var docType string
	var chunkSize int
	var chunkOverlap int

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index LangChain documentation into the vector store",
		Long: `Fetch, chunk, embed, and store LangChain documentation so the query
service can retrieve it.

Sources are documentation URLs (--url) and local files or directories
(--path: .md, .mdx, .txt, and .rst files). Re-ingesting a source replaces
its previous chunks. With --watch, the directory is indexed and then kept
in sync: changed files are re-ingested and deleted files are removed.

The vector store is selected with VECTOR_STORE (sqlite or qdrant) and the
embedding backend with EMBEDDING_PROVIDER. Use the same embedding settings
here and in 'infohub serve'.

Section and doc type metadata are inferred from LangChain documentation
URLs and paths. --section and --doc-type override the inference.

Examples:
  infohub ingest --url https://python.langchain.com/docs/concepts/lcel/
  infohub ingest --path ./docs
  infohub ingest --watch ./docs`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if len(urls) == 0 && len(paths) == 0 && watchDir == "" {
				return fmt.Errorf("ingest: at least one --url, --path, or --watch is required")
			}

			sources, err := ingestion.URLSources(urls)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			local := paths
			if watchDir != "" {
				local = append(local, watchDir)
			}
			files, err := ingestion.ExpandPaths(local)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			sources = append(sources, files...)

			for i := range sources {
				sources[i].Section = section
				sources[i].DocType = docType
				inferred := ingestion.InferMetadata(sources[i].Location)
				log.Debug("source metadata",
					slog.String("location", sources[i].Location),
					slog.String("product", inferred.Product),
					slog.String("section", inferred.Section),
					slog.String("doc_type", inferred.DocType),
				)
			}

			emb, err := buildEmbedder(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			store, err := openStore(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer closeQuietly(log, "vector store", store)

			pipeline, err := ingestion.NewPipeline(emb, store, &ingestion.Config{
				ChunkSize:    chunkSize,
				ChunkOverlap: chunkOverlap,
			})
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			progress := func(msg string) { log.Info(msg) }

			log.Info("starting ingestion", slog.Int("sources", len(sources)))
			chunks, err := pipeline.Ingest(ctx, sources, progress)
			if err != nil {
				return fmt.Errorf("ingest: pipeline failed: %w", err)
			}
			log.Info("ingestion complete", slog.Int("sources", len(sources)), slog.Int("chunks", chunks))

			if watchDir == "" {
				return nil
			}

			w, err := pipeline.NewWatcher(watchDir)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer closeQuietly(log, "watcher", w)
			w.Progress = progress

			return w.Run(ctx)
		},
	}

	cmd.Flags().StringArrayVarP(&urls, "url", "u", nil, "Documentation URL to ingest (repeatable)")
	cmd.Flags().StringArrayVar(&paths, "path", nil, "Local file or directory to ingest (repeatable)")
	cmd.Flags().StringVarP(&watchDir, "watch", "w", "", "Ingest a directory and keep re-indexing it as files change")
	cmd.Flags().StringVar(&section, "section", "", "Section label for every source (default: inferred)")
	cmd.Flags().StringVarP(&docType, "doc-type", "d", "", "Doc type label for every source, e.g. tutorial, how_to, concept (default: inferred)")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", ingestion.DefaultChunkSize, "Maximum characters per chunk")
	cmd.Flags().IntVar(&chunkOverlap, "chunk-overlap", ingestion.DefaultChunkOverlap, "Characters shared by consecutive chunks (0 disables)")

	return cmd
}
