// Package ingestion builds the passage index the answer pipeline searches.
// It loads LangChain documentation from URLs or local files, chunks the
// text, embeds each chunk, and upserts the results into the vector store.
// This pipeline is invoked by the `infohub ingest` CLI command.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/54b3r/infohub-go/internal/logging"
	"github.com/54b3r/infohub-go/internal/rag"
)

// chunkNamespace scopes deterministic chunk ids so re-ingesting a source
// overwrites its previous points instead of duplicating them.
var chunkNamespace = uuid.MustParse("6f1c9f7e-2b7a-4f0e-9a55-1d3c1b0e8a42")

// Chunking defaults used when NewPipeline is given no Config and by the
// `infohub ingest` flags.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the maximum number of characters per document chunk.
	// Defaults to DefaultChunkSize if zero.
	ChunkSize int

	// ChunkOverlap is the number of characters to overlap between consecutive
	// chunks. Zero or negative disables overlap. It is capped at a tenth of
	// ChunkSize when it reaches half of it.
	ChunkOverlap int

	// EmbedBatchSize is the number of chunks sent to the embedder per call.
	// Defaults to 64 if zero.
	EmbedBatchSize int

	// HTTPTimeout is the timeout for each documentation fetch request.
	// Defaults to 30s if zero.
	HTTPTimeout time.Duration

	// UserAgent is the HTTP User-Agent header sent with fetch requests.
	UserAgent string
}

// Pipeline orchestrates the load → chunk → embed → upsert flow for a set
// of documentation sources.
type Pipeline struct {
	// embedder converts text chunks into dense vector embeddings.
	embedder rag.Embedder

	// store persists the embedded chunks.
	store rag.VectorStore

	// cfg holds the resolved pipeline configuration.
	cfg *Config

	// httpClient is the HTTP client used for fetching documentation pages.
	httpClient *http.Client
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder rag.Embedder, store rag.VectorStore, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{ChunkSize: DefaultChunkSize, ChunkOverlap: DefaultChunkOverlap}
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 0
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize/2 {
		cfg.ChunkOverlap = cfg.ChunkSize / 10
	}
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = 64
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "infohub-go/1.0 (langchain documentation ingestion)"
	}

	return &Pipeline{
		embedder: embedder,
		store:    store,
		cfg:      cfg,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
	}, nil
}

// Ingest loads, chunks, embeds, and stores all provided sources in order.
// It returns the total number of chunks written and the first error
// encountered. Progress is reported via the optional progress callback.
func (p *Pipeline) Ingest(ctx context.Context, sources []Source, progress func(msg string)) (int, error) {
	if progress == nil {
		progress = func(string) {}
	}

	total := 0
	for _, src := range sources {
		progress(fmt.Sprintf("loading %s", src.Location))
		n, err := p.IngestSource(ctx, src)
		if err != nil {
			return total, err
		}
		total += n
		progress(fmt.Sprintf("ingested %d chunks from %s", n, src.Location))
	}
	return total, nil
}

// IngestSource replaces every stored chunk of src with a fresh copy. A
// source whose text is empty ends up with no chunks.
func (p *Pipeline) IngestSource(ctx context.Context, src Source) (int, error) {
	log := logging.FromContext(ctx)

	text, err := p.load(ctx, src)
	if err != nil {
		return 0, fmt.Errorf("ingestion: load failed for %s: %w", src.Location, err)
	}

	chunks := splitText(text, p.cfg.ChunkSize, p.cfg.ChunkOverlap)
	log.Debug("chunked source",
		slog.String("source", src.Location),
		slog.Int("chars", len(text)),
		slog.Int("chunks", len(chunks)),
	)

	embeddings := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += p.cfg.EmbedBatchSize {
		end := min(start+p.cfg.EmbedBatchSize, len(chunks))
		vecs, err := p.embedder.Embed(ctx, chunks[start:end])
		if err != nil {
			return 0, fmt.Errorf("ingestion: embedding failed for %s: %w", src.Location, err)
		}
		if len(vecs) != end-start {
			return 0, fmt.Errorf("ingestion: embedder returned %d vectors for %d chunks of %s", len(vecs), end-start, src.Location)
		}
		embeddings = append(embeddings, vecs...)
	}

	meta := src.metadata()
	docs := make([]rag.Document, 0, len(chunks))
	for i, chunk := range chunks {
		md := make(map[string]string, len(meta)+1)
		for k, v := range meta {
			md[k] = v
		}
		md["chunk_index"] = strconv.Itoa(i)

		docs = append(docs, rag.Document{
			ID:       chunkID(src.Location, i),
			Content:  chunk,
			Source:   src.Location,
			Metadata: md,
		})
	}

	// Replacing the whole source means a shorter document leaves no stale tail.
	if err := p.store.ReplaceSource(ctx, src.Location, docs, embeddings); err != nil {
		return 0, fmt.Errorf("ingestion: replacing chunks of %s: %w", src.Location, err)
	}
	return len(docs), nil
}

// Remove deletes every stored chunk of the source at location.
func (p *Pipeline) Remove(ctx context.Context, location string) error {
	if err := p.store.DeleteSource(ctx, location); err != nil {
		return fmt.Errorf("ingestion: remove %s: %w", location, err)
	}
	return nil
}

// chunkID generates a deterministic UUID for a document chunk based on its
// source location and chunk index. Qdrant requires UUID point ids.
func chunkID(location string, index int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(location+"#"+strconv.Itoa(index))).String()
}
