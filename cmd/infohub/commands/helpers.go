package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/54b3r/infohub-go/internal/config"
	"github.com/54b3r/infohub-go/internal/embedder"
	"github.com/54b3r/infohub-go/internal/rag"
)

// defaultCollection matches the collection name the documentation index has
// always been published under.
const defaultCollection = "documentation_embeddings"

// buildEmbedder constructs the embedding client from the environment and
// logs any settings that look misconfigured.
func buildEmbedder(ctx context.Context, log *slog.Logger) (embedder.Embedder, error) {
	embedder.WarnMisconfig(log)

	emb, err := embedder.NewFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	log.Info("embedder initialised", slog.String("backend", embedder.Backend()))
	return emb, nil
}

// openStore opens the vector store selected by VECTOR_STORE (sqlite or
// qdrant). The SQLite file defaults to ~/.infohub/index.db.
func openStore(ctx context.Context, log *slog.Logger) (rag.VectorStore, error) {
	collection := config.EnvOr("VECTOR_COLLECTION", defaultCollection)

	switch kind := strings.ToLower(config.EnvOr("VECTOR_STORE", "sqlite")); kind {
	case "sqlite":
		path, err := sqlitePath()
		if err != nil {
			return nil, err
		}
		store, err := rag.OpenSQLiteStore(path, collection)
		if err != nil {
			return nil, err
		}
		log.Info("sqlite store ready", slog.String("path", path), slog.String("collection", collection))
		return store, nil

	case "qdrant":
		host := config.EnvOr("QDRANT_HOST", "localhost")
		port := config.EnvInt("QDRANT_PORT", 6334)
		vectorSize := uint64(embedder.DefaultDimensions(embedder.Backend())) //nolint:gosec // dimensions are bounded

		store, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
			Host:       host,
			Port:       port,
			Collection: collection,
			VectorSize: vectorSize,
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     config.EnvBool("QDRANT_TLS"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
		}
		log.Info("qdrant store ready", slog.String("host", host), slog.Int("port", port), slog.String("collection", collection))
		return store, nil

	default:
		return nil, fmt.Errorf("unknown VECTOR_STORE %q (valid: sqlite, qdrant)", kind)
	}
}

// sqlitePath resolves SQLITE_PATH, creating the parent directory of the
// default location when needed.
func sqlitePath() (string, error) {
	if p := os.Getenv("SQLITE_PATH"); p != "" {
		return p, nil
	}
	dir, err := config.HomeDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return filepath.Join(dir, "index.db"), nil
}

// closeQuietly closes c and logs a failure instead of returning it.
func closeQuietly(log *slog.Logger, name string, c interface{ Close() error }) {
	if err := c.Close(); err != nil {
		log.Warn("close failed", slog.String("resource", name), slog.Any("error", err))
	}
}
