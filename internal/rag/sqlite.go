package rag

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// SQLiteStore is a VectorStore persisted in a local SQLite file. Similarity
// search is a brute-force cosine scan over the collection, which is adequate
// for documentation-sized corpora (tens of thousands of passages).
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
	// collection namespaces rows so several indexes can share one file.
	collection string
}

// OpenSQLiteStore opens (or creates) a SQLiteStore at path and runs the
// schema migration. Use ":memory:" for an in-memory database in tests.
func OpenSQLiteStore(path, collection string) (*SQLiteStore, error) {
	if collection == "" {
		return nil, fmt.Errorf("sqlite store: collection name must not be empty")
	}
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, collection: collection}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// sqliteDSN applies the connection pragmas through modernc's _pragma query
// parameters. WAL lets `infohub serve` read while `infohub ingest` writes the
// same file; busy_timeout makes a second writer wait instead of failing.
// In-memory databases report journal_mode "memory" regardless.
func sqliteDSN(path string) string {
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS passages (
    id          TEXT NOT NULL,
    collection  TEXT NOT NULL,
    source      TEXT NOT NULL,
    content     TEXT NOT NULL,
    metadata    TEXT NOT NULL DEFAULT '{}',
    embedding   BLOB NOT NULL,
    PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_passages_collection_source
    ON passages (collection, source);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("sqlite store: migrate: %w", err)
	}
	return nil
}

// Upsert stores or replaces documents and their embeddings in one transaction.
func (s *SQLiteStore) Upsert(ctx context.Context, docs []Document, embeddings [][]float32) error {
	if len(docs) != len(embeddings) {
		return fmt.Errorf("sqlite store: %d documents but %d embeddings", len(docs), len(embeddings))
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.insert(ctx, tx, docs, embeddings)
	})
}

// ReplaceSource deletes every passage from source and stores docs in their
// place. Both steps commit together, so readers never see the source
// half-replaced and a failed insert leaves the old passages intact.
func (s *SQLiteStore) ReplaceSource(ctx context.Context, source string, docs []Document, embeddings [][]float32) error {
	if len(docs) != len(embeddings) {
		return fmt.Errorf("sqlite store: %d documents but %d embeddings", len(docs), len(embeddings))
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		const q = `DELETE FROM passages WHERE collection = ? AND source = ?`
		if _, err := tx.ExecContext(ctx, q, s.collection, source); err != nil {
			return fmt.Errorf("sqlite store: delete source %q: %w", source, err)
		}
		return s.insert(ctx, tx, docs, embeddings)
	})
}

// inTx runs fn in a transaction and commits when it returns nil.
func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite store: commit: %w", err)
	}
	return nil
}

// insert upserts docs inside tx.
func (s *SQLiteStore) insert(ctx context.Context, tx *sql.Tx, docs []Document, embeddings [][]float32) error {
	const q = `
INSERT INTO passages (id, collection, source, content, metadata, embedding)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (collection, id) DO UPDATE SET
    source = excluded.source,
    content = excluded.content,
    metadata = excluded.metadata,
    embedding = excluded.embedding`

	for i, doc := range docs {
		meta, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("sqlite store: marshal metadata for %s: %w", doc.ID, err)
		}
		if _, err := tx.ExecContext(ctx, q, doc.ID, s.collection, doc.Source, doc.Content, string(meta), encodeVector(embeddings[i])); err != nil {
			return fmt.Errorf("sqlite store: upsert %s: %w", doc.ID, err)
		}
	}
	return nil
}

// Search scores every passage in the collection by cosine similarity and
// returns the topK best, most similar first.
func (s *SQLiteStore) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Document, error) {
	const q = `SELECT id, source, content, metadata, embedding FROM passages WHERE collection = ?`

	rows, err := s.db.QueryContext(ctx, q, s.collection)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: search: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			doc  Document
			meta string
			blob []byte
		)
		if err := rows.Scan(&doc.ID, &doc.Source, &doc.Content, &meta, &blob); err != nil {
			return nil, fmt.Errorf("sqlite store: search scan: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("sqlite store: metadata for %s: %w", doc.ID, err)
		}
		doc.Score = cosine(queryEmbedding, decodeVector(blob))
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite store: search rows: %w", err)
	}

	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Score > docs[j].Score })
	if topK > 0 && len(docs) > topK {
		docs = docs[:topK]
	}
	return docs, nil
}

// DeleteSource removes every passage from source in this collection.
func (s *SQLiteStore) DeleteSource(ctx context.Context, source string) error {
	const q = `DELETE FROM passages WHERE collection = ? AND source = ?`
	if _, err := s.db.ExecContext(ctx, q, s.collection, source); err != nil {
		return fmt.Errorf("sqlite store: delete source %q: %w", source, err)
	}
	return nil
}

// Count returns the number of passages in the collection.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM passages WHERE collection = ?`, s.collection).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite store: count: %w", err)
	}
	return n, nil
}

// Ping verifies the database connection is usable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite store: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("sqlite store: close: %w", err)
	}
	return nil
}

// encodeVector packs v as little-endian float32s.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// decodeVector is the inverse of encodeVector.
func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}

// cosine returns the cosine similarity of a and b over their common prefix,
// or 0 when either vector has zero magnitude.
func cosine(a, b []float32) float32 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
