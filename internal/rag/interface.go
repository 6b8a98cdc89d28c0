// Package rag defines the retrieval side of the question-answering pipeline:
// passage storage, similarity search, and query embedding.
// Concrete implementations (Qdrant, SQLite) satisfy these interfaces so the
// pipeline never depends on a specific backend.
package rag

import (
	"context"
)

// Document is one stored or retrieved documentation passage.
type Document struct {
	// ID is the unique identifier for this passage.
	ID string

	// Content is the raw passage text. It is the only field the answer
	// pipeline consumes.
	Content string

	// Source is the origin URL or file path of the passage.
	Source string

	// Metadata holds arbitrary key-value pairs (section, doc_type, chunk_index).
	Metadata map[string]string

	// Score is the similarity score assigned during retrieval.
	// Zero value means the score was not computed.
	Score float32
}

// VectorStore persists passages with their embeddings and answers
// nearest-neighbour queries. Implementations must be safe to call from
// multiple goroutines.
type VectorStore interface {
	// Upsert stores or updates a batch of documents with their pre-computed embeddings.
	// The embeddings slice must be parallel to docs: embeddings[i] is the vector for docs[i].
	Upsert(ctx context.Context, docs []Document, embeddings [][]float32) error

	// Search returns the top-k most similar documents for the query
	// embedding, most similar first.
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Document, error)

	// DeleteSource removes every document whose Source equals source.
	DeleteSource(ctx context.Context, source string) error

	// ReplaceSource swaps every document of source for docs. Stores that
	// support transactions apply the delete and the insert atomically.
	ReplaceSource(ctx context.Context, source string, docs []Document, embeddings [][]float32) error

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever maps a free-text query to the most similar stored passages.
// Implementations must be safe to call from multiple goroutines.
type Retriever interface {
	// Retrieve returns up to topK documents ranked by similarity to query.
	Retrieve(ctx context.Context, query string, topK int) ([]Document, error)
}
