package domain

import "context"

// Document represents a single text file loaded into the system.
type Document struct {
	ID      string
	Path    string
	Content string
}

// Chunk is a semantically meaningful part of a document used for indexing.
type Chunk struct {
	DocumentID string
	ChunkID    string
	Text       string
	Index      int
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(corpus []string) error
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// VectorStore persists vectors and supports similarity search.
type VectorStore interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, chunks []Chunk, vectors [][]float64) error
	Search(ctx context.Context, vector []float64, topK int) ([]SearchResult, error)
	Clear(ctx context.Context) error
}

// PersistentStore is a VectorStore that survives restarts. The fingerprint
// identifies the corpus and embedder the stored vectors were built from.
type PersistentStore interface {
	VectorStore
	Fingerprint(ctx context.Context) (string, error)
	SetFingerprint(ctx context.Context, fingerprint string) error
}

// Summarizer condenses the indexed chunks into a short corpus overview.
type Summarizer interface {
	Summarize(chunks []Chunk, maxSentences int) (string, error)
}
