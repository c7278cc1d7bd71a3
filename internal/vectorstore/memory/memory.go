package memory

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"

	"ragchat/internal/domain"
)

// Storage is a simple in-memory vector store using brute-force cosine similarity.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	vectors   [][]float64
	chunks    []domain.Chunk
}

func NewStorage() *Storage { return &Storage{} }

func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.vectors = nil
	s.chunks = nil
	return nil
}

func (s *Storage) Upsert(_ context.Context, chunks []domain.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vectors {
		if len(v) != s.dimension {
			return errors.New("vector dimension mismatch")
		}
	}
	s.chunks = append(s.chunks, chunks...)
	s.vectors = append(s.vectors, vectors...)
	return nil
}

// Search ranks all stored vectors by dot product (vectors are assumed
// L2-normalized). Equal scores keep insertion order.
func (s *Storage) Search(_ context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = 5
	}
	results := make([]domain.SearchResult, len(s.vectors))
	for i := range s.vectors {
		results[i] = domain.SearchResult{Chunk: s.chunks[i], Score: Dot(s.vectors[i], vector)}
	}
	SortByScore(results)
	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}

func (s *Storage) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = nil
	s.chunks = nil
	return nil
}

// Len reports the number of stored chunks.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Dot is the dot product over the shorter of a and b.
func Dot(a, b []float64) float64 {
	n := min(len(a), len(b))
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// SortByScore orders results by descending score, stable on ties.
func SortByScore(results []domain.SearchResult) {
	slices.SortStableFunc(results, func(a, b domain.SearchResult) int {
		return cmp.Compare(b.Score, a.Score)
	})
}
