// Package tfidf is the offline embedder: chunk vectors weighted by smoothed
// inverse document frequency over the ingested corpus.
package tfidf

import (
	"context"
	"errors"
	"maps"
	"math"
	"slices"
	"sync"

	"ragchat/internal/lexicon"
)

var (
	ErrNotPrepared = errors.New("tfidf: embedder not prepared")
	ErrEmptyCorpus = errors.New("tfidf: empty corpus")
	// ErrNoTerms means every corpus text was stopwords or non-letters.
	ErrNoTerms = errors.New("tfidf: corpus has no indexable terms")
)

// Embedder maps text onto the vocabulary of the last prepared corpus. Vectors
// are L2 normalized, so a dot product is their cosine similarity. Prepare may
// run again while queries are served; each call sees one vocabulary.
type Embedder struct {
	mu    sync.RWMutex
	terms map[string]int
	idf   []float64
}

func NewEmbedder() *Embedder { return &Embedder{} }

func (e *Embedder) Name() string { return "tfidf" }

// Prepare replaces the vocabulary with the terms of corpus, one entry per
// chunk text. Terms are ordered alphabetically so vectors are reproducible.
func (e *Embedder) Prepare(corpus []string) error {
	if len(corpus) == 0 {
		return ErrEmptyCorpus
	}
	df := make(map[string]int)
	for _, text := range corpus {
		for term := range termCounts(text) {
			df[term]++
		}
	}
	if len(df) == 0 {
		return ErrNoTerms
	}

	vocab := slices.Sorted(maps.Keys(df))
	terms := make(map[string]int, len(vocab))
	idf := make([]float64, len(vocab))
	n := float64(len(corpus))
	for i, term := range vocab {
		terms[term] = i
		idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}

	e.mu.Lock()
	e.terms, e.idf = terms, idf
	e.mu.Unlock()
	return nil
}

// Dimension is the vocabulary size, 0 before Prepare.
func (e *Embedder) Dimension() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.idf)
}

// Embed returns the zero vector for text without any known term.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.vector(text)
}

// EmbedBatch embeds texts against a single vocabulary and stops when ctx is
// done.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([][]float64, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := e.vector(text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *Embedder) vector(text string) ([]float64, error) {
	if e.idf == nil {
		return nil, ErrNotPrepared
	}
	vec := make([]float64, len(e.idf))
	for term, count := range termCounts(text) {
		if i, ok := e.terms[term]; ok {
			vec[i] = float64(count) * e.idf[i]
		}
	}
	normalize(vec)
	return vec, nil
}

func termCounts(text string) map[string]int {
	counts := make(map[string]int)
	for _, term := range lexicon.Terms(text) {
		counts[term]++
	}
	return counts
}

func normalize(vec []float64) {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	n := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= n
	}
}
