package service

import (
	"context"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"ragchat/internal/domain"
	"ragchat/internal/lexicon"
)

// ErrNoDocuments is returned when the given paths hold no .txt files.
var ErrNoDocuments = errors.New("no .txt documents found")

// batchEmbedder is implemented by embedders that can embed many texts per call.
type batchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// IndexService ingests a document corpus into a vector store and answers
// retrieval queries over it. It implements domain.Index.
type IndexService struct {
	chunker             domain.Chunker
	embedder            domain.Embedder
	store               domain.VectorStore
	summarizer          domain.Summarizer
	summaryMaxSentences int
	logger              *log.Entry

	mu     sync.RWMutex
	chunks []domain.Chunk
}

type Option func(*IndexService)

func WithLogger(entry *log.Entry) Option {
	return func(s *IndexService) { s.logger = entry }
}

func NewIndexService(chunker domain.Chunker, embedder domain.Embedder, store domain.VectorStore, summarizer domain.Summarizer, summaryMaxSentences int, opts ...Option) *IndexService {
	s := &IndexService{
		chunker:             chunker,
		embedder:            embedder,
		store:               store,
		summarizer:          summarizer,
		summaryMaxSentences: summaryMaxSentences,
		logger:              log.NewEntry(log.StandardLogger()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IngestDocuments indexes every .txt file matched by paths and returns a
// short extractive summary of the corpus. When the store is persistent and
// already holds this exact corpus, embedding and upserting are skipped.
func (s *IndexService) IngestDocuments(ctx context.Context, paths []string) (string, error) {
	start := time.Now()
	documents, err := LoadDocuments(paths)
	if err != nil {
		return "", err
	}

	var allChunks []domain.Chunk
	var allTexts []string
	for _, d := range documents {
		chunks, err := s.chunker.Chunk(d)
		if err != nil {
			return "", fmt.Errorf("chunk %s: %w", d.Path, err)
		}
		for _, ch := range chunks {
			allChunks = append(allChunks, ch)
			allTexts = append(allTexts, ch.Text)
		}
	}
	if len(allChunks) == 0 {
		return "", fmt.Errorf("%w: all documents are empty", ErrNoDocuments)
	}

	// Kept for the lexical fallback.
	s.mu.Lock()
	s.chunks = allChunks
	s.mu.Unlock()

	if err := s.embedder.Prepare(allTexts); err != nil {
		return "", err
	}

	fingerprint := corpusFingerprint(s.embedder.Name(), allChunks)
	logger := s.logger.WithFields(log.Fields{"documents": len(documents), "chunks": len(allChunks)})

	persistent, isPersistent := s.store.(domain.PersistentStore)
	reused := false
	if isPersistent {
		stored, err := persistent.Fingerprint(ctx)
		if err != nil {
			return "", fmt.Errorf("read index fingerprint: %w", err)
		}
		reused = stored == fingerprint
	}

	if !reused {
		vectors, err := s.embedAll(ctx, allTexts)
		if err != nil {
			return "", err
		}
		if err := s.store.Clear(ctx); err != nil {
			return "", err
		}
		if err := s.store.Init(ctx, len(vectors[0])); err != nil {
			return "", err
		}
		if err := s.store.Upsert(ctx, allChunks, vectors); err != nil {
			return "", err
		}
		if isPersistent {
			if err := persistent.SetFingerprint(ctx, fingerprint); err != nil {
				return "", err
			}
		}
	}
	logger.WithFields(log.Fields{
		"reused":     reused,
		"elapsed_ms": time.Since(start).Milliseconds(),
	}).Info("corpus indexed")

	summary, err := s.summarizer.Summarize(allChunks, s.summaryMaxSentences)
	if err != nil {
		return "", err
	}
	return summary, nil
}

func (s *IndexService) embedAll(ctx context.Context, texts []string) ([][]float64, error) {
	if be, ok := s.embedder.(batchEmbedder); ok {
		return be.EmbedBatch(ctx, texts)
	}
	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		vec, err := s.embedder.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// Query implements domain.Index.
func (s *IndexService) Query(ctx context.Context, text string, topK int) ([]domain.Passage, error) {
	results, err := s.Search(ctx, text, topK)
	if err != nil {
		return nil, err
	}
	passages := make([]domain.Passage, len(results))
	for i, r := range results {
		passages[i] = domain.Passage{Score: r.Score, Text: r.Chunk.Text}
	}
	return passages, nil
}

// Search ranks chunks by vector similarity. Queries with no known terms, or
// with no positive match, fall back to token overlap.
func (s *IndexService) Search(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	if isZero(vec) {
		return s.lexicalSearch(query, topK), nil
	}
	res, err := s.store.Search(ctx, vec, topK)
	if err != nil {
		return nil, err
	}
	allZero := true
	for _, r := range res {
		if r.Score > 1e-9 {
			allZero = false
			break
		}
	}
	if allZero {
		return s.lexicalSearch(query, topK), nil
	}
	return res, nil
}

// LoadDocuments expands globs and directories into .txt documents. Document
// ids are derived from the path.
func LoadDocuments(paths []string) ([]domain.Document, error) {
	var files []string
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			err := filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
			continue
		}
		matches, _ := filepath.Glob(p)
		if matches == nil {
			matches = []string{p}
		}
		files = append(files, matches...)
	}

	var documents []domain.Document
	for _, m := range files {
		if !strings.HasSuffix(strings.ToLower(m), ".txt") {
			continue
		}
		data, err := os.ReadFile(m)
		if err != nil {
			return nil, err
		}
		documents = append(documents, domain.Document{ID: hashString(m), Path: m, Content: string(data)})
	}
	if len(documents) == 0 {
		return nil, ErrNoDocuments
	}
	return documents, nil
}

func (s *IndexService) lexicalSearch(query string, topK int) []domain.SearchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	qset := toTokenSet(query)
	out := make([]domain.SearchResult, len(s.chunks))
	for i, ch := range s.chunks {
		out[i] = domain.SearchResult{Chunk: ch, Score: overlapOchiai(qset, ch.Text)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if topK <= 0 {
		topK = 5
	}
	if topK > len(out) {
		topK = len(out)
	}
	return out[:topK]
}

func toTokenSet(s string) map[string]struct{} {
	tokens := lexicon.Words(s)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

// overlapOchiai is |A∩B| / sqrt(|A||B|) over distinct tokens.
func overlapOchiai(qset map[string]struct{}, text string) float64 {
	seen := toTokenSet(text)
	if len(qset) == 0 || len(seen) == 0 {
		return 0
	}
	inter := 0
	for t := range seen {
		if _, ok := qset[t]; ok {
			inter++
		}
	}
	return float64(inter) / math.Sqrt(float64(len(qset))*float64(len(seen)))
}

func isZero(vec []float64) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}

func corpusFingerprint(embedder string, chunks []domain.Chunk) string {
	h := sha256.New()
	h.Write([]byte(embedder))
	for _, c := range chunks {
		h.Write([]byte{0})
		h.Write([]byte(c.ChunkID))
		h.Write([]byte{0})
		h.Write([]byte(c.Text))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
