package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"ragchat/internal/domain"
)

// Storage is a minimal REST client to Qdrant.
type Storage struct {
	url        string
	apiKey     string
	collection string
	distance   string
	dimension  int
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	// Distance is a Qdrant metric name; defaults to Cosine.
	Distance string
	Timeout  time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	distance := cfg.Distance
	if distance == "" {
		distance = "Cosine"
	}
	return &Storage{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		distance:   distance,
		client:     &http.Client{Timeout: timeout},
	}
}

// Init creates the collection. An existing collection is reused.
func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.dimension = dimension
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": s.distance,
		},
	}
	status, err := s.do(ctx, http.MethodPut, s.collectionURL(""), body, nil)
	if err != nil && status != http.StatusConflict {
		return err
	}
	return nil
}

func (s *Storage) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	points := make([]map[string]any, len(chunks))
	for i := range chunks {
		points[i] = map[string]any{
			"id":     PointID(chunks[i].ChunkID),
			"vector": vectors[i],
			"payload": map[string]any{
				"document_id": chunks[i].DocumentID,
				"chunk_id":    chunks[i].ChunkID,
				"index":       chunks[i].Index,
				"text":        chunks[i].Text,
			},
		}
	}
	_, err := s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), map[string]any{"points": points}, nil)
	return err
}

func (s *Storage) Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64 `json:"score"`
			Payload struct {
				DocumentID string `json:"document_id"`
				ChunkID    string `json:"chunk_id"`
				Index      int    `json:"index"`
				Text       string `json:"text"`
			} `json:"payload"`
		} `json:"result"`
	}
	if _, err := s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), req, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		chunk := domain.Chunk{
			DocumentID: r.Payload.DocumentID,
			ChunkID:    r.Payload.ChunkID,
			Index:      r.Payload.Index,
			Text:       r.Payload.Text,
		}
		results = append(results, domain.SearchResult{Chunk: chunk, Score: r.Score})
	}
	return results, nil
}

// Clear drops the collection. A missing collection is not an error.
func (s *Storage) Clear(ctx context.Context) error {
	status, err := s.do(ctx, http.MethodDelete, s.collectionURL(""), nil, nil)
	if err != nil && status != http.StatusNotFound {
		return err
	}
	return nil
}

// PointID maps a chunk id to the stable UUID Qdrant stores it under.
func PointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("ragchat:"+chunkID)).String()
}

func (s *Storage) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, s.collection, suffix)
}

// do sends body as JSON and decodes the response into out when given. The
// HTTP status is returned alongside any error.
func (s *Storage) do(ctx context.Context, method, url string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, fmt.Errorf("qdrant %s %s failed: %s %s", method, url, resp.Status, bytes.TrimSpace(msg))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("qdrant %s %s: decode: %w", method, url, err)
		}
	}
	return resp.StatusCode, nil
}
