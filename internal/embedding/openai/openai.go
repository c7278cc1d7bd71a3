package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Client is an OpenAI-compatible embeddings client implementing the Embedder interface.
type Client struct {
	client    openai.Client
	model     string
	batchSize int
	dimension atomic.Int64
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL    string
	APIKeyEnv  string
	Model      string
	Timeout    time.Duration
	BatchSize  int
	MaxRetries int
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	client := openai.NewClient(
		option.WithAPIKey(key),
		option.WithBaseURL(cfg.BaseURL),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(cfg.MaxRetries),
	)
	return &Client{client: client, model: cfg.Model, batchSize: cfg.BatchSize}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai:" + c.model }

// Prepare is not required for remote embedding. The dimension is learned from
// the first response.
func (c *Client) Prepare(corpus []string) error { return nil }

// Dimension returns the dimensionality of the produced embedding vectors, or
// 0 before the first call.
func (c *Client) Dimension() int { return int(c.dimension.Load()) }

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := c.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in requests of at most BatchSize inputs, keeping
// the input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		vectors, err := c.embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (c *Client) embed(ctx context.Context, texts []string) ([][]float64, error) {
	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.model),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}
	vectors := make([][]float64, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(texts) || len(d.Embedding) == 0 {
			return nil, errors.New("no embedding returned")
		}
		vectors[d.Index] = d.Embedding
	}
	c.dimension.CompareAndSwap(0, int64(len(vectors[0])))
	return vectors, nil
}
