package main

import (
	"fmt"
	"time"

	"ragchat/internal/chat"
	"ragchat/internal/chunker"
	"ragchat/internal/completion"
	"ragchat/internal/completion/anthropic"
	"ragchat/internal/completion/mock"
	"ragchat/internal/completion/openai"
	"ragchat/internal/config"
	"ragchat/internal/domain"
	openaiembed "ragchat/internal/embedding/openai"
	"ragchat/internal/embedding/tfidf"
	"ragchat/internal/summarizer"
	"ragchat/internal/vectorstore/memory"
	"ragchat/internal/vectorstore/qdrant"
	"ragchat/internal/vectorstore/sqlite"
)

func newEmbedder(cfg *config.AppConfig) (domain.Embedder, error) {
	switch cfg.Embedder.Type {
	case "tfidf", "":
		return tfidf.NewEmbedder(), nil
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		return openaiembed.NewClient(openaiembed.Config{
			BaseURL:   cfg.Embedder.OpenAI.BaseURL,
			APIKeyEnv: cfg.Embedder.OpenAI.APIKeyEnv,
			Model:     cfg.Embedder.OpenAI.Model,
			Timeout:   time.Duration(cfg.Embedder.OpenAI.TimeoutSecs) * time.Second,
			BatchSize: cfg.Embedder.OpenAI.BatchSize,
		})
	}
	return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
}

func newChunker(cfg *config.AppConfig) (domain.Chunker, error) {
	switch cfg.Chunker.Type {
	case "sentence", "":
		return chunker.NewSentenceChunker(cfg.Chunker.SentencesPerChunk, cfg.Chunker.OverlapSentences), nil
	}
	return nil, fmt.Errorf("unknown chunker: %s", cfg.Chunker.Type)
}

// newVectorStore also returns a close func for stores holding resources.
func newVectorStore(cfg *config.AppConfig) (domain.VectorStore, func() error, error) {
	noop := func() error { return nil }
	switch cfg.VectorStore.Type {
	case "memory", "":
		return memory.NewStorage(), noop, nil
	case "qdrant":
		q := cfg.VectorStore.Qdrant
		if q == nil {
			return nil, nil, fmt.Errorf("qdrant config missing")
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        q.URL,
			APIKey:     q.APIKey,
			Collection: q.Collection,
			Distance:   q.Distance,
			Timeout:    time.Duration(q.TimeoutSecs) * time.Second,
		}), noop, nil
	case "sqlite":
		if cfg.VectorStore.SQLite == nil {
			return nil, nil, fmt.Errorf("sqlite config missing")
		}
		st, err := sqlite.Open(cfg.VectorStore.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown vector store: %s", cfg.VectorStore.Type)
}

func newSummarizer(cfg *config.AppConfig) (domain.Summarizer, error) {
	switch cfg.Summarizer.Type {
	case "frequency", "":
		return summarizer.NewFrequencySummarizer(), nil
	}
	return nil, fmt.Errorf("unknown summarizer: %s", cfg.Summarizer.Type)
}

func newCompletion(cfg *config.AppConfig) (domain.CompletionService, error) {
	c := cfg.Completion
	timeout := time.Duration(c.TimeoutSecs) * time.Second
	var svc domain.CompletionService
	switch c.Type {
	case "openai":
		client, err := openai.NewClient(openai.Config{
			BaseURL:    c.BaseURL,
			APIKeyEnv:  c.APIKeyEnv,
			MaxTokens:  c.MaxTokens,
			Timeout:    timeout,
			MaxRetries: c.MaxRetries,
		})
		if err != nil {
			return nil, err
		}
		svc = client
	case "anthropic":
		client, err := anthropic.NewClient(anthropic.Config{
			BaseURL:    c.BaseURL,
			APIKeyEnv:  c.APIKeyEnv,
			MaxTokens:  c.MaxTokens,
			Timeout:    timeout,
			MaxRetries: c.MaxRetries,
		})
		if err != nil {
			return nil, err
		}
		svc = client
	case "mock":
		svc = mock.New()
	default:
		return nil, fmt.Errorf("unknown completion backend: %s", c.Type)
	}
	return completion.WithRateLimit(svc, c.RateLimit), nil
}

func chatConfig(cfg *config.AppConfig) (chat.Config, error) {
	out := chat.DefaultConfig()
	out.Model = cfg.Completion.Model
	out.Temperature = cfg.Completion.Temperature
	out.TopK = cfg.Retrieval.TopK
	out.DomainName = cfg.Corpus.Domain

	switch kind := chat.EvictionKind(cfg.Sessions.Eviction); kind {
	case chat.EvictNone, chat.EvictLRU, chat.EvictTTL:
		out.Eviction = chat.EvictionPolicy{
			Kind:     kind,
			Capacity: cfg.Sessions.Capacity,
			TTL:      time.Duration(cfg.Sessions.TTLSecs) * time.Second,
		}
	default:
		return chat.Config{}, fmt.Errorf("unknown session eviction: %s", cfg.Sessions.Eviction)
	}
	return out, nil
}
