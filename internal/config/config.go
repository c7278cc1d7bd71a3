package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url" toml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env" toml:"api_key_env"`
	Model       string `yaml:"model" toml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs" toml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size" toml:"batch_size"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string                `yaml:"type" toml:"type"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty" toml:"openai,omitempty"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Type              string `yaml:"type" toml:"type"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk" toml:"sentences_per_chunk"`
	OverlapSentences  int    `yaml:"overlap_sentences" toml:"overlap_sentences"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type" toml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty" toml:"qdrant,omitempty"`
	SQLite *SQLiteConfig `yaml:"sqlite,omitempty" toml:"sqlite,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url" toml:"url"`
	APIKey      string `yaml:"api_key" toml:"api_key"`
	Collection  string `yaml:"collection" toml:"collection"`
	Distance    string `yaml:"distance" toml:"distance"`
	TimeoutSecs int    `yaml:"timeout_secs" toml:"timeout_secs"`
}

// SQLiteConfig points at the database file of the persisted index.
type SQLiteConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// SummarizerConfig selects and configures the corpus summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type" toml:"type"`
	MaxSentences int    `yaml:"max_sentences" toml:"max_sentences"`
}

// CompletionConfig selects the language model backend.
type CompletionConfig struct {
	Type        string  `yaml:"type" toml:"type"`
	Model       string  `yaml:"model" toml:"model"`
	Temperature float64 `yaml:"temperature" toml:"temperature"`
	BaseURL     string  `yaml:"base_url,omitempty" toml:"base_url,omitempty"`
	APIKeyEnv   string  `yaml:"api_key_env,omitempty" toml:"api_key_env,omitempty"`
	TimeoutSecs int     `yaml:"timeout_secs" toml:"timeout_secs"`
	MaxTokens   int     `yaml:"max_tokens" toml:"max_tokens"`
	MaxRetries  int     `yaml:"max_retries" toml:"max_retries"`
	// RateLimit is requests per second; 0 disables limiting.
	RateLimit int `yaml:"rate_limit" toml:"rate_limit"`
}

// RetrievalConfig controls how many passages are injected per turn.
type RetrievalConfig struct {
	TopK int `yaml:"top_k" toml:"top_k"`
}

// SessionsConfig bounds the in-process session registry.
type SessionsConfig struct {
	Eviction string `yaml:"eviction" toml:"eviction"`
	Capacity int    `yaml:"capacity" toml:"capacity"`
	TTLSecs  int    `yaml:"ttl_secs" toml:"ttl_secs"`
}

// CorpusConfig locates the documents and names their subject.
type CorpusConfig struct {
	DataDir string `yaml:"data_dir" toml:"data_dir"`
	Domain  string `yaml:"domain" toml:"domain"`
}

// LogConfig configures logrus. File receives the log when set; otherwise the
// TUI discards it and the plain REPL writes to stderr.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
	File   string `yaml:"file,omitempty" toml:"file,omitempty"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder    EmbedderConfig    `yaml:"embedder" toml:"embedder"`
	Chunker     ChunkerConfig     `yaml:"chunker" toml:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store" toml:"vector_store"`
	Summarizer  SummarizerConfig  `yaml:"summarizer" toml:"summarizer"`
	Completion  CompletionConfig  `yaml:"completion" toml:"completion"`
	Retrieval   RetrievalConfig   `yaml:"retrieval" toml:"retrieval"`
	Sessions    SessionsConfig    `yaml:"sessions" toml:"sessions"`
	Corpus      CorpusConfig      `yaml:"corpus" toml:"corpus"`
	Log         LogConfig         `yaml:"log" toml:"log"`
}

// Load reads a config from a specified path. Files ending in .toml are parsed
// as TOML, everything else as YAML. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if isTOML(path) {
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml, ./config.toml, then ~/.config/ragchat/config.yaml.
// If none exists, it writes defaults to ~/.config/ragchat/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	for _, cwdPath := range []string{"config.yaml", "config.toml"} {
		if _, err := os.Stat(cwdPath); err == nil {
			cfg, err := Load(cwdPath)
			return cfg, cwdPath, err
		}
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var data []byte
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return err
		}
		data = buf.Bytes()
	} else {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		data = out
	}
	return os.WriteFile(path, data, 0o644)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragchat", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Embedder:    EmbedderConfig{Type: "tfidf"},
		Chunker:     ChunkerConfig{Type: "sentence", SentencesPerChunk: 5, OverlapSentences: 1},
		VectorStore: VectorStoreConfig{Type: "memory"},
		Summarizer:  SummarizerConfig{Type: "frequency", MaxSentences: 5},
		Completion:  CompletionConfig{Type: "openai", Model: "gpt-4o", Temperature: 0.0},
		Retrieval:   RetrievalConfig{TopK: 5},
		Sessions:    SessionsConfig{Eviction: "lru", Capacity: 1000},
		Corpus:      CorpusConfig{DataDir: "data", Domain: "K-12 education"},
		Log:         LogConfig{Level: "info", Format: "text"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Chunker.SentencesPerChunk == 0 {
		cfg.Chunker.SentencesPerChunk = 5
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
		if cfg.Embedder.OpenAI.BatchSize == 0 {
			cfg.Embedder.OpenAI.BatchSize = 32
		}
	}
	if cfg.VectorStore.Type == "qdrant" {
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		if cfg.VectorStore.Qdrant.URL == "" {
			cfg.VectorStore.Qdrant.URL = "http://localhost:6333"
		}
		if cfg.VectorStore.Qdrant.Collection == "" {
			cfg.VectorStore.Qdrant.Collection = "ragchat"
		}
	}
	if cfg.VectorStore.Type == "sqlite" {
		if cfg.VectorStore.SQLite == nil {
			cfg.VectorStore.SQLite = &SQLiteConfig{}
		}
		if cfg.VectorStore.SQLite.Path == "" {
			cfg.VectorStore.SQLite.Path = "index.db"
		}
	}

	if cfg.Completion.Type == "" {
		cfg.Completion.Type = "openai"
	}
	if cfg.Completion.Model == "" {
		switch cfg.Completion.Type {
		case "anthropic":
			cfg.Completion.Model = "claude-sonnet-4-20250514"
		default:
			cfg.Completion.Model = "gpt-4o"
		}
	}
	if cfg.Completion.APIKeyEnv == "" {
		switch cfg.Completion.Type {
		case "openai":
			cfg.Completion.APIKeyEnv = "OPENAI_API_KEY"
		case "anthropic":
			cfg.Completion.APIKeyEnv = "ANTHROPIC_API_KEY"
		}
	}
	if cfg.Completion.TimeoutSecs == 0 {
		cfg.Completion.TimeoutSecs = 60
	}
	if cfg.Completion.MaxRetries == 0 {
		cfg.Completion.MaxRetries = 2
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Sessions.Eviction == "" {
		cfg.Sessions.Eviction = "lru"
	}
	if cfg.Sessions.Capacity == 0 {
		cfg.Sessions.Capacity = 1000
	}
	if cfg.Sessions.Eviction == "ttl" && cfg.Sessions.TTLSecs == 0 {
		cfg.Sessions.TTLSecs = 3600
	}
	if cfg.Corpus.DataDir == "" {
		cfg.Corpus.DataDir = "data"
	}
	if cfg.Corpus.Domain == "" {
		cfg.Corpus.Domain = "K-12 education"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
