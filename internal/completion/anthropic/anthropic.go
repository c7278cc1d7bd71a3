package anthropic

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"ragchat/internal/domain"
)

const defaultMaxTokens = 1024

// Config configures the Messages API client.
type Config struct {
	BaseURL    string
	APIKeyEnv  string
	MaxTokens  int
	Timeout    time.Duration
	MaxRetries int
}

// Client generates text with the Messages API. System messages are moved to
// the request's system field.
type Client struct {
	client    anthropic.Client
	maxTokens int
}

func NewClient(cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	opts := []option.RequestOption{option.WithAPIKey(key), option.WithMaxRetries(max(cfg.MaxRetries, 0))}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Client{client: anthropic.NewClient(opts...), maxTokens: maxTokens}, nil
}

func (c *Client) Generate(ctx context.Context, messages []domain.Message, cfg domain.GenerationConfig) (string, error) {
	var system []anthropic.TextBlockParam
	conversation := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: m.Text})
		case domain.RoleAssistant:
			conversation = append(conversation, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Text)))
		default:
			conversation = append(conversation, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Text)))
		}
	}

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(cfg.Model),
		MaxTokens:   int64(c.maxTokens),
		System:      system,
		Messages:    conversation,
		Temperature: anthropic.Float(cfg.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}
