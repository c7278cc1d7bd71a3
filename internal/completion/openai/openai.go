package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"ragchat/internal/domain"
)

// Config configures an OpenAI-compatible chat completion endpoint.
type Config struct {
	BaseURL    string
	APIKeyEnv  string
	MaxTokens  int
	Timeout    time.Duration
	MaxRetries int
}

// Client generates text with the chat completions API.
type Client struct {
	client    openai.Client
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
	return &Client{client: openai.NewClient(opts...), maxTokens: cfg.MaxTokens}, nil
}

func (c *Client) Generate(ctx context.Context, messages []domain.Message, cfg domain.GenerationConfig) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(cfg.Model),
		Messages:    toMessages(messages),
		Temperature: openai.Float(cfg.Temperature),
	}
	if c.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(c.maxTokens))
	}
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func toMessages(messages []domain.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			out = append(out, openai.SystemMessage(m.Text))
		case domain.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Text))
		default:
			out = append(out, openai.UserMessage(m.Text))
		}
	}
	return out
}
