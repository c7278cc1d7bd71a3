package mock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

func TestEchoSummary(t *testing.T) {
	out, err := New().Generate(context.Background(), []domain.Message{
		{Role: domain.RoleSystem, Text: "summarize"},
		{Role: domain.RoleUser, Text: "Conversation History:\nUser: hi\nAssistant: hello\nUser: what is a cell?\n\nSummary:"},
	}, domain.GenerationConfig{})
	require.NoError(t, err)
	assert.Equal(t, "what is a cell?", out)
}

func TestEchoAnswerCountsPassages(t *testing.T) {
	out, err := New().Generate(context.Background(), []domain.Message{
		{Role: domain.RoleSystem, Text: "ctx\nScore: 0.900\na\n\nScore: 0.500\nb"},
		{Role: domain.RoleUser, Text: "what is a cell?"},
	}, domain.GenerationConfig{})
	require.NoError(t, err)
	assert.Contains(t, out, `"what is a cell?"`)
	assert.Contains(t, out, "2 passage(s)")
}

func TestEchoCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Generate(ctx, []domain.Message{{Role: domain.RoleUser, Text: "x"}}, domain.GenerationConfig{})
	assert.ErrorIs(t, err, context.Canceled)
}
