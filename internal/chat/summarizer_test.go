package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

func TestSummarizeTrimsAndSendsTranscript(t *testing.T) {
	fc := &fakeCompletion{summary: "  User asks about photosynthesis.\n"}
	gen := domain.GenerationConfig{Model: "gpt-4o"}
	s := NewQuerySummarizer(fc, DefaultSummaryInstruction, gen)

	got, err := s.Summarize(context.Background(), "User: What is photosynthesis?")
	require.NoError(t, err)
	assert.Equal(t, "User asks about photosynthesis.", got)

	msgs := fc.lastCall()
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.RoleSystem, msgs[0].Role)
	assert.Equal(t, DefaultSummaryInstruction, msgs[0].Text)
	assert.Contains(t, msgs[1].Text, "User: What is photosynthesis?")
	assert.Equal(t, []domain.GenerationConfig{gen}, fc.configs)
}

func TestSummarizeEmptyHistoryStillCalls(t *testing.T) {
	fc := &fakeCompletion{}
	s := NewQuerySummarizer(fc, DefaultSummaryInstruction, domain.GenerationConfig{})

	got, err := s.Summarize(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "", got)
	assert.Len(t, fc.calls, 1)
}

func TestSummarizeError(t *testing.T) {
	boom := errors.New("rate limited")
	s := NewQuerySummarizer(&fakeCompletion{summaryErr: boom}, DefaultSummaryInstruction, domain.GenerationConfig{})
	_, err := s.Summarize(context.Background(), "User: x")
	assert.Equal(t, boom, err)
}
