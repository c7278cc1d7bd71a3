package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

func TestFormatPassagesEmpty(t *testing.T) {
	assert.Equal(t, "", FormatPassages(nil))
	assert.Equal(t, "", FormatPassages([]domain.Passage{}))
}

func TestFormatPassagesBlocks(t *testing.T) {
	rule := strings.Repeat("-", 45)
	passages := []domain.Passage{
		{Score: 0.91, Text: "Photosynthesis converts light to chemical energy."},
		{Score: 0.5, Text: "Second."},
	}

	got := FormatPassages(passages)
	want := rule + "\nScore: 0.910\nPhotosynthesis converts light to chemical energy.\n" + rule +
		"\n\n" + rule + "\nScore: 0.500\nSecond.\n" + rule
	assert.Equal(t, want, got)
	assert.Equal(t, got, FormatPassages(passages))
}

func TestRetrieveContextPassesTopKThrough(t *testing.T) {
	idx := &fakeIndex{passages: []domain.Passage{{Score: 1, Text: "a"}}}
	r := NewContextRetriever(idx)

	_, err := r.RetrieveContext(context.Background(), "q", 0)
	require.NoError(t, err)
	_, err = r.RetrieveContext(context.Background(), "q", -3)
	require.NoError(t, err)

	assert.Equal(t, []int{0, -3}, idx.topKs)
}

func TestRetrieveContextNoHits(t *testing.T) {
	r := NewContextRetriever(&fakeIndex{})
	got, err := r.RetrieveContext(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestRetrieveContextError(t *testing.T) {
	boom := errors.New("boom")
	r := NewContextRetriever(&fakeIndex{err: boom})
	_, err := r.RetrieveContext(context.Background(), "q", 5)
	assert.ErrorIs(t, err, boom)
}
