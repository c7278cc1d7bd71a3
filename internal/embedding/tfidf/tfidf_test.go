package tfidf

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedRequiresPrepare(t *testing.T) {
	_, err := NewEmbedder().Embed(context.Background(), "plants")
	assert.ErrorIs(t, err, ErrNotPrepared)
	assert.Zero(t, NewEmbedder().Dimension())
}

func TestPrepareRejectsStopwordOnlyCorpus(t *testing.T) {
	assert.ErrorIs(t, NewEmbedder().Prepare(nil), ErrEmptyCorpus)
	assert.ErrorIs(t, NewEmbedder().Prepare([]string{"the and of"}), ErrNoTerms)
}

func TestEmbedIsNormalizedAndDiscriminative(t *testing.T) {
	e := NewEmbedder()
	corpus := []string{
		"Photosynthesis converts light into chemical energy in plants.",
		"Fractions describe parts of a whole number.",
	}
	require.NoError(t, e.Prepare(corpus))
	assert.Equal(t, "tfidf", e.Name())
	assert.Greater(t, e.Dimension(), 0)

	q, err := e.Embed(context.Background(), "How do plants use light?")
	require.NoError(t, err)
	require.Len(t, q, e.Dimension())

	norm := 0.0
	for _, v := range q {
		norm += v * v
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)

	bio, _ := e.Embed(context.Background(), corpus[0])
	maths, _ := e.Embed(context.Background(), corpus[1])
	assert.Greater(t, dot(q, bio), dot(q, maths))
}

func TestEmbedUnknownTermsIsZero(t *testing.T) {
	e := NewEmbedder()
	require.NoError(t, e.Prepare([]string{"plants grow"}))
	v, err := e.Embed(context.Background(), "zebra")
	require.NoError(t, err)
	for _, x := range v {
		assert.Zero(t, x)
	}
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func TestEmbedBatchMatchesEmbed(t *testing.T) {
	e := NewEmbedder()
	texts := []string{"Cells divide by mitosis.", "Plants need light.", "zebra"}
	require.NoError(t, e.Prepare(texts[:2]))

	batch, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, batch, 3)
	for i, text := range texts {
		single, err := e.Embed(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i])
	}
}

func TestEmbedStopsOnCancelledContext(t *testing.T) {
	e := NewEmbedder()
	require.NoError(t, e.Prepare([]string{"plants grow"}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Embed(ctx, "plants")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = e.EmbedBatch(ctx, []string{"plants"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPrepareReplacesVocabulary(t *testing.T) {
	e := NewEmbedder()
	require.NoError(t, e.Prepare([]string{"plants grow"}))
	require.NoError(t, e.Prepare([]string{"fractions", "decimals", "percent"}))
	assert.Equal(t, 3, e.Dimension())

	v, err := e.Embed(context.Background(), "plants")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, v)
}

func TestPrepareMatchesComposedAndDecomposedAccents(t *testing.T) {
	e := NewEmbedder()
	require.NoError(t, e.Prepare([]string{"Caf\u00e9 menus", "school lunches"}))

	v, err := e.Embed(context.Background(), "cafe\u0301")
	require.NoError(t, err)
	assert.Greater(t, dot(v, v), 0.99)
}
