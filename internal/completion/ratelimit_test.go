package completion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

type countingService struct{ calls int }

func (c *countingService) Generate(context.Context, []domain.Message, domain.GenerationConfig) (string, error) {
	c.calls++
	return "ok", nil
}

func TestWithRateLimitDisabled(t *testing.T) {
	next := &countingService{}
	assert.Same(t, next, WithRateLimit(next, 0))
}

func TestRateLimitedPassesThrough(t *testing.T) {
	next := &countingService{}
	svc := WithRateLimit(next, 5)

	for i := 0; i < 3; i++ {
		out, err := svc.Generate(context.Background(), nil, domain.GenerationConfig{})
		require.NoError(t, err)
		assert.Equal(t, "ok", out)
	}
	assert.Equal(t, 3, next.calls)
}

func TestRateLimitedHonoursCancelledContext(t *testing.T) {
	next := &countingService{}
	svc := WithRateLimit(next, 1)

	_, err := svc.Generate(context.Background(), nil, domain.GenerationConfig{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Generate(ctx, nil, domain.GenerationConfig{})
	assert.Error(t, err)
	assert.Equal(t, 1, next.calls)
}
