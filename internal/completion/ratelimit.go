package completion

import (
	"context"

	"golang.org/x/time/rate"

	"ragchat/internal/domain"
)

// RateLimited delays calls to the wrapped service so that at most limit
// requests per second are issued.
type RateLimited struct {
	next    domain.CompletionService
	limiter *rate.Limiter
}

// WithRateLimit wraps next with a limiter of limit requests per second and an
// equal burst. A non-positive limit returns next unchanged.
func WithRateLimit(next domain.CompletionService, limit int) domain.CompletionService {
	if limit <= 0 {
		return next
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(limit), limit)}
}

func (r *RateLimited) Generate(ctx context.Context, messages []domain.Message, cfg domain.GenerationConfig) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.next.Generate(ctx, messages, cfg)
}
