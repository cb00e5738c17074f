package embed

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedEmbedder throttles API calls to the inner embedder. One
// token is spent per request regardless of batch size, matching how
// servers meter embedding endpoints.
type RateLimitedEmbedder struct {
	inner   Embedder
	limiter *rate.Limiter
}

var _ Embedder = (*RateLimitedEmbedder)(nil)

// NewRateLimitedEmbedder wraps inner with a client-side limit of rps
// calls per second. rps <= 0 returns inner unchanged.
func NewRateLimitedEmbedder(inner Embedder, rps float64) Embedder {
	if rps <= 0 {
		return inner
	}
	burst := max(int(rps), 1)
	return &RateLimitedEmbedder{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Embed waits for a rate token and delegates.
func (r *RateLimitedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Embed(ctx, text)
}

// EmbedBatch waits for a rate token and delegates. The inner embedder
// may still split into multiple API calls; the limit is approximate.
func (r *RateLimitedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.EmbedBatch(ctx, texts)
}

// Dimensions passes through to the inner embedder.
func (r *RateLimitedEmbedder) Dimensions() int {
	return r.inner.Dimensions()
}

// ModelName passes through to the inner embedder.
func (r *RateLimitedEmbedder) ModelName() string {
	return r.inner.ModelName()
}

// Available passes through to the inner embedder.
func (r *RateLimitedEmbedder) Available(ctx context.Context) bool {
	return r.inner.Available(ctx)
}

// Close closes the inner embedder.
func (r *RateLimitedEmbedder) Close() error {
	return r.inner.Close()
}
