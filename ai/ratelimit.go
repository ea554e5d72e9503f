package ai

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedEmbedder throttles requests to the wrapped embedder.
// A batch call counts as one request.
type RateLimitedEmbedder struct {
	inner   Embedder
	limiter *rate.Limiter
}

// NewRateLimitedEmbedder limits inner to rps requests per second with the
// given burst. With rps <= 0 inner is returned unchanged.
func NewRateLimitedEmbedder(inner Embedder, rps float64, burst int) Embedder {
	if rps <= 0 {
		return inner
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedEmbedder{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (r *RateLimitedEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.EmbedText(ctx, text)
}

func (r *RateLimitedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.EmbedTexts(ctx, texts)
}

// Ping bypasses the limiter.
func (r *RateLimitedEmbedder) Ping(ctx context.Context) error {
	return Ping(ctx, r.inner)
}
