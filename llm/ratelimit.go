package llm

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// rateLimited throttles every call of the wrapped provider with a token
// bucket shared by Chat and Embed.
type rateLimited struct {
	next    Provider
	limiter *rate.Limiter
}

// WithRateLimit wraps p so that it issues at most rpm calls per minute, with
// a burst of one. A non-positive rpm returns p unchanged.
func WithRateLimit(p Provider, rpm int) Provider {
	if rpm <= 0 {
		return p
	}
	return &rateLimited{
		next:    p,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
	}
}

func (r *rateLimited) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.Chat(ctx, req)
}

func (r *rateLimited) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.Embed(ctx, texts)
}
