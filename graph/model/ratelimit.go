package model

import (
	"context"

	"golang.org/x/time/rate"
)

// Throttled wraps a Generator with a token-bucket rate limiter so bursty
// fan-out stages (per-venue vibe and explanation calls) cannot exceed the
// provider's request budget.
type Throttled struct {
	inner   Generator
	limiter *rate.Limiter
}

// NewThrottled returns a Generator limited to rps requests per second with
// the given burst. rps <= 0 disables throttling.
func NewThrottled(inner Generator, rps float64, burst int) *Throttled {
	var limiter *rate.Limiter
	if rps > 0 {
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &Throttled{inner: inner, limiter: limiter}
}

// Generate waits for limiter headroom, then delegates. Waiting respects
// context cancellation, so a timed-out caller never blocks on the bucket.
func (t *Throttled) Generate(ctx context.Context, req Request) (string, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	return t.inner.Generate(ctx, req)
}
