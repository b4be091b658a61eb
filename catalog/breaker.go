package catalog

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// BreakerClient wraps a catalog Client with a circuit breaker so a catalog
// that is hard-down fails fast instead of burning its 10 s budget on every
// request.
type BreakerClient struct {
	inner Client
	cb    *gobreaker.CircuitBreaker
}

// NewBreaker wraps the given client. The breaker opens after 5 consecutive
// failures and probes again after 30 s.
func NewBreaker(inner Client) *BreakerClient {
	settings := gobreaker.Settings{
		Name:        inner.Name(),
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("catalog", name).Str("from", from.String()).Str("to", to.String()).Msg("catalog circuit state changed")
		},
	}
	return &BreakerClient{inner: inner, cb: gobreaker.NewCircuitBreaker(settings)}
}

// Name implements Client.
func (b *BreakerClient) Name() string {
	return b.inner.Name()
}

// Search implements Client through the breaker. An open circuit returns
// gobreaker.ErrOpenState, which callers treat like any other catalog failure.
func (b *BreakerClient) Search(ctx context.Context, activity, location string) ([]Venue, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Search(ctx, activity, location)
	})
	if err != nil {
		return nil, err
	}
	return out.([]Venue), nil
}
