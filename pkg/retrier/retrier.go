// Package retrier retries transient failures with exponential backoff.
// Its one consumer is the realtime dial path: the push feed drops
// connections during backend deploys, and a short jittered backoff rides
// those out without hammering the endpoint.
package retrier

import (
	"context"
	"math"
	"math/rand"
	"time"
)

const (
	defaultBaseDelay  = 500 * time.Millisecond
	defaultMaxDelay   = 10 * time.Second
	defaultMaxRetries = 5

	// jitterFraction spreads concurrent redials so they do not hit the
	// endpoint in lockstep after it comes back.
	jitterFraction = 0.2
)

// Retrier runs an operation with exponentially growing, jittered delays
// between attempts.
type Retrier struct {
	baseDelay  time.Duration
	maxDelay   time.Duration
	maxRetries int
}

// Option configures a Retrier.
type Option func(*Retrier)

// WithMaxRetries caps how many times the operation is retried after the
// first failure.
func WithMaxRetries(n int) Option {
	return func(r *Retrier) {
		r.maxRetries = n
	}
}

// WithMaxDelay caps the delay between attempts.
func WithMaxDelay(d time.Duration) Option {
	return func(r *Retrier) {
		r.maxDelay = d
	}
}

// New creates a Retrier with dial-friendly defaults.
func New(opts ...Option) *Retrier {
	r := &Retrier{
		baseDelay:  defaultBaseDelay,
		maxDelay:   defaultMaxDelay,
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// backoff returns the delay before the given retry, 1-based. The delay
// doubles per retry, is capped at maxDelay, then jittered.
func (r *Retrier) backoff(retry int) time.Duration {
	d := float64(r.baseDelay) * math.Pow(2, float64(retry-1))
	if d > float64(r.maxDelay) {
		d = float64(r.maxDelay)
	}
	d += (rand.Float64()*2 - 1) * jitterFraction * d
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// Do runs fn until it succeeds, retries are exhausted, or ctx is done.
// The last attempt's error is returned on exhaustion.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.backoff(attempt)):
			}
		}
		if err = fn(ctx); err == nil {
			return nil
		}
	}
	return err
}

// DoWithData is Do for operations that produce a value, such as dialing
// a connection.
func DoWithData[T any](r *Retrier, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, func(ctx context.Context) error {
		var e error
		result, e = fn(ctx)
		return e
	})
	return result, err
}
