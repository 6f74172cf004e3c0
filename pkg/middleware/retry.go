package middleware

import (
	"context"
	"math"
	"math/rand"
	"time"

	"babel-hq/rosetta/pkg/adapter"
	"babel-hq/rosetta/pkg/ir"
)

// RetryConfig controls the retry middleware.
type RetryConfig struct {
	// MaxAttempts is the total number of tries including the first.
	// Default: 3.
	MaxAttempts int

	// InitialDelay seeds the exponential backoff. Default: 100ms.
	InitialDelay time.Duration

	// MaxDelay caps the backoff. Default: 10s.
	MaxDelay time.Duration

	// Multiplier grows the delay between attempts. Default: 2.
	Multiplier float64

	// Jitter applies a symmetric multiplicative ±25% factor to each delay
	// so synchronized clients spread out.
	Jitter bool

	// ShouldRetry decides whether err at attempt n warrants another try.
	// The middleware owns the attempt budget; the predicate must not count
	// attempts itself. Default: adapter.IsRetryable.
	ShouldRetry func(err error, attempt int) bool

	// OnRetry observes each scheduled retry with the delay about to be
	// slept.
	OnRetry func(err error, attempt int, delay time.Duration)
}

func (c *RetryConfig) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2
	}
	if c.ShouldRetry == nil {
		c.ShouldRetry = func(err error, _ int) bool { return adapter.IsRetryable(err) }
	}
}

// NewRetry builds the retry middleware: the sole controller of attempt
// count for a call. Failed attempts sleep an exponentially growing delay
// before retrying; context cancellation stops the remaining attempts.
func NewRetry(cfg RetryConfig) UnaryFunc {
	cfg.applyDefaults()
	return func(ctx context.Context, mctx *Context, next Next) (*ir.ChatResponse, error) {
		var lastErr error
		for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
			resp, err := next(ctx)
			if err == nil {
				return resp, nil
			}
			lastErr = err

			if attempt == cfg.MaxAttempts || !cfg.ShouldRetry(err, attempt) {
				break
			}

			delay := backoffDelay(cfg, attempt)
			if cfg.OnRetry != nil {
				cfg.OnRetry(err, attempt, delay)
			}
			select {
			case <-ctx.Done():
				return nil, adapter.FromContext(ctx)
			case <-time.After(delay):
			}
		}
		return nil, lastErr
	}
}

// RetryOn builds a predicate that retries exactly the given error codes.
func RetryOn(codes ...adapter.ErrorCode) func(error, int) bool {
	set := make(map[adapter.ErrorCode]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return func(err error, _ int) bool {
		_, ok := set[adapter.CodeOf(err)]
		return ok
	}
}

// backoffDelay computes the capped exponential delay after the given
// failed attempt.
func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	d := time.Duration(float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1)))
	if d > cfg.MaxDelay || d <= 0 {
		d = cfg.MaxDelay
	}
	if cfg.Jitter {
		factor := 1 + (rand.Float64()*2-1)*0.25
		d = time.Duration(float64(d) * factor)
	}
	return d
}
