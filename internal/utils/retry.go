package utils

import (
	"context"
	"time"
)

// RetryPolicy bundles the retry/backoff parameters shared by operations that
// call flaky external services (remote object storage, AI art generation).
// A single policy value is threaded to every call site instead of each site
// carrying its own inline loop.
type RetryPolicy struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	PerAttemptTimeout time.Duration
}

// DefaultRetryPolicy returns conservative defaults suitable for network calls.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		BaseDelay:         2 * time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
		PerAttemptTimeout: 15 * time.Second,
	}
}

// Delay returns the backoff delay to sleep before the given attempt
// (attempt is zero-based; the first attempt has no delay).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * p.BackoffMultiplier)
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// Do runs op up to MaxAttempts times with exponential backoff between
// attempts. Each attempt gets its own deadline derived from
// PerAttemptTimeout. The last error is returned when all attempts fail.
// Cancellation of ctx stops the loop immediately.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if delay := p.Delay(attempt); delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		attemptCtx := ctx
		var cancel context.CancelFunc
		if p.PerAttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.PerAttemptTimeout)
		}

		lastErr = op(attemptCtx)
		if cancel != nil {
			cancel()
		}

		if lastErr == nil {
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return lastErr
}
