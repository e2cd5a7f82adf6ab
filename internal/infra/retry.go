package infra

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy retries an operation with exponential backoff. Only errors the
// Retryable predicate accepts are retried; anything else propagates from the
// attempt that produced it.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Retryable   func(error) bool
}

// Do runs fn up to MaxAttempts times. The delay before attempt n+1 is
// BaseDelay * 2^(n-1) plus a small jitter. The context cancels the wait
// between attempts.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		delay := p.BaseDelay << (attempt - 1)
		if jitter := int64(delay) / 4; jitter > 0 {
			delay += time.Duration(rand.Int63n(jitter))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}
