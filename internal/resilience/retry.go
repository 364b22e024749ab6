package resilience

import (
	"context"
	"errors"
	"time"
)

// Retry calls fn up to attempts times, stopping early on success or when ctx
// is canceled. Between attempts it waits backoff*2^(n-1), doubling each time.
// If every attempt fails it returns the last error joined with
// ErrRetriesExhausted; if ctx is canceled first it returns ctx.Err().
func Retry(ctx context.Context, attempts int, backoff time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	wait := backoff

	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if i == attempts-1 {
			break
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		wait *= 2
	}

	return errors.Join(ErrRetriesExhausted, lastErr)
}

// ErrRetriesExhausted wraps the final error once Retry's attempt budget runs out.
var ErrRetriesExhausted = errors.New("retries exhausted")
