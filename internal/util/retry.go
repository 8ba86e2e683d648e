package util

import (
	"context"
	"fmt"
	"time"
)

// Backoff is a deterministic doubling retry schedule: the wait before
// retry n (0-indexed) is Initial * 2^n. There is no jitter.
type Backoff struct {
	Retries int
	Initial time.Duration
	// Sleep waits between attempts. Nil means Sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// RetryWithBackoff calls fn up to b.Retries+1 times.
// fn receives the current attempt number (0-indexed) and should return nil on success.
// When retryable is non-nil and reports false, the error is returned as is without waiting.
// If the context is cancelled, RetryWithBackoff returns the context error immediately.
func RetryWithBackoff(ctx context.Context, b Backoff, retryable func(error) bool, fn func(attempt int) error) error {
	sleep := b.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	wait := b.Initial
	var lastErr error
	for attempt := 0; attempt <= b.Retries; attempt++ {
		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}
		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}

		// Don't wait after the last attempt
		if attempt == b.Retries {
			break
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
		wait *= 2
	}
	return fmt.Errorf("failed after %d retries: %w", b.Retries, lastErr)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
