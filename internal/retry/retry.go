// Package retry runs an operation a bounded number of times with exponential
// backoff between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted marks an error returned after every attempt failed.
var ErrExhausted = errors.New("retries exhausted")

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Policy configures Do.
type Policy struct {
	// Attempts is the total number of tries; values below 1 mean 1.
	Attempts int
	// BaseDelay is the wait after the first failure. The wait after failure n
	// (0-based) is BaseDelay * 2^n.
	BaseDelay time.Duration
	// Sleep replaces the real timer, mainly in tests.
	Sleep Sleeper
	// OnFailure observes each failed attempt before the backoff wait.
	OnFailure func(attempt int, err error, wait time.Duration)
}

// Do calls op until it succeeds or the attempts run out. A wait follows every
// failed attempt, including the last, so three failures with a 2s base block
// for 2s + 4s + 8s. The final error wraps ErrExhausted and the last failure.
// Context cancellation stops the loop early and returns the context error.
func Do[T any](ctx context.Context, policy Policy, op func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := policy.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		value, err := op(ctx, attempt)
		if err == nil {
			return value, nil
		}
		lastErr = err
		wait := Backoff(policy.BaseDelay, attempt)
		if policy.OnFailure != nil {
			policy.OnFailure(attempt, err, wait)
		}
		if err := sleep(ctx, wait); err != nil {
			return zero, err
		}
	}
	return zero, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, lastErr)
}

// Backoff returns base * 2^attempt.
func Backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 || attempt < 0 {
		return 0
	}
	return base << uint(attempt)
}

// Sleep blocks for d, returning early with ctx.Err() on cancellation.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
