package designmynight

import (
	"context"
	"math"
	"time"
)

// RetryPolicy controls how often a provider call is attempted.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts including the first one.
	MaxAttempts int
	// Backoff returns the delay before attempt n+1, given the failed attempt n (1-based).
	Backoff func(attempt int) time.Duration
}

// DefaultRetryPolicy returns the provider defaults: one attempt, 2^n second backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 1,
		Backoff:     ExponentialBackoff(2),
	}
}

// ExponentialBackoff waits base^attempt seconds.
func ExponentialBackoff(baseSeconds float64) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return time.Duration(math.Pow(baseSeconds, float64(attempt)) * float64(time.Second))
	}
}

// Retry calls fn until it succeeds, the policy is exhausted, or ctx is done.
// fn receives the 1-based attempt number. The last error is returned with the
// number of attempts made.
func Retry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context, attempt int) error) (int, error) {
	maxAttempts := policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return attempt, nil
		}
		if attempt == maxAttempts {
			return attempt, lastErr
		}

		var delay time.Duration
		if policy.Backoff != nil {
			delay = policy.Backoff(attempt)
		}
		if err := sleep(ctx, delay); err != nil {
			return attempt, lastErr
		}
	}
	return maxAttempts, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
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
