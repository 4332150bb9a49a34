package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy bounds how many times an operation runs and how long to wait between runs.
type Policy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
}

// Linear waits attempt*base after the given failed attempt.
func Linear(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * base
	}
}

type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type RealClock struct{}

func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
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

// Do calls fn until it succeeds or the policy runs out of attempts. Each attempt is an
// independent call; attempts are numbered from 1.
func Do[T any](ctx context.Context, p Policy, clock Clock, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	if clock == nil {
		clock = RealClock{}
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := fn(ctx, attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		if p.Backoff != nil {
			if err := clock.Sleep(ctx, p.Backoff(attempt)); err != nil {
				return zero, fmt.Errorf("retry interrupted after attempt %d: %w", attempt, err)
			}
		}
	}
	return zero, fmt.Errorf("all %d attempts failed: %w", attempts, lastErr)
}
