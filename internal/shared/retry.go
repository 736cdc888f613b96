package shared

import (
	"context"
	"fmt"
	"math"
	"time"
)

const (
	DefaultMaxRetries = 5
	DefaultBaseDelay  = 500 * time.Millisecond
	DefaultMaxDelay   = 10 * time.Second
)

// Retry runs fn until it succeeds or the retry budget is exhausted,
// sleeping with exponential backoff between attempts. The context
// cancels the wait between attempts.
func Retry(ctx context.Context, attempts int, fn func() error) error {
	if attempts <= 0 {
		attempts = DefaultMaxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt == attempts-1 {
			break
		}

		delay := backoffDelay(attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %w", ctx.Err(), lastErr)
		case <-timer.C:
		}
	}

	return fmt.Errorf("giving up after %d attempts: %w", attempts, lastErr)
}

// backoffDelay computes the delay before the next attempt, doubling
// from the base and capping at the maximum.
func backoffDelay(attempt int) time.Duration {
	delay := time.Duration(float64(DefaultBaseDelay) * math.Pow(2, float64(attempt)))
	if delay > DefaultMaxDelay {
		delay = DefaultMaxDelay
	}
	return delay
}
