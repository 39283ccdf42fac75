package llm

import (
	"context"
	"time"
)

// RetryPolicy retries a failing operation a fixed number of times with
// a fixed delay between attempts.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// Do runs fn up to Attempts times, waiting Delay between attempts. It
// returns nil on the first success and the last error otherwise. A
// canceled context stops the loop immediately; onRetry, when non-nil,
// is called before each wait with the attempt number and its error.
func (p RetryPolicy) Do(ctx context.Context, fn func(attempt int) error, onRetry func(attempt int, err error)) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		if onRetry != nil {
			onRetry(attempt, lastErr)
		}
		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(p.Delay):
		}
	}
	return lastErr
}
