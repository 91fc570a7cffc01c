package retrypolicy

import (
	"context"
	"fmt"
	"time"

	logger "github.com/sirupsen/logrus"
)

// Policy is an explicit, composable retry wrapper for blocking I/O calls.
// The retryable predicate decides which failures are worth another attempt;
// everything else is returned immediately.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Retryable   func(error) bool
}

// Default matches the backoff the broker clients use internally.
func Default(retryable func(error) bool) Policy {
	return Policy{
		MaxAttempts: 5,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
		Retryable:   retryable,
	}
}

// Do runs op, retrying retryable failures with exponential backoff until
// the attempts are exhausted or the context ends.
func (p Policy) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := p.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		logger.WithError(lastErr).WithFields(logger.Fields{
			"op":      name,
			"attempt": attempt,
			"delay":   delay.String(),
		}).Warn("retrying after failure")

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled during retry: %w", name, ctx.Err())
		case <-time.After(delay):
		}

		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", name, attempts, lastErr)
}
