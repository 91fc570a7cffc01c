package retrypolicy

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy(attempts int, retryable func(error) bool) Policy {
	return Policy{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Retryable:   retryable,
	}
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := fastPolicy(5, nil).Do(context.Background(), "op", func(_ context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	boom := errors.New("still down")
	calls := 0

	err := fastPolicy(3, nil).Do(context.Background(), "op", func(_ context.Context) error {
		calls++
		return boom
	})

	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("final error should wrap the last failure, got %v", err)
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	fatal := errors.New("rejected")
	calls := 0

	policy := fastPolicy(5, func(err error) bool { return !errors.Is(err, fatal) })
	err := policy.Do(context.Background(), "op", func(_ context.Context) error {
		calls++
		return fatal
	})

	if calls != 1 {
		t.Fatalf("non-retryable error was retried, calls=%d", calls)
	}
	if !errors.Is(err, fatal) {
		t.Fatalf("expected the original error, got %v", err)
	}
}

func TestDoHonorsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	policy := Policy{MaxAttempts: 5, BaseDelay: time.Hour, Retryable: nil}
	calls := 0

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := policy.Do(ctx, "op", func(_ context.Context) error {
		calls++
		return errors.New("transient")
	})

	if calls != 1 {
		t.Fatalf("expected 1 call before cancel, got %d", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestDoZeroAttemptsStillRunsOnce(t *testing.T) {
	calls := 0
	err := fastPolicy(0, nil).Do(context.Background(), "op", func(_ context.Context) error {
		calls++
		return nil
	})
	if err != nil || calls != 1 {
		t.Fatalf("expected exactly one call, got calls=%d err=%v", calls, err)
	}
}
