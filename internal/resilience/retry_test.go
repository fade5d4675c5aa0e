package resilience

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

func newTestRetry(cfg RetryConfig) (*RetryService, *[]time.Duration) {
	r := NewRetryService(cfg, nil)
	var delays []time.Duration
	r.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return r, &delays
}

func TestRetry_SucceedsAfterTransientFailure(t *testing.T) {
	r, _ := newTestRetry(RetryConfig{MaxAttempts: 3, InitialDelay: time.Second})

	calls := 0
	err := r.Execute(context.Background(), "op", func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}

	stats := r.Stats()["op"]
	if stats.Attempts != 3 || stats.Successes != 1 || stats.Failures != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestRetry_ExhaustsAttemptsAndReturnsLastError(t *testing.T) {
	r, delays := newTestRetry(RetryConfig{MaxAttempts: 3, InitialDelay: time.Second, Multiplier: 2})

	calls := 0
	err := r.Execute(context.Background(), "op", func() error {
		calls++
		return errors.New("still broken")
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}

	// Exponential: 1s, then 2s. No wait after the final attempt.
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(*delays) != len(want) {
		t.Fatalf("expected %d delays, got %v", len(want), *delays)
	}
	for i, d := range want {
		if (*delays)[i] != d {
			t.Errorf("delay %d: expected %v, got %v", i, d, (*delays)[i])
		}
	}

	stats := r.Stats()["op"]
	if stats.Failures != 1 {
		t.Errorf("expected 1 recorded failure, got %d", stats.Failures)
	}
}

func TestRetry_BackoffCappedAtMaxDelay(t *testing.T) {
	r, delays := newTestRetry(RetryConfig{
		MaxAttempts: 5, InitialDelay: time.Second, Multiplier: 10, MaxDelay: 30 * time.Second,
	})

	_ = r.Execute(context.Background(), "op", func() error { return errors.New("x") })

	for _, d := range *delays {
		if d > 30*time.Second {
			t.Errorf("delay %v exceeds cap", d)
		}
	}
}

func TestRetry_SecurityErrorNotRetried(t *testing.T) {
	r, _ := newTestRetry(RetryConfig{MaxAttempts: 3, InitialDelay: time.Second})

	calls := 0
	err := r.Execute(context.Background(), "op", func() error {
		calls++
		return os.ErrPermission
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("security error must fail fast, got %d attempts", calls)
	}
	if !strings.Contains(err.Error(), "failed after 1 attempts") {
		t.Errorf("error should report the single attempt made, got %q", err)
	}
	if !errors.Is(err, os.ErrPermission) {
		t.Errorf("expected wrapped permission error, got %v", err)
	}
}

func TestRetry_ContextCancelledDuringBackoff(t *testing.T) {
	r := NewRetryService(RetryConfig{MaxAttempts: 3, InitialDelay: time.Minute}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := r.Execute(ctx, "op", func() error {
		calls++
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context cancellation, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 attempt before cancelled wait, got %d", calls)
	}
}
