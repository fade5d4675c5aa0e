package resilience

import (
	"errors"
	"testing"
	"time"
)

func newTestBreaker(cfg BreakerConfig) (*CircuitBreaker, *time.Time) {
	b := NewCircuitBreaker(cfg, nil)
	now := time.Now()
	b.now = func() time.Time { return now }
	return b, &now
}

func failingOp() error { return errors.New("boom") }
func okOp() error      { return nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{FailureThreshold: 3, Window: time.Minute, Cooldown: time.Minute})

	for i := 0; i < 3; i++ {
		if err := b.Execute("database", failingOp, nil); err == nil {
			t.Fatal("expected op error")
		}
	}

	if b.State("database") != StateOpen {
		t.Errorf("expected open after 3 failures, got %v", b.State("database"))
	}
	if b.IsAvailable("database") {
		t.Error("open breaker should not be available")
	}
}

func TestBreaker_OpenShortCircuitsToFallback(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{FailureThreshold: 1, Window: time.Minute, Cooldown: time.Minute})

	_ = b.Execute("database", failingOp, nil)

	opCalled, fallbackCalled := false, false
	err := b.Execute("database",
		func() error { opCalled = true; return nil },
		func() error { fallbackCalled = true; return nil },
	)
	if err != nil {
		t.Fatalf("fallback path returned error: %v", err)
	}
	if opCalled {
		t.Error("op must not run while breaker is open")
	}
	if !fallbackCalled {
		t.Error("fallback must run while breaker is open")
	}
}

func TestBreaker_HalfOpenTrialClosesOnSuccess(t *testing.T) {
	b, now := newTestBreaker(BreakerConfig{FailureThreshold: 1, Window: time.Minute, Cooldown: 30 * time.Second})

	_ = b.Execute("database", failingOp, nil)
	if b.State("database") != StateOpen {
		t.Fatal("expected open")
	}

	*now = now.Add(31 * time.Second)
	if b.State("database") != StateHalfOpen {
		t.Fatalf("expected half-open after cooldown, got %v", b.State("database"))
	}

	if err := b.Execute("database", okOp, nil); err != nil {
		t.Fatalf("trial call failed: %v", err)
	}
	if b.State("database") != StateClosed {
		t.Errorf("expected closed after successful trial, got %v", b.State("database"))
	}
}

func TestBreaker_HalfOpenTrialReopensOnFailure(t *testing.T) {
	b, now := newTestBreaker(BreakerConfig{FailureThreshold: 1, Window: time.Minute, Cooldown: 30 * time.Second})

	_ = b.Execute("database", failingOp, nil)
	*now = now.Add(31 * time.Second)

	_ = b.Execute("database", failingOp, nil)
	if b.State("database") != StateOpen {
		t.Errorf("expected re-open after failed trial, got %v", b.State("database"))
	}
}

func TestBreaker_WindowResetsFailureCount(t *testing.T) {
	b, now := newTestBreaker(BreakerConfig{FailureThreshold: 3, Window: 10 * time.Second, Cooldown: time.Minute})

	_ = b.Execute("database", failingOp, nil)
	_ = b.Execute("database", failingOp, nil)

	// Failures age out of the rolling window.
	*now = now.Add(11 * time.Second)
	_ = b.Execute("database", failingOp, nil)

	if b.State("database") != StateClosed {
		t.Errorf("stale failures should not open the breaker, got %v", b.State("database"))
	}
}

func TestBreaker_ForceOpenForceClose(t *testing.T) {
	b, now := newTestBreaker(BreakerConfig{FailureThreshold: 5, Window: time.Minute, Cooldown: time.Second})

	b.ForceOpen("database")
	opCalled := false
	_ = b.Execute("database", func() error { opCalled = true; return nil }, okOp)
	if opCalled {
		t.Error("op must not run after ForceOpen")
	}

	// A forced-open breaker does not half-open on cooldown.
	*now = now.Add(time.Hour)
	if b.State("database") != StateOpen {
		t.Errorf("forced-open breaker must stay open, got %v", b.State("database"))
	}

	b.ForceClose("database")
	opCalled = false
	if err := b.Execute("database", func() error { opCalled = true; return nil }, nil); err != nil {
		t.Fatalf("Execute after ForceClose failed: %v", err)
	}
	if !opCalled {
		t.Error("op must run after ForceClose")
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{FailureThreshold: 3, Window: time.Minute, Cooldown: time.Minute})

	_ = b.Execute("database", failingOp, nil)
	_ = b.Execute("database", failingOp, nil)
	_ = b.Execute("database", okOp, nil)
	_ = b.Execute("database", failingOp, nil)
	_ = b.Execute("database", failingOp, nil)

	if b.State("database") != StateClosed {
		t.Errorf("success should reset the failure count, got %v", b.State("database"))
	}
}

func TestBreaker_IndependentResources(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{FailureThreshold: 1, Window: time.Minute, Cooldown: time.Minute})

	_ = b.Execute("database", failingOp, nil)

	if b.State("database") != StateOpen {
		t.Error("database breaker should be open")
	}
	if b.State("filesystem") != StateClosed {
		t.Error("filesystem breaker should be unaffected")
	}

	states := b.States()
	if len(states) != 2 {
		t.Errorf("expected 2 tracked resources, got %d", len(states))
	}
}
