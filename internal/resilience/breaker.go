package resilience

import (
	"log/slog"
	"sync"
	"time"

	"github.com/spoolhouse/sqlspool/internal/spooling/metrics"
)

// BreakerState is the state of one resource's circuit breaker.
type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half_open"
)

// BreakerConfig tunes the breaker state machine.
type BreakerConfig struct {
	FailureThreshold int           // failures within Window before opening
	Window           time.Duration // rolling window for counting failures
	Cooldown         time.Duration // open duration before a half-open trial
}

// DefaultBreakerConfig provides sensible defaults.
var DefaultBreakerConfig = BreakerConfig{
	FailureThreshold: 5,
	Window:           60 * time.Second,
	Cooldown:         30 * time.Second,
}

type breakerEntry struct {
	state        BreakerState
	failureCount int
	windowStart  time.Time
	openedAt     time.Time
	trialActive  bool
	forced       bool // admin override, not cleared by cooldown
}

// CircuitBreaker guards named resources with a CLOSED/OPEN/HALF_OPEN state
// machine. While a resource is OPEN all calls short-circuit to the fallback.
type CircuitBreaker struct {
	mu      sync.Mutex
	cfg     BreakerConfig
	entries map[string]*breakerEntry
	sink    metrics.Sink
	now     func() time.Time
}

// NewCircuitBreaker creates a breaker service. Zero-valued config fields
// fall back to the defaults.
func NewCircuitBreaker(cfg BreakerConfig, sink metrics.Sink) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultBreakerConfig.FailureThreshold
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultBreakerConfig.Window
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultBreakerConfig.Cooldown
	}
	if sink == nil {
		sink = metrics.NewNop()
	}
	return &CircuitBreaker{
		cfg:     cfg,
		entries: make(map[string]*breakerEntry),
		sink:    sink,
		now:     time.Now,
	}
}

func (b *CircuitBreaker) entry(resource string) *breakerEntry {
	e, ok := b.entries[resource]
	if !ok {
		e = &breakerEntry{state: StateClosed, windowStart: b.now()}
		b.entries[resource] = e
	}
	return e
}

// Execute runs op under the breaker for resource. If the breaker is open,
// fallback runs instead and op is never invoked. A half-open breaker admits
// exactly one trial call; concurrent callers fall back.
func (b *CircuitBreaker) Execute(resource string, op func() error, fallback func() error) error {
	b.mu.Lock()
	e := b.entry(resource)
	now := b.now()

	if e.state == StateOpen && !e.forced && now.Sub(e.openedAt) >= b.cfg.Cooldown {
		b.transition(resource, e, StateHalfOpen)
	}

	switch e.state {
	case StateOpen:
		b.mu.Unlock()
		b.sink.RecordCircuitRejection(resource)
		if fallback != nil {
			return fallback()
		}
		return nil
	case StateHalfOpen:
		if e.trialActive {
			b.mu.Unlock()
			b.sink.RecordCircuitRejection(resource)
			if fallback != nil {
				return fallback()
			}
			return nil
		}
		e.trialActive = true
	}
	b.mu.Unlock()

	err := op()

	b.mu.Lock()
	defer b.mu.Unlock()
	e = b.entry(resource)
	e.trialActive = false

	if err != nil {
		b.recordFailure(resource, e)
		return err
	}

	if e.state == StateHalfOpen {
		b.transition(resource, e, StateClosed)
	}
	e.failureCount = 0
	e.windowStart = b.now()
	return nil
}

// recordFailure counts a failure within the rolling window and opens the
// breaker when the threshold is crossed. Callers hold the lock.
func (b *CircuitBreaker) recordFailure(resource string, e *breakerEntry) {
	now := b.now()

	if e.state == StateHalfOpen {
		b.transition(resource, e, StateOpen)
		e.openedAt = now
		return
	}

	if now.Sub(e.windowStart) > b.cfg.Window {
		e.failureCount = 0
		e.windowStart = now
	}
	e.failureCount++

	if e.state == StateClosed && e.failureCount >= b.cfg.FailureThreshold {
		b.transition(resource, e, StateOpen)
		e.openedAt = now
	}
}

// transition moves the entry to the new state and notifies the sink.
// Callers hold the lock.
func (b *CircuitBreaker) transition(resource string, e *breakerEntry, state BreakerState) {
	if e.state == state {
		return
	}
	slog.Info("Circuit breaker state change",
		"resource", resource, "from", e.state, "to", state)
	e.state = state
	if state == StateClosed {
		e.failureCount = 0
		e.windowStart = b.now()
		e.forced = false
	}
	b.sink.RecordCircuitStateChange(resource, string(state))
}

// ForceOpen opens the breaker for resource until ForceClose is called.
// Used by the health check and by operators.
func (b *CircuitBreaker) ForceOpen(resource string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.entry(resource)
	b.transition(resource, e, StateOpen)
	e.openedAt = b.now()
	e.forced = true
}

// ForceClose closes the breaker for resource and resets its counters.
func (b *CircuitBreaker) ForceClose(resource string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.entry(resource)
	b.transition(resource, e, StateClosed)
}

// IsAvailable reports whether calls against resource would be attempted.
func (b *CircuitBreaker) IsAvailable(resource string) bool {
	return b.State(resource) != StateOpen
}

// State returns the current state of resource's breaker.
func (b *CircuitBreaker) State(resource string) BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.entry(resource)
	if e.state == StateOpen && !e.forced && b.now().Sub(e.openedAt) >= b.cfg.Cooldown {
		b.transition(resource, e, StateHalfOpen)
	}
	return e.state
}

// States returns a snapshot of all tracked breakers.
func (b *CircuitBreaker) States() map[string]BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]BreakerState, len(b.entries))
	for resource, e := range b.entries {
		out[resource] = e.state
	}
	return out
}
