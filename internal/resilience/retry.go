package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/spoolhouse/sqlspool/internal/core/domain"
	"github.com/spoolhouse/sqlspool/internal/spooling/metrics"
)

// RetryConfig defines retry behavior.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultRetryConfig provides sensible defaults: 3 attempts, 1s initial
// delay, doubling, capped at 60s.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:  3,
	InitialDelay: 1 * time.Second,
	Multiplier:   2.0,
	MaxDelay:     60 * time.Second,
}

// RetryStats holds per-operation retry counters.
type RetryStats struct {
	Attempts  int
	Successes int
	Failures  int
}

// RetryService executes operations with bounded exponential-backoff retry.
// It smooths over single transient failures; sustained outages are the
// circuit breaker's job.
type RetryService struct {
	cfg   RetryConfig
	mu    sync.Mutex
	stats map[string]*RetryStats
	sink  metrics.Sink
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryService creates a retry executor. Zero-valued config fields fall
// back to the defaults.
func NewRetryService(cfg RetryConfig, sink metrics.Sink) *RetryService {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultRetryConfig.MaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultRetryConfig.InitialDelay
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = DefaultRetryConfig.Multiplier
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultRetryConfig.MaxDelay
	}
	if sink == nil {
		sink = metrics.NewNop()
	}
	return &RetryService{
		cfg:   cfg,
		stats: make(map[string]*RetryStats),
		sink:  sink,
		sleep: sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Execute attempts op up to MaxAttempts times, waiting an exponentially
// growing delay between attempts. SECURITY-classified errors are never
// retried. The last error is returned after attempts are exhausted.
func (r *RetryService) Execute(ctx context.Context, description string, op func() error) error {
	var lastErr error
	attempts := 0

	for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
		attempts++
		r.recordAttempt(description)
		r.sink.RecordRetryAttempt(description, attempt+1)

		err := op()
		if err == nil {
			r.recordSuccess(description)
			r.sink.RecordRetrySuccess(description)
			return nil
		}
		lastErr = err

		if Classify(err) == domain.CategorySecurity {
			slog.Warn("Not retrying security error", "operation", description, "error", err)
			break
		}
		if attempt == r.cfg.MaxAttempts-1 {
			break
		}

		delay := r.backoff(attempt)
		slog.Debug("Retrying after failure",
			"operation", description, "attempt", attempt+1, "delay", delay, "error", err)
		if err := r.sleep(ctx, delay); err != nil {
			r.recordFailure(description)
			r.sink.RecordRetryFailure(description)
			return err
		}
	}

	r.recordFailure(description)
	r.sink.RecordRetryFailure(description)
	return fmt.Errorf("%s failed after %d attempts: %w", description, attempts, lastErr)
}

// backoff calculates delay: InitialDelay * Multiplier^attempt, capped.
func (r *RetryService) backoff(attempt int) time.Duration {
	delay := float64(r.cfg.InitialDelay) * math.Pow(r.cfg.Multiplier, float64(attempt))
	if delay > float64(r.cfg.MaxDelay) {
		return r.cfg.MaxDelay
	}
	return time.Duration(delay)
}

func (r *RetryService) recordAttempt(description string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stat(description).Attempts++
}

func (r *RetryService) recordSuccess(description string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stat(description).Successes++
}

func (r *RetryService) recordFailure(description string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stat(description).Failures++
}

// stat returns the counter record for description. Callers hold the lock.
func (r *RetryService) stat(description string) *RetryStats {
	s, ok := r.stats[description]
	if !ok {
		s = &RetryStats{}
		r.stats[description] = s
	}
	return s
}

// Stats returns a snapshot of the per-operation counters.
func (r *RetryService) Stats() map[string]RetryStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]RetryStats, len(r.stats))
	for desc, s := range r.stats {
		out[desc] = *s
	}
	return out
}
