// Package resilience contains the failure-recovery subsystem: error
// classification, circuit breaking, bounded retry, and graceful degradation
// with file requeueing.
package resilience

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spoolhouse/sqlspool/internal/core/domain"
	"github.com/spoolhouse/sqlspool/internal/spooling/metrics"
)

// DefaultEscalationThreshold is the occurrence count past which any
// recurring error signature escalates to CIRCUIT_BREAK.
const DefaultEscalationThreshold = 10

// ErrorHandler classifies raised errors, tracks recurring signatures, and
// escalates the recommended recovery strategy for sustained failures.
type ErrorHandler struct {
	mu        sync.Mutex
	patterns  map[string]*domain.ErrorPattern
	threshold int
	sink      metrics.Sink
}

// NewErrorHandler creates a handler with the given escalation threshold.
// A threshold <= 0 selects the default.
func NewErrorHandler(threshold int, sink metrics.Sink) *ErrorHandler {
	if threshold <= 0 {
		threshold = DefaultEscalationThreshold
	}
	if sink == nil {
		sink = metrics.NewNop()
	}
	return &ErrorHandler{
		patterns:  make(map[string]*domain.ErrorPattern),
		threshold: threshold,
		sink:      sink,
	}
}

// Classify determines which subsystem an error implicates.
func Classify(err error) domain.ErrorCategory {
	if err == nil {
		return domain.CategoryUnknown
	}

	if errors.Is(err, os.ErrPermission) {
		return domain.CategorySecurity
	}
	if errors.Is(err, driver.ErrBadConn) {
		return domain.CategoryDatabase
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.CategoryDatabase
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) || errors.Is(err, os.ErrNotExist) {
		return domain.CategoryFileSystem
	}

	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "permission denied"),
		strings.Contains(s, "access denied"),
		strings.Contains(s, "unauthorized"),
		strings.Contains(s, "authentication failed"):
		return domain.CategorySecurity
	case strings.Contains(s, "connection refused"),
		strings.Contains(s, "connection reset"),
		strings.Contains(s, "broken pipe"),
		strings.Contains(s, "sqlstate"),
		strings.Contains(s, "database"),
		strings.Contains(s, "sql:"),
		strings.Contains(s, "pq:"),
		strings.Contains(s, "deadlock"),
		strings.Contains(s, "too many connections"):
		return domain.CategoryDatabase
	case strings.Contains(s, "no such file"),
		strings.Contains(s, "file exists"),
		strings.Contains(s, "is a directory"),
		strings.Contains(s, "disk"),
		strings.Contains(s, "i/o error"):
		return domain.CategoryFileSystem
	}

	return domain.CategoryUnknown
}

// baseStrategy is the per-category recommendation before escalation.
func baseStrategy(category domain.ErrorCategory) domain.RecoveryStrategy {
	switch category {
	case domain.CategoryDatabase:
		return domain.StrategyExponentialBackoff
	case domain.CategoryFileSystem:
		return domain.StrategyLinearBackoff
	case domain.CategorySecurity:
		return domain.StrategyFailFast
	default:
		return domain.StrategyExponentialBackoff
	}
}

// Handle classifies err, records its (context, category) signature, and
// returns the recommended recovery strategy. Signatures recurring past the
// escalation threshold override the category strategy with CIRCUIT_BREAK.
func (h *ErrorHandler) Handle(context string, err error, operation string) domain.ErrorReport {
	category := Classify(err)
	now := time.Now()
	sig := context + "|" + string(category)

	h.mu.Lock()
	pattern, ok := h.patterns[sig]
	if !ok {
		pattern = &domain.ErrorPattern{
			Context:   context,
			Category:  category,
			FirstSeen: now,
		}
		h.patterns[sig] = pattern
	}
	pattern.Occurrences++
	pattern.LastSeen = now
	occurrences := pattern.Occurrences
	h.mu.Unlock()

	strategy := baseStrategy(category)
	escalated := occurrences > h.threshold
	if escalated {
		strategy = domain.StrategyCircuitBreak
	}
	alert := escalated || category == domain.CategorySecurity

	h.sink.RecordError(category, context)
	slog.Warn("Handled error",
		"context", context,
		"operation", operation,
		"category", category,
		"strategy", strategy,
		"occurrences", occurrences,
		"error", err,
	)
	if alert {
		slog.Error("Error requires attention",
			"context", context,
			"category", category,
			"occurrences", occurrences,
			"error", err,
		)
	}

	return domain.ErrorReport{
		Category:    category,
		Strategy:    strategy,
		Message:     fmt.Sprintf("%s: %v", operation, err),
		Occurrences: occurrences,
		ShouldAlert: alert,
	}
}

// Patterns returns a snapshot of the tracked error patterns.
func (h *ErrorHandler) Patterns() []domain.ErrorPattern {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]domain.ErrorPattern, 0, len(h.patterns))
	for _, p := range h.patterns {
		out = append(out, *p)
	}
	return out
}

// ClearPatterns resets all tracked signatures. Used after resolved
// incidents and between test runs.
func (h *ErrorHandler) ClearPatterns() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.patterns = make(map[string]*domain.ErrorPattern)
}
