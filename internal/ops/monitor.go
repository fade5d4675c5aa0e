// Package ops exposes the operator surface: health snapshots, admin
// actions, and the HTTP server carrying them.
package ops

import (
	"context"
	"sync"
	"time"

	"github.com/spoolhouse/sqlspool/internal/core/config"
	"github.com/spoolhouse/sqlspool/internal/core/domain"
	"github.com/spoolhouse/sqlspool/internal/infra/storage"
	"github.com/spoolhouse/sqlspool/internal/resilience"
	"github.com/spoolhouse/sqlspool/internal/spooling/registry"
	"github.com/spoolhouse/sqlspool/internal/spooling/watcher"
)

// Snapshot aggregates the observable state of the service.
type Snapshot struct {
	Healthy     bool                             `json:"healthy"`
	Watchers    []watcher.TaskStatus             `json:"watchers"`
	Processors  map[string]registry.Metadata     `json:"processors"`
	Breakers    map[string]string                `json:"breakers"`
	Degraded    []domain.DegradedResource        `json:"degraded"`
	QueueDepths map[string]int                   `json:"queue_depths"`
	RetryStats  map[string]resilience.RetryStats `json:"retry_stats"`
	Database    string                           `json:"database"`
	UpdatedAt   time.Time                        `json:"updated_at"`
}

// Monitor builds rate-limited snapshots from the live components.
type Monitor struct {
	watcher     *watcher.Service
	registry    *registry.Registry
	breaker     *resilience.CircuitBreaker
	degradation *resilience.Degradation
	retry       *resilience.RetryService
	provider    *config.Provider
	db          *storage.DB

	mu           sync.Mutex
	lastCheck    time.Time
	lastSnapshot Snapshot
}

// NewMonitor creates a monitor. db may be nil when no database is
// configured.
func NewMonitor(
	w *watcher.Service,
	r *registry.Registry,
	b *resilience.CircuitBreaker,
	d *resilience.Degradation,
	retry *resilience.RetryService,
	provider *config.Provider,
	db *storage.DB,
) *Monitor {
	return &Monitor{
		watcher:     w,
		registry:    r,
		breaker:     b,
		degradation: d,
		retry:       retry,
		provider:    provider,
		db:          db,
	}
}

// CheckHealth returns the current snapshot, re-built at most once per 10s.
func (m *Monitor) CheckHealth(ctx context.Context) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Rate limit checks to avoid hammering the database with pings.
	if time.Since(m.lastCheck) < 10*time.Second && !m.lastSnapshot.UpdatedAt.IsZero() {
		return m.lastSnapshot
	}

	snap := Snapshot{
		Watchers:    m.watcher.Status(),
		Processors:  m.registry.Metadata(),
		Breakers:    make(map[string]string),
		Degraded:    m.degradation.DegradedResources(),
		QueueDepths: make(map[string]int),
		RetryStats:  m.retry.Stats(),
		Database:    "not configured",
		UpdatedAt:   time.Now(),
	}

	openBreaker := false
	for resource, state := range m.breaker.States() {
		snap.Breakers[resource] = string(state)
		if state == resilience.StateOpen {
			openBreaker = true
		}
	}

	for _, w := range m.provider.Watches() {
		snap.QueueDepths[w.Name] = m.degradation.QueueDepth(ctx, w.Name)
	}

	dbOK := true
	if m.db != nil {
		if err := m.db.Health(ctx); err != nil {
			snap.Database = "unavailable: " + err.Error()
			dbOK = false
		} else {
			snap.Database = "ok"
		}
	}

	snap.Healthy = dbOK && !openBreaker && len(snap.Degraded) == 0

	m.lastCheck = time.Now()
	m.lastSnapshot = snap
	return snap
}
