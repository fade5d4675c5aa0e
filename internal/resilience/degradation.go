package resilience

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spoolhouse/sqlspool/internal/core/domain"
	"github.com/spoolhouse/sqlspool/internal/infra/queuestore"
	"github.com/spoolhouse/sqlspool/internal/spooling/metrics"
)

// QueueMover relocates files between watch folders and the queue storage.
// Implemented by the file mover collaborator.
type QueueMover interface {
	MoveToQueue(path, configName string) (string, error)
	MoveFromQueue(queuedPath, watchFolder string) (string, error)
}

// Degradation tracks degraded resources and diverts files into a queue
// while their resource is unavailable, returning them once it recovers.
type Degradation struct {
	mu        sync.Mutex
	records   map[string]*domain.DegradedResource
	store     queuestore.Store
	mover     QueueMover
	breaker   *CircuitBreaker
	sink      metrics.Sink
	queueRoot string
}

// NewDegradation creates the degradation service. queueRoot is the folder
// diverted files are relocated under, one subfolder per configuration.
func NewDegradation(
	store queuestore.Store,
	mover QueueMover,
	breaker *CircuitBreaker,
	sink metrics.Sink,
	queueRoot string,
) *Degradation {
	if sink == nil {
		sink = metrics.NewNop()
	}
	return &Degradation{
		records:   make(map[string]*domain.DegradedResource),
		store:     store,
		mover:     mover,
		breaker:   breaker,
		sink:      sink,
		queueRoot: queueRoot,
	}
}

// Enter flags resource as degraded. Re-entering while already degraded
// just updates the reason.
func (d *Degradation) Enter(resource, reason string) {
	d.mu.Lock()
	rec, ok := d.records[resource]
	if ok {
		rec.Reason = reason
		d.mu.Unlock()
		return
	}
	d.records[resource] = &domain.DegradedResource{
		Resource:  resource,
		Reason:    reason,
		EnteredAt: time.Now(),
	}
	d.mu.Unlock()

	d.sink.RecordDegradedMode(resource, true)
	slog.Warn("Entering degraded mode", "resource", resource, "reason", reason)
}

// Exit clears the degraded flag for resource. Idempotent.
func (d *Degradation) Exit(resource string) {
	d.mu.Lock()
	_, ok := d.records[resource]
	delete(d.records, resource)
	d.mu.Unlock()

	if ok {
		d.sink.RecordDegradedMode(resource, false)
		slog.Info("Exiting degraded mode", "resource", resource)
	}
}

// IsDegraded reports whether resource is currently degraded.
func (d *Degradation) IsDegraded(resource string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.records[resource]
	return ok
}

// IsGloballyDegraded reports whether any resource is degraded.
func (d *Degradation) IsGloballyDegraded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.records) > 0
}

// DegradedResources returns a snapshot of the current degraded records.
func (d *Degradation) DegradedResources() []domain.DegradedResource {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]domain.DegradedResource, 0, len(d.records))
	for _, rec := range d.records {
		out = append(out, *rec)
	}
	return out
}

// HandleUnavailable relocates a file out of its watch folder into the queue
// storage while resource is degraded. Returns false when the relocation
// itself fails; the file stays in place for the next tick to retry.
func (d *Degradation) HandleUnavailable(ctx context.Context, resource, path, configName string) bool {
	queuedPath, err := d.mover.MoveToQueue(path, configName)
	if err != nil {
		slog.Error("Failed to queue file during degraded mode",
			"config", configName, "file", path, "error", err)
		return false
	}

	d.mu.Lock()
	reason := ""
	if rec, ok := d.records[resource]; ok {
		reason = rec.Reason
	}
	d.mu.Unlock()

	entry := domain.QueuedFile{
		ID:           uuid.New().String(),
		ConfigName:   configName,
		Resource:     resource,
		OriginalPath: path,
		QueuedPath:   queuedPath,
		Reason:       reason,
		QueuedAt:     time.Now(),
	}
	if err := d.store.Add(ctx, entry); err != nil {
		slog.Error("Failed to index queued file", "file", queuedPath, "error", err)
	}

	d.recordDepth(ctx, configName)
	slog.Info("Diverted file to degradation queue",
		"config", configName, "resource", resource, "file", path)
	return true
}

// ProcessQueuedFiles moves every file queued for configName back into
// watchFolder so the normal tick picks it up again, and returns the count
// successfully restored.
func (d *Degradation) ProcessQueuedFiles(ctx context.Context, configName, watchFolder string) int {
	entries, err := d.store.List(ctx, configName)
	if err != nil {
		slog.Error("Failed to list queued files", "config", configName, "error", err)
		return 0
	}

	restored := 0
	for _, entry := range entries {
		if _, err := d.mover.MoveFromQueue(entry.QueuedPath, watchFolder); err != nil {
			slog.Error("Failed to restore queued file",
				"config", configName, "file", entry.QueuedPath, "error", err)
			continue
		}
		if err := d.store.Remove(ctx, configName, entry.ID); err != nil {
			slog.Warn("Failed to drop queue entry", "id", entry.ID, "error", err)
		}
		restored++
	}

	if restored > 0 {
		slog.Info("Restored queued files", "config", configName, "count", restored)
	}
	d.recordDepth(ctx, configName)
	return restored
}

// QueueDepth returns the number of files queued for configName.
func (d *Degradation) QueueDepth(ctx context.Context, configName string) int {
	entries, err := d.store.List(ctx, configName)
	if err != nil {
		return 0
	}
	return len(entries)
}

func (d *Degradation) recordDepth(ctx context.Context, configName string) {
	d.sink.RecordQueueDepth(configName, d.QueueDepth(ctx, configName))
}

// CheckSystemHealth reconciles degraded-mode flags with breaker states:
// an OPEN breaker puts its resource into degraded mode, a CLOSED breaker
// takes it out. HALF_OPEN leaves the flag untouched.
func (d *Degradation) CheckSystemHealth(ctx context.Context) {
	if d.breaker == nil {
		return
	}
	for resource, state := range d.breaker.States() {
		switch state {
		case StateOpen:
			if !d.IsDegraded(resource) {
				d.Enter(resource, "circuit breaker open")
			}
		case StateClosed:
			d.Exit(resource)
		}
	}
}

// RestoreIndex reconciles the queue index with files found on disk under
// the queue folder, so files queued by a previous run remain replayable.
// Best effort; duplicates are avoided by queued path.
func (d *Degradation) RestoreIndex(ctx context.Context) error {
	dirs, err := os.ReadDir(d.queueRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, dir := range dirs {
		if !dir.IsDir() {
			continue
		}
		configName := dir.Name()

		known := make(map[string]bool)
		entries, err := d.store.List(ctx, configName)
		if err == nil {
			for _, e := range entries {
				known[e.QueuedPath] = true
			}
		}

		files, err := os.ReadDir(filepath.Join(d.queueRoot, configName))
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			queuedPath := filepath.Join(d.queueRoot, configName, f.Name())
			if known[queuedPath] {
				continue
			}
			entry := domain.QueuedFile{
				ID:         uuid.New().String(),
				ConfigName: configName,
				QueuedPath: queuedPath,
				Reason:     "recovered from previous run",
				QueuedAt:   time.Now(),
			}
			if err := d.store.Add(ctx, entry); err != nil {
				slog.Warn("Failed to re-index queued file", "file", queuedPath, "error", err)
				continue
			}
			slog.Info("Re-indexed queued file from previous run",
				"config", configName, "file", queuedPath)
		}
		d.recordDepth(ctx, configName)
	}
	return nil
}
