package resilience

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spoolhouse/sqlspool/internal/infra/files"
	"github.com/spoolhouse/sqlspool/internal/infra/queuestore"
)

func newTestDegradation(t *testing.T) (*Degradation, string, string) {
	t.Helper()
	watchDir := t.TempDir()
	queueRoot := t.TempDir()

	d := NewDegradation(
		queuestore.NewMemoryStore(),
		files.NewMover(queueRoot),
		NewCircuitBreaker(DefaultBreakerConfig, nil),
		nil,
		queueRoot,
	)
	return d, watchDir, queueRoot
}

func dropFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

func TestDegradation_EnterExit(t *testing.T) {
	d, _, _ := newTestDegradation(t)

	d.Enter("database", "connection refused")
	if !d.IsDegraded("database") {
		t.Error("expected database degraded")
	}
	if !d.IsGloballyDegraded() {
		t.Error("expected global degradation")
	}

	// Re-entering updates the reason only.
	d.Enter("database", "still down")
	recs := d.DegradedResources()
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].Reason != "still down" {
		t.Errorf("expected updated reason, got %q", recs[0].Reason)
	}

	d.Exit("database")
	if d.IsDegraded("database") {
		t.Error("expected database recovered")
	}
	d.Exit("database") // idempotent
}

func TestDegradation_DivertAndReplay(t *testing.T) {
	d, watchDir, queueRoot := newTestDegradation(t)
	ctx := context.Background()

	d.Enter("database", "down")

	a := dropFile(t, watchDir, "a.sql", "SELECT 1;")
	b := dropFile(t, watchDir, "b.sql", "SELECT 2;")

	if !d.HandleUnavailable(ctx, "database", a, "drops") {
		t.Fatal("expected diversion of a.sql to succeed")
	}
	if !d.HandleUnavailable(ctx, "database", b, "drops") {
		t.Fatal("expected diversion of b.sql to succeed")
	}

	// Files left the watch folder for the queue folder.
	if _, err := os.Stat(a); !os.IsNotExist(err) {
		t.Error("a.sql should be gone from the watch folder")
	}
	if _, err := os.Stat(filepath.Join(queueRoot, "drops", "a.sql")); err != nil {
		t.Errorf("a.sql should be in the queue folder: %v", err)
	}
	if depth := d.QueueDepth(ctx, "drops"); depth != 2 {
		t.Errorf("expected queue depth 2, got %d", depth)
	}

	d.Exit("database")

	restored := d.ProcessQueuedFiles(ctx, "drops", watchDir)
	if restored != 2 {
		t.Errorf("expected 2 files restored, got %d", restored)
	}
	if _, err := os.Stat(a); err != nil {
		t.Errorf("a.sql should be back in the watch folder: %v", err)
	}
	if _, err := os.Stat(b); err != nil {
		t.Errorf("b.sql should be back in the watch folder: %v", err)
	}
	if depth := d.QueueDepth(ctx, "drops"); depth != 0 {
		t.Errorf("expected empty queue after replay, got %d", depth)
	}
}

func TestDegradation_DivertFailureLeavesFileInPlace(t *testing.T) {
	d, watchDir, _ := newTestDegradation(t)

	missing := filepath.Join(watchDir, "never-created.sql")
	if d.HandleUnavailable(context.Background(), "database", missing, "drops") {
		t.Error("expected diversion of a missing file to fail")
	}
}

func TestDegradation_CheckSystemHealth(t *testing.T) {
	queueRoot := t.TempDir()
	breaker := NewCircuitBreaker(DefaultBreakerConfig, nil)
	d := NewDegradation(queuestore.NewMemoryStore(), files.NewMover(queueRoot), breaker, nil, queueRoot)
	ctx := context.Background()

	breaker.ForceOpen("database")
	d.CheckSystemHealth(ctx)
	if !d.IsDegraded("database") {
		t.Error("open breaker should enter degraded mode")
	}

	breaker.ForceClose("database")
	d.CheckSystemHealth(ctx)
	if d.IsDegraded("database") {
		t.Error("closed breaker should exit degraded mode")
	}
}

func TestDegradation_RestoreIndex(t *testing.T) {
	queueRoot := t.TempDir()
	store := queuestore.NewMemoryStore()
	d := NewDegradation(store, files.NewMover(queueRoot), nil, nil, queueRoot)
	ctx := context.Background()

	// Simulate files queued by a previous run: present on disk, absent
	// from the (fresh) index.
	if err := os.MkdirAll(filepath.Join(queueRoot, "drops"), 0o755); err != nil {
		t.Fatal(err)
	}
	dropFile(t, filepath.Join(queueRoot, "drops"), "orphan.sql", "SELECT 1;")

	if err := d.RestoreIndex(ctx); err != nil {
		t.Fatalf("RestoreIndex failed: %v", err)
	}
	if depth := d.QueueDepth(ctx, "drops"); depth != 1 {
		t.Errorf("expected 1 re-indexed file, got %d", depth)
	}

	// Running again must not duplicate entries.
	if err := d.RestoreIndex(ctx); err != nil {
		t.Fatalf("RestoreIndex failed: %v", err)
	}
	if depth := d.QueueDepth(ctx, "drops"); depth != 1 {
		t.Errorf("expected no duplicates, got %d", depth)
	}

	entries, _ := store.List(ctx, "drops")
	if len(entries) != 1 || entries[0].QueuedAt.After(time.Now()) {
		t.Errorf("unexpected entries: %+v", entries)
	}
}
