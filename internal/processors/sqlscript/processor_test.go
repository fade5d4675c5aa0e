package sqlscript

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/jmoiron/sqlx"

	"github.com/spoolhouse/sqlspool/internal/core/config"
	"github.com/spoolhouse/sqlspool/internal/core/domain"
	"github.com/spoolhouse/sqlspool/internal/dbexec"
	"github.com/spoolhouse/sqlspool/internal/infra/files"
	"github.com/spoolhouse/sqlspool/internal/infra/queuestore"
	"github.com/spoolhouse/sqlspool/internal/resilience"
)

func newTestProcessor(t *testing.T) (*Processor, *sqlx.DB) {
	t.Helper()

	db, err := sqlx.Connect("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	breaker := resilience.NewCircuitBreaker(resilience.BreakerConfig{}, nil)
	retry := resilience.NewRetryService(resilience.RetryConfig{
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     2 * time.Millisecond,
	}, nil)
	handler := resilience.NewErrorHandler(0, nil)
	degradation := resilience.NewDegradation(
		queuestore.NewMemoryStore(), files.NewMover(t.TempDir()), breaker, nil, t.TempDir())
	executor := dbexec.NewExecutor(db, breaker, retry, handler, degradation, nil)

	return New(executor, nil), db
}

func writeScript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.sql")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestProcess_Success(t *testing.T) {
	p, db := newTestProcessor(t)
	path := writeScript(t, "CREATE TABLE t (id INTEGER);\nINSERT INTO t VALUES (1);")

	result := p.Process(context.Background(), path, config.WatchConfig{Name: "drops", ProcessorType: TypeName})
	if result.Status != domain.StatusSuccess {
		t.Fatalf("expected SUCCESS, got %v (%s)", result.Status, result.ErrorMessage)
	}
	if result.Metadata["statements"] != "2" {
		t.Errorf("statements = %q, want 2", result.Metadata["statements"])
	}
	if result.Metadata["script_kind"] != string(domain.ScriptMixed) {
		t.Errorf("script_kind = %q, want mixed", result.Metadata["script_kind"])
	}

	var n int
	if err := db.Get(&n, "SELECT COUNT(*) FROM t"); err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 row, got %d", n)
	}
}

func TestProcess_FailureCarriesStatementDetail(t *testing.T) {
	p, _ := newTestProcessor(t)
	path := writeScript(t, "INSERT INTO missing VALUES (1);")

	result := p.Process(context.Background(), path, config.WatchConfig{Name: "drops", ProcessorType: TypeName})
	if result.Status != domain.StatusFailure {
		t.Fatalf("expected FAILURE, got %v", result.Status)
	}
	if result.ErrorMessage == "" {
		t.Error("expected an error message")
	}
	if result.Metadata["failed_index"] != "1" {
		t.Errorf("failed_index = %q, want 1", result.Metadata["failed_index"])
	}
	if result.Metadata["failed_statement"] == "" {
		t.Error("expected the failed statement recorded")
	}
}

func TestProcess_CommentOnlyScriptSkipped(t *testing.T) {
	p, _ := newTestProcessor(t)
	path := writeScript(t, "-- placeholder\n/* nothing yet */\n")

	result := p.Process(context.Background(), path, config.WatchConfig{Name: "drops", ProcessorType: TypeName})
	if result.Status != domain.StatusSkipped {
		t.Fatalf("expected SKIPPED, got %v", result.Status)
	}
}

func TestProcess_UnreadableFileFails(t *testing.T) {
	p, _ := newTestProcessor(t)

	result := p.Process(context.Background(), filepath.Join(t.TempDir(), "missing.sql"),
		config.WatchConfig{Name: "drops", ProcessorType: TypeName})
	if result.Status != domain.StatusFailure {
		t.Fatalf("expected FAILURE, got %v", result.Status)
	}
}

func TestSupports(t *testing.T) {
	p, _ := newTestProcessor(t)
	if !p.Supports(config.WatchConfig{ProcessorType: TypeName}) {
		t.Error("expected sql-script configurations supported")
	}
	if p.Supports(config.WatchConfig{ProcessorType: "loader-log"}) {
		t.Error("expected other processor types rejected")
	}
}
