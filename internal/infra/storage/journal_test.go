package storage

import (
	"context"
	"testing"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/jmoiron/sqlx"
)

// newTestJournal opens an in-memory database with a journal schema matching
// the migrations.
func newTestJournal(t *testing.T) *Journal {
	t.Helper()

	db, err := sqlx.Connect("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	db.MustExec(`
		CREATE TABLE script_executions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			config_name TEXT NOT NULL,
			filename TEXT NOT NULL,
			processor_type TEXT NOT NULL,
			status TEXT NOT NULL,
			error_msg TEXT NOT NULL DEFAULT '',
			successful_statements INTEGER NOT NULL DEFAULT 0,
			failed_statement TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			executed_at TIMESTAMP NOT NULL
		)`)
	db.MustExec(`
		CREATE TABLE load_reports (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			config_name TEXT NOT NULL,
			filename TEXT NOT NULL,
			table_name TEXT NOT NULL DEFAULT '',
			rows_loaded INTEGER NOT NULL DEFAULT 0,
			rows_rejected INTEGER NOT NULL DEFAULT 0,
			rows_discarded INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			executed_at TIMESTAMP NOT NULL
		)`)

	return NewJournal(db)
}

func TestJournal_RecordScriptAndQuery(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i, rec := range []ScriptExecution{
		{ConfigName: "drops", Filename: "one.sql", ProcessorType: "sql-script",
			Status: "SUCCESS", SuccessfulStatements: 3, DurationMs: 12},
		{ConfigName: "drops", Filename: "two.sql", ProcessorType: "sql-script",
			Status: "FAILURE", ErrorMsg: "statement 2 failed", FailedStatement: "INSERT INTO missing VALUES (1)"},
	} {
		rec.ExecutedAt = base.Add(time.Duration(i) * time.Minute)
		if err := j.RecordScript(ctx, rec); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	rows, err := j.RecentExecutions(ctx, 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	// Newest first.
	if rows[0].Filename != "two.sql" {
		t.Errorf("expected two.sql first, got %q", rows[0].Filename)
	}
	if rows[0].Status != "FAILURE" || rows[0].ErrorMsg != "statement 2 failed" {
		t.Errorf("unexpected failure row: %+v", rows[0])
	}
	if rows[1].SuccessfulStatements != 3 {
		t.Errorf("expected 3 successful statements, got %d", rows[1].SuccessfulStatements)
	}
}

func TestJournal_RecentExecutionsLimit(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		err := j.RecordScript(ctx, ScriptExecution{
			ConfigName:    "drops",
			Filename:      "f.sql",
			ProcessorType: "sql-script",
			Status:        "SUCCESS",
			ExecutedAt:    base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	rows, err := j.RecentExecutions(ctx, 3)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("expected 3 rows, got %d", len(rows))
	}
}

func TestJournal_RecordLoad(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	err := j.RecordLoad(ctx, LoadReport{
		ConfigName:   "loads",
		Filename:     "employees.log",
		TableName:    "HR.EMPLOYEES",
		RowsLoaded:   1200,
		RowsRejected: 48,
		Status:       "FAILURE",
	})
	if err != nil {
		t.Fatalf("record load: %v", err)
	}

	var rec LoadReport
	if err := j.db.GetContext(ctx, &rec,
		"SELECT config_name, table_name, rows_loaded, rows_rejected, status FROM load_reports"); err != nil {
		t.Fatalf("query load report: %v", err)
	}
	if rec.TableName != "HR.EMPLOYEES" || rec.RowsLoaded != 1200 || rec.RowsRejected != 48 {
		t.Errorf("unexpected row: %+v", rec)
	}
}
