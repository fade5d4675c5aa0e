package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ScriptExecution is one journal row for an executed SQL script.
type ScriptExecution struct {
	ID                   int64     `db:"id"`
	ConfigName           string    `db:"config_name"`
	Filename             string    `db:"filename"`
	ProcessorType        string    `db:"processor_type"`
	Status               string    `db:"status"`
	ErrorMsg             string    `db:"error_msg"`
	SuccessfulStatements int       `db:"successful_statements"`
	FailedStatement      string    `db:"failed_statement"`
	DurationMs           int64     `db:"duration_ms"`
	ExecutedAt           time.Time `db:"executed_at"`
}

// LoadReport is one journal row for a parsed loader log.
type LoadReport struct {
	ID            int64     `db:"id"`
	ConfigName    string    `db:"config_name"`
	Filename      string    `db:"filename"`
	TableName     string    `db:"table_name"`
	RowsLoaded    int64     `db:"rows_loaded"`
	RowsRejected  int64     `db:"rows_rejected"`
	RowsDiscarded int64     `db:"rows_discarded"`
	Status        string    `db:"status"`
	ExecutedAt    time.Time `db:"executed_at"`
}

// Journal records processing outcomes for the operator surface. Journal
// writes are best effort; callers log and continue on error.
type Journal struct {
	db *sqlx.DB
}

// NewJournal creates a journal over the given database handle.
func NewJournal(db *sqlx.DB) *Journal {
	return &Journal{db: db}
}

// RecordScript inserts one script execution row.
func (j *Journal) RecordScript(ctx context.Context, rec ScriptExecution) error {
	query := j.db.Rebind(`
		INSERT INTO script_executions
			(config_name, filename, processor_type, status, error_msg,
			 successful_statements, failed_statement, duration_ms, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	executedAt := rec.ExecutedAt
	if executedAt.IsZero() {
		executedAt = time.Now()
	}
	_, err := j.db.ExecContext(ctx, query,
		rec.ConfigName, rec.Filename, rec.ProcessorType, rec.Status, rec.ErrorMsg,
		rec.SuccessfulStatements, rec.FailedStatement, rec.DurationMs, executedAt)
	if err != nil {
		return fmt.Errorf("failed to record script execution: %w", err)
	}
	return nil
}

// RecordLoad inserts one load report row.
func (j *Journal) RecordLoad(ctx context.Context, rec LoadReport) error {
	query := j.db.Rebind(`
		INSERT INTO load_reports
			(config_name, filename, table_name, rows_loaded, rows_rejected,
			 rows_discarded, status, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	executedAt := rec.ExecutedAt
	if executedAt.IsZero() {
		executedAt = time.Now()
	}
	_, err := j.db.ExecContext(ctx, query,
		rec.ConfigName, rec.Filename, rec.TableName, rec.RowsLoaded,
		rec.RowsRejected, rec.RowsDiscarded, rec.Status, executedAt)
	if err != nil {
		return fmt.Errorf("failed to record load report: %w", err)
	}
	return nil
}

// RecentExecutions returns the newest script execution rows, newest first.
func (j *Journal) RecentExecutions(ctx context.Context, limit int) ([]ScriptExecution, error) {
	if limit <= 0 {
		limit = 50
	}
	query := j.db.Rebind(`
		SELECT id, config_name, filename, processor_type, status, error_msg,
		       successful_statements, failed_statement, duration_ms, executed_at
		FROM script_executions
		ORDER BY executed_at DESC
		LIMIT ?
	`)

	var rows []ScriptExecution
	if err := j.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to query script executions: %w", err)
	}
	return rows, nil
}
