package dbexec

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/spoolhouse/sqlspool/internal/core/domain"
	"github.com/spoolhouse/sqlspool/internal/resilience"
	"github.com/spoolhouse/sqlspool/internal/spooling/metrics"
)

// Executor runs SQL scripts against the database under circuit-breaker and
// retry protection.
//
// Transaction policy by script class:
//   - DDL-only: statements run one at a time outside any transaction; the
//     first failure stops the script and prior effects remain applied.
//   - DML-only: all statements run in a single transaction; any failure
//     rolls the whole script back.
//   - Mixed: DDL statements run individually, each DML statement runs in
//     its own transaction, and the first failure of any kind stops the
//     script without touching earlier effects.
type Executor struct {
	db          *sqlx.DB
	breaker     *resilience.CircuitBreaker
	retry       *resilience.RetryService
	handler     *resilience.ErrorHandler
	degradation *resilience.Degradation
	sink        metrics.Sink
}

// NewExecutor creates an executor over db.
func NewExecutor(
	db *sqlx.DB,
	breaker *resilience.CircuitBreaker,
	retry *resilience.RetryService,
	handler *resilience.ErrorHandler,
	degradation *resilience.Degradation,
	sink metrics.Sink,
) *Executor {
	if sink == nil {
		sink = metrics.NewNop()
	}
	return &Executor{
		db:          db,
		breaker:     breaker,
		retry:       retry,
		handler:     handler,
		degradation: degradation,
		sink:        sink,
	}
}

// ExecuteScript classifies and executes the statements of one script.
// Statement-level failures produce a failed result; infrastructure errors
// additionally count against the "database" circuit breaker and may put
// the resource into degraded mode.
func (e *Executor) ExecuteScript(ctx context.Context, filename string, stmts []string) domain.SQLExecutionResult {
	start := time.Now()

	if len(stmts) == 0 {
		return domain.SQLExecutionResult{
			Filename: filename,
			Success:  true,
			Kind:     domain.ScriptEmpty,
		}
	}

	var result domain.SQLExecutionResult
	ran := false

	opErr := e.breaker.Execute(domain.ResourceDatabase,
		func() error {
			ran = true
			r, infraErr := e.run(ctx, filename, stmts)
			result = r
			return infraErr
		},
		func() error {
			result = domain.SQLExecutionResult{
				Filename:     filename,
				Success:      false,
				ErrorMessage: "circuit breaker open",
				Kind:         ClassifyScript(stmts),
			}
			return nil
		},
	)

	if opErr != nil {
		report := e.handler.Handle("database-executor", opErr, "execute "+filename)
		if report.Category == domain.CategoryDatabase {
			e.degradation.Enter(domain.ResourceDatabase, opErr.Error())
		}
		if result.ErrorMessage == "" {
			result = domain.SQLExecutionResult{
				Filename:     filename,
				Success:      false,
				ErrorMessage: opErr.Error(),
				Kind:         ClassifyScript(stmts),
			}
		}
	} else if ran {
		// The run completed without an infrastructure error, so the
		// database is reachable even if a statement failed.
		e.degradation.Exit(domain.ResourceDatabase)
	}

	elapsed := time.Since(start)
	result.ExecutionTimeMs = elapsed.Milliseconds()
	e.sink.RecordSQLExecutionTime(elapsed)
	return result
}

// run executes the script with the policy for its class. The returned
// error is non-nil only for infrastructure (connectivity) failures;
// ordinary statement failures are reported through the result.
func (e *Executor) run(ctx context.Context, filename string, stmts []string) (domain.SQLExecutionResult, error) {
	kind := ClassifyScript(stmts)
	result := domain.SQLExecutionResult{Filename: filename, Kind: kind}

	switch kind {
	case domain.ScriptDMLOnly:
		return e.runTransactional(ctx, result, stmts)
	case domain.ScriptMixed:
		return e.runMixed(ctx, result, stmts)
	default:
		return e.runSequential(ctx, result, stmts)
	}
}

// runSequential executes statements one at a time outside any transaction.
// Used for DDL-only scripts: effects of completed statements stay applied.
func (e *Executor) runSequential(ctx context.Context, result domain.SQLExecutionResult, stmts []string) (domain.SQLExecutionResult, error) {
	for i, stmt := range stmts {
		if err := e.execStatement(ctx, e.db, stmt); err != nil {
			if isConnectivityError(err) {
				return result, err
			}
			return statementFailure(result, i, stmt, i, err), nil
		}
		result.SuccessfulStatements++
	}
	result.Success = true
	return result, nil
}

// runTransactional executes all statements in one transaction, rolling the
// whole script back on any failure. SuccessfulStatements reports committed
// statements, so it is zero after a rollback.
func (e *Executor) runTransactional(ctx context.Context, result domain.SQLExecutionResult, stmts []string) (domain.SQLExecutionResult, error) {
	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}

	for i, stmt := range stmts {
		if err := e.execStatement(ctx, tx, stmt); err != nil {
			_ = tx.Rollback()
			if isConnectivityError(err) {
				return result, err
			}
			failed := statementFailure(result, i, stmt, 0, err)
			failed.ErrorMessage = fmt.Sprintf(
				"statement %d of %d failed, transaction rolled back (%d attempted): %v",
				i+1, len(stmts), i, err)
			return failed, nil
		}
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("failed to commit transaction: %w", err)
	}
	result.SuccessfulStatements = len(stmts)
	result.Success = true
	return result, nil
}

// runMixed iterates statements in file order: DDL individually, each DML in
// its own transaction. A DML failure rolls back only that statement.
func (e *Executor) runMixed(ctx context.Context, result domain.SQLExecutionResult, stmts []string) (domain.SQLExecutionResult, error) {
	for i, stmt := range stmts {
		if ClassifyStatement(stmt) == KindDML {
			tx, err := e.db.BeginTxx(ctx, nil)
			if err != nil {
				return result, fmt.Errorf("failed to begin transaction: %w", err)
			}
			if err := e.execStatement(ctx, tx, stmt); err != nil {
				_ = tx.Rollback()
				if isConnectivityError(err) {
					return result, err
				}
				return statementFailure(result, i, stmt, i, err), nil
			}
			if err := tx.Commit(); err != nil {
				return result, fmt.Errorf("failed to commit transaction: %w", err)
			}
		} else {
			if err := e.execStatement(ctx, e.db, stmt); err != nil {
				if isConnectivityError(err) {
					return result, err
				}
				return statementFailure(result, i, stmt, i, err), nil
			}
		}
		result.SuccessfulStatements++
	}
	result.Success = true
	return result, nil
}

// execStatement runs one statement through the retry executor.
func (e *Executor) execStatement(ctx context.Context, execer sqlx.ExecerContext, stmt string) error {
	kind := string(ClassifyStatement(stmt))
	err := e.retry.Execute(ctx, "sql-statement", func() error {
		_, execErr := execer.ExecContext(ctx, stmt)
		return execErr
	})
	e.sink.RecordStatement(kind, err == nil)
	if err != nil {
		slog.Debug("Statement execution failed", "kind", kind, "error", err)
	}
	return err
}

// statementFailure fills a failed result for the statement at index i
// (0-based). durable is the number of statements whose effects persist.
func statementFailure(result domain.SQLExecutionResult, i int, stmt string, durable int, err error) domain.SQLExecutionResult {
	result.Success = false
	result.SuccessfulStatements = durable
	result.FailedIndex = i + 1
	result.FailedStatement = stmt
	result.ErrorMessage = fmt.Sprintf("statement %d failed: %v", i+1, err)
	return result
}

// isConnectivityError reports whether err implicates the connection rather
// than the statement. Connectivity errors abort the script and count
// against the circuit breaker.
func isConnectivityError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	s := strings.ToLower(err.Error())
	return strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset") ||
		strings.Contains(s, "broken pipe") ||
		strings.Contains(s, "i/o timeout") ||
		strings.Contains(s, "bad connection") ||
		strings.Contains(s, "database is closed") ||
		strings.Contains(s, "dial tcp")
}
