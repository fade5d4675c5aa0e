package sqlscript

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spoolhouse/sqlspool/internal/core/config"
	"github.com/spoolhouse/sqlspool/internal/core/domain"
	"github.com/spoolhouse/sqlspool/internal/dbexec"
	"github.com/spoolhouse/sqlspool/internal/infra/storage"
)

// TypeName is the processor type string served by this package.
const TypeName = "sql-script"

// Processor executes dropped SQL script files through the database
// executor and journals the outcome.
type Processor struct {
	executor *dbexec.Executor
	journal  *storage.Journal
}

// New creates the SQL script processor. journal may be nil.
func New(executor *dbexec.Executor, journal *storage.Journal) *Processor {
	return &Processor{executor: executor, journal: journal}
}

func (p *Processor) Type() string     { return TypeName }
func (p *Processor) Resource() string { return domain.ResourceDatabase }

// Supports reports whether this processor serves the configuration.
func (p *Processor) Supports(cfg config.WatchConfig) bool {
	return cfg.ProcessorType == TypeName
}

// Process reads the script, splits it into statements, and executes it.
func (p *Processor) Process(ctx context.Context, path string, cfg config.WatchConfig) domain.ProcessingResult {
	filename := filepath.Base(path)

	content, err := os.ReadFile(path)
	if err != nil {
		return domain.Failure(filename, TypeName, fmt.Sprintf("failed to read script: %v", err))
	}

	stmts := Split(string(content))
	if len(stmts) == 0 {
		return domain.Skipped(filename, TypeName, "no executable statements")
	}

	execResult := p.executor.ExecuteScript(ctx, filename, stmts)
	p.journalResult(ctx, cfg, execResult)

	result := domain.ProcessingResult{
		Filename:      filename,
		ProcessorType: TypeName,
		Metadata: map[string]string{
			"statements":            strconv.Itoa(len(stmts)),
			"successful_statements": strconv.Itoa(execResult.SuccessfulStatements),
			"script_kind":           string(execResult.Kind),
		},
	}
	if execResult.Success {
		result.Status = domain.StatusSuccess
	} else {
		result.Status = domain.StatusFailure
		result.ErrorMessage = execResult.ErrorMessage
		if execResult.FailedStatement != "" {
			result.Metadata["failed_statement"] = execResult.FailedStatement
			result.Metadata["failed_index"] = strconv.Itoa(execResult.FailedIndex)
		}
	}
	return result
}

// journalResult records the execution best effort; journal errors never
// fail processing.
func (p *Processor) journalResult(ctx context.Context, cfg config.WatchConfig, res domain.SQLExecutionResult) {
	if p.journal == nil {
		return
	}
	status := "SUCCESS"
	if !res.Success {
		status = "FAILURE"
	}
	err := p.journal.RecordScript(ctx, storage.ScriptExecution{
		ConfigName:           cfg.Name,
		Filename:             res.Filename,
		ProcessorType:        TypeName,
		Status:               status,
		ErrorMsg:             res.ErrorMessage,
		SuccessfulStatements: res.SuccessfulStatements,
		FailedStatement:      res.FailedStatement,
		DurationMs:           res.ExecutionTimeMs,
	})
	if err != nil {
		slog.Warn("Failed to journal script execution", "file", res.Filename, "error", err)
	}
}
