package loaderlog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spoolhouse/sqlspool/internal/core/config"
	"github.com/spoolhouse/sqlspool/internal/core/domain"
	"github.com/spoolhouse/sqlspool/internal/infra/storage"
)

// TypeName is the processor type string served by this package.
const TypeName = "loader-log"

// Processor parses loader logs and journals a load report per file.
type Processor struct {
	journal *storage.Journal
}

// New creates the loader log processor. journal may be nil.
func New(journal *storage.Journal) *Processor {
	return &Processor{journal: journal}
}

func (p *Processor) Type() string     { return TypeName }
func (p *Processor) Resource() string { return domain.ResourceDatabase }

// Supports reports whether this processor serves the configuration.
func (p *Processor) Supports(cfg config.WatchConfig) bool {
	return cfg.ProcessorType == TypeName
}

// Process parses one loader log. Rejected rows or ORA- errors in the log
// make the result a FAILURE; files that are not loader logs are skipped.
func (p *Processor) Process(ctx context.Context, path string, cfg config.WatchConfig) domain.ProcessingResult {
	filename := filepath.Base(path)

	content, err := os.ReadFile(path)
	if err != nil {
		return domain.Failure(filename, TypeName, fmt.Sprintf("failed to read log: %v", err))
	}

	report := Parse(string(content))
	if !report.IsLoaderLog {
		return domain.Skipped(filename, TypeName, "not a loader log file")
	}

	result := domain.ProcessingResult{
		Filename:      filename,
		ProcessorType: TypeName,
		Status:        domain.StatusSuccess,
		Metadata: map[string]string{
			"table":          report.TableName,
			"rows_loaded":    strconv.FormatInt(report.RowsLoaded, 10),
			"rows_rejected":  strconv.FormatInt(report.RowsRejected, 10),
			"rows_discarded": strconv.FormatInt(report.RowsDiscarded, 10),
		},
	}

	switch {
	case len(report.ORAErrors) > 0:
		result.Status = domain.StatusFailure
		result.ErrorMessage = fmt.Sprintf("load reported %d error(s): %s",
			len(report.ORAErrors), strings.Join(report.ORAErrors, "; "))
	case report.RowsRejected > 0:
		result.Status = domain.StatusFailure
		result.ErrorMessage = fmt.Sprintf("%d row(s) rejected during load into %s",
			report.RowsRejected, report.TableName)
	}

	p.journalReport(ctx, cfg, filename, report, result.Status)
	return result
}

func (p *Processor) journalReport(
	ctx context.Context,
	cfg config.WatchConfig,
	filename string,
	report Report,
	status domain.ProcessingStatus,
) {
	if p.journal == nil {
		return
	}
	err := p.journal.RecordLoad(ctx, storage.LoadReport{
		ConfigName:    cfg.Name,
		Filename:      filename,
		TableName:     report.TableName,
		RowsLoaded:    report.RowsLoaded,
		RowsRejected:  report.RowsRejected,
		RowsDiscarded: report.RowsDiscarded,
		Status:        string(status),
	})
	if err != nil {
		slog.Warn("Failed to journal load report", "file", filename, "error", err)
	}
}
