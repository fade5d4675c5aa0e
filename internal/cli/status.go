package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/spoolhouse/sqlspool/internal/core/config"
	"github.com/spoolhouse/sqlspool/internal/infra/storage"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent script executions from the journal",
	Run:   runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 20, "number of journal rows to show")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Database.URL == "" {
		slog.Error("No database configured, journal unavailable")
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := storage.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	journal := storage.NewJournal(db.DB)
	rows, err := journal.RecentExecutions(ctx, statusLimit)
	if err != nil {
		slog.Error("Failed to query journal", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "CONFIG\tFILE\tSTATUS\tSTATEMENTS\tDURATION\tEXECUTED")

	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%dms\t%s\n",
			row.ConfigName, row.Filename, row.Status,
			row.SuccessfulStatements, row.DurationMs,
			row.ExecutedAt.Format("2006-01-02 15:04:05"))
	}
	_ = w.Flush()
}
