package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/spoolhouse/sqlspool/internal/core/config"
	"github.com/spoolhouse/sqlspool/internal/infra/files"
)

var requeueCmd = &cobra.Command{
	Use:   "requeue <config-name>",
	Short: "Move queued files back into a configuration's watch folder",
	Long:  `Replays files diverted to the degradation queue for one watch configuration without the daemon running. The files are moved back into the watch folder so the next service run picks them up.`,
	Args:  cobra.ExactArgs(1),
	Run:   runRequeue,
}

func init() {
	rootCmd.AddCommand(requeueCmd)
}

func runRequeue(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	name := args[0]
	var watch *config.WatchConfig
	for i := range cfg.Watches {
		if cfg.Watches[i].Name == name {
			watch = &cfg.Watches[i]
			break
		}
	}
	if watch == nil {
		slog.Error("Unknown watch configuration", "config", name)
		os.Exit(1)
	}

	queueDir := filepath.Join(cfg.Spool.QueueFolder, name)
	entries, err := os.ReadDir(queueDir)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("No queued files.")
			return
		}
		slog.Error("Failed to read queue folder", "dir", queueDir, "error", err)
		os.Exit(1)
	}

	mover := files.NewMover(cfg.Spool.QueueFolder)
	restored := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		queuedPath := filepath.Join(queueDir, entry.Name())
		if _, err := mover.MoveFromQueue(queuedPath, watch.WatchFolder); err != nil {
			slog.Error("Failed to restore file", "file", queuedPath, "error", err)
			continue
		}
		restored++
	}

	fmt.Printf("Restored %d file(s) to %s\n", restored, watch.WatchFolder)
}
