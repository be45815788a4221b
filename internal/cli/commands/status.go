package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openeps/jrnlyzer/internal/storage"
)

// NewStatusCommand builds the status command.
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List ingested journal files and their event counts",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := storage.Open(cfg.DatabasePath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	files, err := store.ListFiles(ctx)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if len(files) == 0 {
		fmt.Fprintln(w, "No files ingested.")
		return nil
	}

	fmt.Fprintf(w, "%-18s %-24s %-6s %-12s %-8s %8s %6s %6s %6s\n",
		"FILE ID", "NAME", "LANE", "DATE", "STORE", "LINES", "TXNS", "HEALTH", "CASC")
	for _, f := range files {
		counts, err := store.CountEventsByType(ctx, f.FileID)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%-18s %-24s %-6s %-12s %-8s %8d %6d %6d %6d\n",
			f.FileID, f.FileName, f.Lane, f.LogDate, orNone(f.StoreID), f.LineCount,
			counts[storage.EventTransaction],
			counts[storage.EventHealthCheck],
			counts[storage.EventCascade])
	}
	fmt.Fprintf(w, "\n%d file(s) in %s\n", len(files), cfg.DatabasePath)
	return nil
}
