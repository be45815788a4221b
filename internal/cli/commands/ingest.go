package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openeps/jrnlyzer/internal/storage"
	"github.com/openeps/jrnlyzer/pkg/pipeline"
)

// IngestOptions holds the ingest command flags.
type IngestOptions struct {
	Force bool
}

// NewIngestCommand builds the ingest command.
func NewIngestCommand() *cobra.Command {
	opts := &IngestOptions{}

	cmd := &cobra.Command{
		Use:   "ingest <journal-file>...",
		Short: "Analyze journal files and persist results to the database",
		Long: `Ingest parses each journal file through the full analysis pipeline and
stores the file record, entries, transactions, health checks, error
cascades, and liveness timeline in the SQLite database. Files already
present in the database are skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "re-ingest files already in the database")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string, opts *IngestOptions) error {
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
	for _, path := range args {
		result, err := pipeline.Run(ctx, path,
			pipeline.WithLookback(cfg.Analysis.Lookback),
			pipeline.WithMaxScanLines(cfg.Analysis.MaxScanLines),
			pipeline.WithCascadeMaxGap(cfg.Analysis.CascadeMaxGap),
			pipeline.WithLogger(logger),
		)
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", path, err)
		}

		fileID := storage.FileID(result.Metadata)
		exists, err := store.Exists(ctx, fileID)
		if err != nil {
			return err
		}
		if exists {
			if !opts.Force {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: already ingested (file_id %s), skipping\n",
					result.Metadata.FileName, fileID)
				continue
			}
			if err := store.DeleteFile(ctx, fileID); err != nil {
				return fmt.Errorf("re-ingesting %s: %w", path, err)
			}
		}

		id, err := store.SaveResult(ctx, result)
		if err != nil {
			return fmt.Errorf("saving %s: %w", path, err)
		}
		logger.Info("file ingested",
			zap.String("file", result.Metadata.FileName),
			zap.String("file_id", id))
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ingested %d entries, %d transactions (file_id %s)\n",
			result.Metadata.FileName, len(result.Entries), len(result.Transactions), id)
	}
	return nil
}
