package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openeps/jrnlyzer/internal/agent"
	"github.com/openeps/jrnlyzer/internal/storage"
)

// NewWatchCommand builds the watch command.
func NewWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [directory]",
		Short: "Watch a directory and ingest journal files as they arrive",
		Long: `Watch monitors a drop directory for journal files. A file is ingested
once it matches the configured name pattern and has stopped growing.
Files already present in the database are skipped. Runs until
interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runWatch,
	}
	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	dir := cfg.Watch.Dir
	if len(args) == 1 {
		dir = args[0]
	}
	if dir == "" {
		return fmt.Errorf("no watch directory: pass one as an argument or set watch.dir in the config")
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("watch directory %q is not a directory", dir)
	}

	store, err := storage.Open(cfg.DatabasePath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	var opts []agent.Option
	if cfg.Watch.Pattern != "" {
		opts = append(opts, agent.WithPattern(cfg.Watch.Pattern))
	}
	if cfg.Watch.Settle > 0 {
		opts = append(opts, agent.WithSettle(cfg.Watch.Settle))
	}
	a := agent.New(dir, store, logger, opts...)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("watching for journal files",
		zap.String("dir", dir),
		zap.String("pattern", cfg.Watch.Pattern))

	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
