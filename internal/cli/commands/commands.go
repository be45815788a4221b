// Package commands implements the jrnlyzer subcommands.
package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/openeps/jrnlyzer/pkg/config"
	"github.com/openeps/jrnlyzer/pkg/diagnose"
)

// ExitCode is set by commands to distinguish "issues found" (1) from a
// clean run (0). Runtime errors surface as command errors and exit 2.
var ExitCode = 0

// timeFormats are accepted by the --from and --to flags, tried in order.
var timeFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// loadConfig builds the effective configuration for a command, applying
// the persistent --config, --db, and --log-level overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.DatabasePath = db
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	return cfg, nil
}

// newLogger builds the zap logger described by cfg. User-facing command
// output goes to stdout; the logger writes to stderr only.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	var zc zap.Config
	if cfg.LogFormat == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

// parseWindow converts the --from/--to flag values into an analysis
// window. Empty values leave the corresponding bound open.
func parseWindow(from, to string) (diagnose.Window, error) {
	var win diagnose.Window
	var err error
	if from != "" {
		if win.Start, err = parseTime(from); err != nil {
			return win, fmt.Errorf("invalid --from value: %w", err)
		}
	}
	if to != "" {
		if win.End, err = parseTime(to); err != nil {
			return win, fmt.Errorf("invalid --to value: %w", err)
		}
	}
	if !win.Start.IsZero() && !win.End.IsZero() && win.End.Before(win.Start) {
		return win, fmt.Errorf("--to is before --from")
	}
	return win, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
