package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/openeps/jrnlyzer/pkg/output"
	"github.com/openeps/jrnlyzer/pkg/pipeline"
)

// AnalyzeOptions holds the analyze command flags.
type AnalyzeOptions struct {
	Output  string
	From    string
	To      string
	Verbose bool
	Quiet   bool
	NoColor bool
}

// NewAnalyzeCommand builds the analyze command.
func NewAnalyzeCommand() *cobra.Command {
	opts := &AnalyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze <journal-file>...",
		Short: "Analyze journal files and report diagnosed issues",
		Long: `Analyze parses one or more pinpad journal files, reconstructs
transactions and device state, and reports diagnosed issues.

Exit codes:
  0 - No issues detected
  1 - Issues detected
  2 - Configuration or runtime error`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "output format: text, json, yaml")
	cmd.Flags().StringVar(&opts.From, "from", "", "only report issues at or after this time")
	cmd.Flags().StringVar(&opts.To, "to", "", "only report issues at or before this time")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "include resolution steps in the report")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "print a one-line summary per file")
	cmd.Flags().BoolVar(&opts.NoColor, "no-color", false, "disable colored output")

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string, opts *AnalyzeOptions) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	win, err := parseWindow(opts.From, opts.To)
	if err != nil {
		return err
	}

	formatter := output.New(opts.Output, output.FormatOptions{
		Verbose: opts.Verbose,
		Quiet:   opts.Quiet,
		NoColor: opts.NoColor,
	})
	if formatter == nil {
		return fmt.Errorf("unknown output format %q", opts.Output)
	}

	for _, path := range args {
		started := time.Now()
		result, err := pipeline.Run(cmd.Context(), path,
			pipeline.WithLookback(cfg.Analysis.Lookback),
			pipeline.WithMaxScanLines(cfg.Analysis.MaxScanLines),
			pipeline.WithCascadeMaxGap(cfg.Analysis.CascadeMaxGap),
			pipeline.WithLogger(logger),
		)
		if err != nil {
			return fmt.Errorf("analyzing %s: %w", path, err)
		}

		issues := pipeline.Diagnose(result, win)
		report := output.NewReport(result, issues, win, started)

		if err := formatter.Format(cmd.Context(), report, cmd.OutOrStdout()); err != nil {
			return fmt.Errorf("formatting report: %w", err)
		}
		if report.HasIssues() {
			ExitCode = 1
		}
	}
	return nil
}
