// Package cli wires the jrnlyzer commands together.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openeps/jrnlyzer/internal/cli/commands"
)

// Execute runs the root command and returns the process exit code.
// 0 means no issues were found, 1 means the analysis surfaced issues,
// 2 means a configuration or runtime error.
func Execute() int {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	return commands.ExitCode
}

// NewRootCommand builds the jrnlyzer command tree.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jrnlyzer",
		Short: "Pinpad journal log analyzer",
		Long: `jrnlyzer parses point-of-sale pinpad journal logs, reconstructs
transactions and device state, and diagnoses known operational issues
such as dead pinpads, serial communication failures, and card read
degradation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "path to config file")
	cmd.PersistentFlags().String("db", "", "path to the analysis database (overrides config)")
	cmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (overrides config)")

	cmd.AddCommand(commands.NewAnalyzeCommand())
	cmd.AddCommand(commands.NewIngestCommand())
	cmd.AddCommand(commands.NewIdentityCommand())
	cmd.AddCommand(commands.NewStatusCommand())
	cmd.AddCommand(commands.NewWatchCommand())
	cmd.AddCommand(commands.NewVersionCommand())

	return cmd
}
