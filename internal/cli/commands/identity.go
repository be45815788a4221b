package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/openeps/jrnlyzer/pkg/identity"
)

// IdentityOptions holds the identity command flags.
type IdentityOptions struct {
	Output string
}

// NewIdentityCommand builds the identity command.
func NewIdentityCommand() *cobra.Command {
	opts := &IdentityOptions{}

	cmd := &cobra.Command{
		Use:   "identity <journal-file>",
		Short: "Extract site and pinpad identity from a journal file",
		Long: `Identity scans the head of a journal file for site IDs, software
versions, pinpad hardware details, and configuration settings, without
running the full analysis pipeline.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIdentity(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "output format: text, json, yaml")

	return cmd
}

func runIdentity(cmd *cobra.Command, path string, opts *IdentityOptions) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	id, err := identity.NewExtractor(cfg.Analysis.MaxScanLines).FromFile(path)
	if err != nil {
		return fmt.Errorf("extracting identity from %s: %w", path, err)
	}

	w := cmd.OutOrStdout()
	switch opts.Output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(id)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(id)
	case "text", "":
		printIdentity(w, path, id)
		return nil
	default:
		return fmt.Errorf("unknown output format %q", opts.Output)
	}
}

func printIdentity(w io.Writer, path string, id *identity.Identity) {
	fmt.Fprintf(w, "File: %s\n\n", path)

	rows := []struct{ label, value string }{
		{"Company ID", id.CompanyID},
		{"Store ID", id.StoreID},
		{"Merchant ID", id.MID},
		{"MTX POS version", id.MTXPOSVersion},
		{"MTX EPS version", id.MTXEPSVersion},
		{"SecCode version", id.SecCodeVersion},
		{"POS version", id.POSVersion},
		{"Pinpad model", id.PinpadModel},
		{"Pinpad serial", id.PinpadSerial},
		{"Pinpad firmware", id.PinpadFirmware},
		{"Pinpad OS", id.PinpadOS},
		{"Pinpad kernel", id.PinpadKernel},
		{"IP address", id.IPAddress},
		{"ServerEPS hosts", strings.Join(id.ServerEPSHosts, ", ")},
		{"SHA-256", id.SHA256Hash},
	}
	for _, row := range rows {
		fmt.Fprintf(w, "%-18s %s\n", row.label+":", orNone(row.value))
	}

	if len(id.Config) > 0 {
		fmt.Fprintf(w, "\nConfiguration (%d settings):\n", len(id.Config))
		keys := make([]string, 0, len(id.Config))
		for k := range id.Config {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %s = %s\n", k, id.Config[k])
		}
	}
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
