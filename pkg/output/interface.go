package output

import (
	"context"
	"io"
)

// Formatter renders analysis reports in a specific format.
type Formatter interface {
	// Format renders the report to the given writer.
	Format(ctx context.Context, report *Report, w io.Writer) error

	// Name returns the format name (text, json, yaml).
	Name() string
}

// FormatOptions controls formatter behavior.
type FormatOptions struct {
	// Verbose enables detailed output including resolution steps.
	Verbose bool

	// Quiet enables minimal summary-only output.
	Quiet bool

	// NoColor disables terminal styling in text output.
	NoColor bool
}

// New returns the formatter for a format name, or nil for an unknown name.
func New(name string, opts FormatOptions) Formatter {
	switch name {
	case "text", "":
		return NewTextFormatter(opts)
	case "json":
		return NewJSONFormatter(opts)
	case "yaml":
		return NewYAMLFormatter(opts)
	default:
		return nil
	}
}
