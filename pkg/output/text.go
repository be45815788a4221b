package output

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/openeps/jrnlyzer/pkg/diagnose"
)

// Severity styling for terminal output.
var severityStyles = map[string]lipgloss.Style{
	"critical": lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	"high":     lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
	"medium":   lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	"low":      lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
}

var headerStyle = lipgloss.NewStyle().Bold(true)

// TextFormatter formats reports as human-readable text.
type TextFormatter struct {
	opts FormatOptions
}

// NewTextFormatter creates a text formatter with the given options.
func NewTextFormatter(opts FormatOptions) *TextFormatter {
	return &TextFormatter{opts: opts}
}

// Name returns the format name.
func (f *TextFormatter) Name() string {
	return "text"
}

// Format renders the report as text.
func (f *TextFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	if f.opts.Quiet {
		return f.formatQuiet(report, w)
	}
	return f.formatFull(report, w)
}

func (f *TextFormatter) formatQuiet(report *Report, w io.Writer) error {
	fmt.Fprintf(w, "%s: %d transactions, %d issues\n",
		report.File.FileName,
		report.Summary.Transactions,
		report.Summary.TotalIssues)
	return nil
}

func (f *TextFormatter) formatFull(report *Report, w io.Writer) error {
	fmt.Fprintln(w, f.styled(headerStyle, fmt.Sprintf("=== Journal Analysis: %s ===", report.File.FileName)))
	fmt.Fprintf(w, "Lane %s, %s, %d lines\n", report.File.Lane, report.File.LogDate, report.File.LineCount)
	fmt.Fprintln(w)

	if id := report.Identity; id != nil {
		fmt.Fprintln(w, f.styled(headerStyle, "Site"))
		if id.CompanyID != "" || id.StoreID != "" {
			fmt.Fprintf(w, "  Company %s / Store %s\n", orDash(id.CompanyID), orDash(id.StoreID))
		}
		if id.MTXPOSVersion != "" {
			fmt.Fprintf(w, "  MTX_POS %s\n", id.MTXPOSVersion)
		}
		if id.PinpadModel != "" {
			fmt.Fprintf(w, "  Pinpad %s", id.PinpadModel)
			if id.PinpadSerial != "" {
				fmt.Fprintf(w, " (serial %s)", id.PinpadSerial)
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w)
	}

	s := report.Summary
	fmt.Fprintln(w, f.styled(headerStyle, "Activity"))
	fmt.Fprintf(w, "  Transactions: %d (%d approved, %d declined)\n", s.Transactions, s.Approved, s.Declined)
	fmt.Fprintf(w, "  Health checks: %d, error cascades: %d, dead periods: %d\n",
		s.HealthChecks, s.Cascades, s.DeadPeriods)
	fmt.Fprintln(w)

	if len(report.Issues) == 0 {
		fmt.Fprintln(w, "No issues detected")
		return nil
	}

	fmt.Fprintln(w, f.styled(headerStyle, fmt.Sprintf("Issues (%d)", len(report.Issues))))
	for i := range report.Issues {
		f.formatIssue(&report.Issues[i], w)
	}
	return nil
}

func (f *TextFormatter) formatIssue(issue *diagnose.Issue, w io.Writer) {
	label := fmt.Sprintf("[%s]", strings.ToUpper(issue.Severity))
	if style, ok := severityStyles[issue.Severity]; ok {
		label = f.styled(style, label)
	}
	fmt.Fprintf(w, "%s %s (confidence %.0f%%)\n", label, issue.Type, issue.Confidence*100)
	fmt.Fprintf(w, "  %s\n", issue.Description)
	if issue.TimeRange != "" {
		fmt.Fprintf(w, "  When: %s\n", issue.TimeRange)
	}
	fmt.Fprintf(w, "  Evidence: %s\n", issue.Evidence)
	if f.opts.Verbose {
		for _, step := range issue.ResolutionSteps {
			fmt.Fprintf(w, "    %s\n", step)
		}
	}
	fmt.Fprintln(w)
}

func (f *TextFormatter) styled(style lipgloss.Style, s string) string {
	if f.opts.NoColor {
		return s
	}
	return style.Render(s)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
