package output

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openeps/jrnlyzer/pkg/diagnose"
	"github.com/openeps/jrnlyzer/pkg/journal"
	"github.com/openeps/jrnlyzer/pkg/pipeline"
	"github.com/openeps/jrnlyzer/pkg/segment"
)

func sampleReport() *Report {
	result := &pipeline.Result{
		Metadata: journal.FileMetadata{
			FileName:  "jrnl0002-20251130.txt",
			Lane:      "0002",
			LogDate:   "20251130",
			LineCount: 100,
		},
		Transactions: []*segment.Transaction{
			{ResponseCode: "AA"},
			{ResponseCode: "DD"},
			{ResponseCode: ""},
		},
	}
	issues := []diagnose.Issue{
		{Type: "repeated_decline", Severity: "low", SeverityRank: 4, Confidence: 0.7},
		{Type: "scat_dead", Severity: "critical", SeverityRank: 1, Confidence: 0.9,
			Evidence: "Pinpad dead for 4.5 minutes", TimeRange: "2025-11-30 08:10:30 - 2025-11-30 08:15:00",
			ResolutionSteps: []string{"1. Power cycle the pinpad"}},
		{Type: "serial_comm_failure", Severity: "critical", SeverityRank: 1, Confidence: 0.95},
	}
	return NewReport(result, issues, diagnose.Window{}, time.Now())
}

func TestNewReport_SummaryAndOrdering(t *testing.T) {
	report := sampleReport()

	if report.Summary.Transactions != 3 || report.Summary.Approved != 1 || report.Summary.Declined != 1 {
		t.Errorf("summary = %+v", report.Summary)
	}
	if !report.HasIssues() || !report.HasCritical() {
		t.Error("issue predicates wrong")
	}

	// Critical issues come first, higher confidence breaking the tie.
	order := []string{"serial_comm_failure", "scat_dead", "repeated_decline"}
	for i, want := range order {
		if report.Issues[i].Type != want {
			t.Errorf("issue[%d] = %q, want %q", i, report.Issues[i].Type, want)
		}
	}
}

func TestTextFormatter(t *testing.T) {
	report := sampleReport()
	var buf bytes.Buffer

	f := NewTextFormatter(FormatOptions{NoColor: true})
	if err := f.Format(context.Background(), report, &buf); err != nil {
		t.Fatalf("Format: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"jrnl0002-20251130.txt",
		"[CRITICAL] scat_dead (confidence 90%)",
		"Evidence: Pinpad dead for 4.5 minutes",
		"Transactions: 3 (1 approved, 1 declined)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
	// Resolution steps only in verbose mode.
	if strings.Contains(out, "Power cycle") {
		t.Error("resolution steps shown without verbose")
	}

	buf.Reset()
	f = NewTextFormatter(FormatOptions{NoColor: true, Verbose: true})
	if err := f.Format(context.Background(), report, &buf); err != nil {
		t.Fatalf("Format verbose: %v", err)
	}
	if !strings.Contains(buf.String(), "Power cycle") {
		t.Error("verbose output missing resolution steps")
	}
}

func TestTextFormatterQuiet(t *testing.T) {
	var buf bytes.Buffer
	f := NewTextFormatter(FormatOptions{Quiet: true})
	if err := f.Format(context.Background(), sampleReport(), &buf); err != nil {
		t.Fatalf("Format: %v", err)
	}
	if got := buf.String(); got != "jrnl0002-20251130.txt: 3 transactions, 3 issues\n" {
		t.Errorf("quiet output = %q", got)
	}
}

func TestJSONFormatterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter(FormatOptions{})
	if err := f.Format(context.Background(), sampleReport(), &buf); err != nil {
		t.Fatalf("Format: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, ok := decoded["issues"]; !ok {
		t.Error("JSON output missing issues key")
	}
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewYAMLFormatter(FormatOptions{})
	if err := f.Format(context.Background(), sampleReport(), &buf); err != nil {
		t.Fatalf("Format: %v", err)
	}

	var decoded map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if _, ok := decoded["issues"]; !ok {
		t.Error("YAML output missing issues key")
	}
}

func TestNewSelectsFormatter(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"text", "text"},
		{"", "text"},
		{"json", "json"},
		{"yaml", "yaml"},
	}
	for _, tt := range tests {
		f := New(tt.name, FormatOptions{})
		if f == nil || f.Name() != tt.want {
			t.Errorf("New(%q) = %v", tt.name, f)
		}
	}
	if New("xml", FormatOptions{}) != nil {
		t.Error("unknown format should return nil")
	}
}
