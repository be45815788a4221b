// Package diagnose applies deterministic rules to segmented journal data and
// reports known operational issues: dead terminals, serial link failures,
// backend outages, encryption mismatches, and card reader degradation. Every
// verdict is enriched from a static issue catalog carrying fixed severity and
// resolution guidance.
package diagnose

import (
	"time"

	"github.com/openeps/jrnlyzer/pkg/journal"
	"github.com/openeps/jrnlyzer/pkg/segment"
)

// Issue is one detected problem with detector-computed confidence and
// evidence, plus catalog-sourced severity and resolution metadata.
type Issue struct {
	Type            string   `json:"issue_type" yaml:"issue_type"`
	Severity        string   `json:"severity" yaml:"severity"`
	SeverityRank    int      `json:"severity_rank" yaml:"severity_rank"`
	Confidence      float64  `json:"confidence" yaml:"confidence"`
	Description     string   `json:"description" yaml:"description"`
	TimeRange       string   `json:"time_range" yaml:"time_range"`
	Evidence        string   `json:"evidence" yaml:"evidence"`
	ResolutionSteps []string `json:"resolution_steps" yaml:"resolution_steps"`
}

// FileData is the segmented view of one journal file, as produced by the
// parsing and segmentation layers.
type FileData struct {
	Entries      []*journal.Entry
	Transactions []*segment.Transaction
	Cascades     []*segment.ErrorCascade
	HealthChecks []*segment.HealthCheck
	Timeline     []segment.AliveTransition
}

// Window restricts analysis to events overlapping a time range. A zero Start
// or End leaves that side unbounded.
type Window struct {
	Start time.Time
	End   time.Time
}

// Outside reports whether an event spanning [evStart, evEnd] lies entirely
// outside the window.
func (w Window) Outside(evStart, evEnd time.Time) bool {
	if !w.Start.IsZero() && evEnd.Before(w.Start) {
		return true
	}
	if !w.End.IsZero() && evStart.After(w.End) {
		return true
	}
	return false
}

// Contains reports whether a single instant falls inside the window.
func (w Window) Contains(ts time.Time) bool {
	return !w.Outside(ts, ts)
}
