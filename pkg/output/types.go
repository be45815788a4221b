// Package output renders analysis reports in text, JSON, and YAML.
package output

import (
	"time"

	"github.com/openeps/jrnlyzer/pkg/diagnose"
	"github.com/openeps/jrnlyzer/pkg/identity"
	"github.com/openeps/jrnlyzer/pkg/journal"
)

// Report is the complete per-file analysis output.
type Report struct {
	// File describes the analyzed journal.
	File journal.FileMetadata `json:"file" yaml:"file"`

	// Identity is the extracted lane identity, if any.
	Identity *identity.Identity `json:"identity,omitempty" yaml:"identity,omitempty"`

	// Summary provides aggregate statistics.
	Summary Summary `json:"summary" yaml:"summary"`

	// Issues holds the rule engine findings, most severe first.
	Issues []diagnose.Issue `json:"issues" yaml:"issues"`

	// Metadata provides context about the analysis run.
	Metadata Metadata `json:"metadata" yaml:"metadata"`
}

// Summary provides aggregate statistics over the segmented events.
type Summary struct {
	Entries      int `json:"entries" yaml:"entries"`
	Transactions int `json:"transactions" yaml:"transactions"`
	Approved     int `json:"approved" yaml:"approved"`
	Declined     int `json:"declined" yaml:"declined"`
	HealthChecks int `json:"health_checks" yaml:"health_checks"`
	Cascades     int `json:"error_cascades" yaml:"error_cascades"`
	DeadPeriods  int `json:"dead_periods" yaml:"dead_periods"`
	TotalIssues  int `json:"total_issues" yaml:"total_issues"`
}

// Metadata provides context about the analysis run.
type Metadata struct {
	// TimeRange is the analysis window that was applied, if any.
	TimeRange *TimeRange `json:"time_range,omitempty" yaml:"time_range,omitempty"`

	// AnalyzedAt is when the analysis was performed.
	AnalyzedAt time.Time `json:"analyzed_at" yaml:"analyzed_at"`

	// Duration is how long the analysis took.
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// TimeRange is a time window applied to the analysis.
type TimeRange struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// HasIssues reports whether the rule engine found anything.
func (r *Report) HasIssues() bool {
	return len(r.Issues) > 0
}

// HasCritical reports whether any finding is at critical severity.
func (r *Report) HasCritical() bool {
	for _, is := range r.Issues {
		if is.Severity == "critical" {
			return true
		}
	}
	return false
}
