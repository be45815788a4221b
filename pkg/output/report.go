package output

import (
	"sort"
	"time"

	"github.com/openeps/jrnlyzer/pkg/diagnose"
	"github.com/openeps/jrnlyzer/pkg/pipeline"
	"github.com/openeps/jrnlyzer/pkg/segment"
)

// NewReport assembles a Report from an analyzed file and its findings.
// Issues are ordered most severe first, ties broken by confidence.
func NewReport(result *pipeline.Result, issues []diagnose.Issue, win diagnose.Window, started time.Time) *Report {
	approved, declined := 0, 0
	for _, t := range result.Transactions {
		if t.Approved() {
			approved++
		} else if t.ResponseCode == "DD" || t.ResponseCode == "DN" {
			declined++
		}
	}

	sorted := make([]diagnose.Issue, len(issues))
	copy(sorted, issues)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].SeverityRank != sorted[j].SeverityRank {
			return sorted[i].SeverityRank < sorted[j].SeverityRank
		}
		return sorted[i].Confidence > sorted[j].Confidence
	})

	report := &Report{
		File:     result.Metadata,
		Identity: result.Identity,
		Summary: Summary{
			Entries:      len(result.Entries),
			Transactions: len(result.Transactions),
			Approved:     approved,
			Declined:     declined,
			HealthChecks: len(result.HealthChecks),
			Cascades:     len(result.Cascades),
			DeadPeriods:  len(segment.DeadPeriods(result.Timeline)),
			TotalIssues:  len(sorted),
		},
		Issues: sorted,
		Metadata: Metadata{
			AnalyzedAt: started,
			Duration:   time.Since(started),
		},
	}

	if !win.Start.IsZero() || !win.End.IsZero() {
		report.Metadata.TimeRange = &TimeRange{Start: win.Start, End: win.End}
	}
	return report
}
