package diagnose

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/openeps/jrnlyzer/pkg/journal"
	"github.com/openeps/jrnlyzer/pkg/segment"
)

// Detection thresholds. These encode field-validated heuristics and are
// deliberately not configurable.
const (
	deadPeriodMinSeconds = 60
	ackClusterMaxGap     = 10 * time.Second
	ackClusterMinSize    = 2
	declineRunMin        = 3
	latencyThresholdMS   = 5000
	latencyTopN          = 5
	cascadeMinErrors     = 3

	// Card-read detector. No-reads shorter than minWaitMS are counted as
	// cashier cancels, not reader failures; the 30-55s zone is where the
	// POS's 45s card prompt timeout lands.
	noReadMinTxns    = 5
	minWaitMS        = 15000
	timeoutZoneLowMS = 30000
	timeoutZoneHiMS  = 55000
)

const ackFailureMarker = "SendMsgWaitAck3Tries failed"
const p2pMismatchMarker = "IsP2PDLL=Y, IsTermP2PCapable=N"

// Engine runs every detection rule over one file's segmented data.
type Engine struct{}

// NewEngine creates a rule engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Analyze runs all detectors and returns the detected issues. A detector
// with no matching data contributes nothing; the result may be empty but is
// never an error.
func (e *Engine) Analyze(data *FileData, win Window) []Issue {
	var issues []Issue
	issues = append(issues, e.checkScatDead(data, win)...)
	issues = append(issues, e.checkSerialFailures(data, win)...)
	issues = append(issues, e.checkServerEPSErrors(data, win)...)
	issues = append(issues, e.checkP2PMismatch(data, win)...)
	issues = append(issues, e.checkRepeatedDeclines(data, win)...)
	issues = append(issues, e.checkHostLatency(data, win)...)
	issues = append(issues, e.checkErrorCascades(data, win)...)
	issues = append(issues, e.checkCardReadIntermittent(data, win)...)
	return issues
}

// checkScatDead reports dead periods longer than a minute. A period still
// open at end of file is reported at a fixed confidence since its true
// duration is unknown.
func (e *Engine) checkScatDead(data *FileData, win Window) []Issue {
	if len(data.Timeline) == 0 {
		return nil
	}

	var issues []Issue
	var deadStart time.Time
	dead := false

	for _, tr := range data.Timeline {
		switch {
		case tr.Status == segment.AliveDead && !dead:
			dead = true
			deadStart = tr.Timestamp
		case tr.Status != segment.AliveDead && dead:
			dead = false
			durationSec := tr.Timestamp.Sub(deadStart).Seconds()
			if durationSec > deadPeriodMinSeconds && !win.Outside(deadStart, tr.Timestamp) {
				issues = append(issues, newIssue(
					IssueScatDead,
					minFloat(0.95, 0.5+durationSec/3600),
					fmt.Sprintf("%s - %s", fmtTime(deadStart), fmtTime(tr.Timestamp)),
					fmt.Sprintf("Pinpad dead for %.1f minutes", durationSec/60),
				))
			}
		}
	}

	if dead {
		lastTS := data.Timeline[len(data.Timeline)-1].Timestamp
		durationSec := lastTS.Sub(deadStart).Seconds()
		if durationSec > deadPeriodMinSeconds && !win.Outside(deadStart, lastTS) {
			issues = append(issues, newIssue(
				IssueScatDead,
				0.9,
				fmt.Sprintf("%s - (end of file)", fmtTime(deadStart)),
				fmt.Sprintf("Pinpad dead for %.1f+ minutes (still dead)", durationSec/60),
			))
		}
	}

	return issues
}

// checkSerialFailures clusters ACK failure lines by time proximity.
func (e *Engine) checkSerialFailures(data *FileData, win Window) []Issue {
	var failures []*journal.Entry
	for _, entry := range data.Entries {
		if strings.Contains(entry.Message, ackFailureMarker) && win.Contains(entry.Timestamp) {
			failures = append(failures, entry)
		}
	}
	if len(failures) == 0 {
		return nil
	}

	var clusters [][]*journal.Entry
	current := []*journal.Entry{failures[0]}
	for _, entry := range failures[1:] {
		if entry.Timestamp.Sub(current[len(current)-1].Timestamp) < ackClusterMaxGap {
			current = append(current, entry)
		} else {
			clusters = append(clusters, current)
			current = []*journal.Entry{entry}
		}
	}
	clusters = append(clusters, current)

	var issues []Issue
	for _, cluster := range clusters {
		if len(cluster) < ackClusterMinSize {
			continue
		}
		first, last := cluster[0], cluster[len(cluster)-1]
		issues = append(issues, newIssue(
			IssueSerialCommFailure,
			minFloat(0.95, 0.6+float64(len(cluster))*0.1),
			fmt.Sprintf("%s - %s", fmtTime(first.Timestamp), fmtTime(last.Timestamp)),
			fmt.Sprintf("%d ACK failures in %.0fs", len(cluster), last.Timestamp.Sub(first.Timestamp).Seconds()),
		))
	}
	return issues
}

// checkServerEPSErrors groups failed health checks into HTTP-500 and
// socket-error buckets; each non-empty bucket is one issue.
func (e *Engine) checkServerEPSErrors(data *FileData, win Window) []Issue {
	var http500s, socketErrs []*segment.HealthCheck
	for _, hc := range data.HealthChecks {
		if hc.Success || !win.Contains(hc.StartTime) {
			continue
		}
		switch {
		case hc.HTTPStatus == "500":
			http500s = append(http500s, hc)
		case strings.HasPrefix(hc.HTTPStatus, "Socket_"):
			socketErrs = append(socketErrs, hc)
		}
	}

	var issues []Issue
	if len(http500s) > 0 {
		issues = append(issues, newIssue(
			IssueServerEPS500,
			0.95,
			fmt.Sprintf("%s - %s", fmtTime(http500s[0].StartTime), fmtTime(http500s[len(http500s)-1].StartTime)),
			fmt.Sprintf("%d HTTP 500 errors across %s", len(http500s),
				uniqueSorted(http500s, func(hc *segment.HealthCheck) string { return hc.CheckType })),
		))
	}
	if len(socketErrs) > 0 {
		issues = append(issues, newIssue(
			IssueServerEPSSocketError,
			0.9,
			fmt.Sprintf("%s - %s", fmtTime(socketErrs[0].StartTime), fmtTime(socketErrs[len(socketErrs)-1].StartTime)),
			fmt.Sprintf("%d socket errors: %s", len(socketErrs),
				uniqueSorted(socketErrs, func(hc *segment.HealthCheck) string { return hc.HTTPStatus })),
		))
	}
	return issues
}

// checkP2PMismatch fires on the first occurrence of the P2P incapability
// marker. One occurrence is conclusive.
func (e *Engine) checkP2PMismatch(data *FileData, win Window) []Issue {
	for _, entry := range data.Entries {
		if strings.Contains(entry.Message, p2pMismatchMarker) && win.Contains(entry.Timestamp) {
			return []Issue{newIssue(
				IssueP2PEncryptionMismatch,
				0.99,
				fmtTime(entry.Timestamp),
				"P2P DLL requires encryption but terminal reports not capable",
			)}
		}
	}
	return nil
}

// checkRepeatedDeclines finds the longest run of consecutive declines.
func (e *Engine) checkRepeatedDeclines(data *FileData, win Window) []Issue {
	var run, maxRun int
	var runStart time.Time
	for _, txn := range data.Transactions {
		if !win.Contains(txn.StartTime) {
			continue
		}
		if txn.ResponseCode == "DD" || txn.ResponseCode == "DN" {
			if run == 0 {
				runStart = txn.StartTime
			}
			run++
			if run > maxRun {
				maxRun = run
			}
		} else {
			run = 0
		}
	}

	if maxRun < declineRunMin {
		return nil
	}
	timeRange := ""
	if !runStart.IsZero() {
		timeRange = fmtTime(runStart)
	}
	return []Issue{newIssue(
		IssueRepeatedDecline,
		0.7,
		timeRange,
		fmt.Sprintf("%d consecutive declines", maxRun),
	)}
}

// checkHostLatency reports the worst host round trips over the 5s threshold.
func (e *Engine) checkHostLatency(data *FileData, win Window) []Issue {
	var slow []*segment.Transaction
	for _, txn := range data.Transactions {
		if txn.HostLatencyMS > latencyThresholdMS && win.Contains(txn.StartTime) {
			slow = append(slow, txn)
		}
	}
	if len(slow) == 0 {
		return nil
	}

	sort.SliceStable(slow, func(i, j int) bool { return slow[i].HostLatencyMS > slow[j].HostLatencyMS })
	if len(slow) > latencyTopN {
		slow = slow[:latencyTopN]
	}

	maxLatency := slow[0].HostLatencyMS
	return []Issue{newIssue(
		IssueHostTimeout,
		minFloat(0.9, 0.5+maxLatency/20000),
		fmtTime(slow[0].StartTime),
		fmt.Sprintf("%d transactions with latency > 5s (max: %.0fms)", len(slow), maxLatency),
	)}
}

// checkErrorCascades reports each significant cascade as its own issue,
// worst first.
func (e *Engine) checkErrorCascades(data *FileData, win Window) []Issue {
	var significant []*segment.ErrorCascade
	for _, c := range data.Cascades {
		if c.ErrorCount >= cascadeMinErrors && win.Contains(c.StartTime) {
			significant = append(significant, c)
		}
	}
	sort.SliceStable(significant, func(i, j int) bool {
		return significant[i].ErrorCount > significant[j].ErrorCount
	})

	var issues []Issue
	for _, c := range significant {
		pattern := c.ErrorPattern
		if pattern == "" {
			pattern = "Unknown"
		}
		issues = append(issues, newIssue(
			IssueSerialCommFailure,
			minFloat(0.9, 0.5+float64(c.ErrorCount)*0.05),
			fmt.Sprintf("%s - %s", fmtTime(c.StartTime), fmtTime(c.EndTime)),
			fmt.Sprintf("Error cascade: %d '%s' errors, recovered=%v", c.ErrorCount, pattern, c.RecoveryAchieved),
		))
	}
	return issues
}

// checkCardReadIntermittent detects a degrading card reader: completed
// transaction windows where no card was ever read. Short windows are
// cashier cancels, not reader failures, and are excluded from the failure
// counts but reported in the evidence.
func (e *Engine) checkCardReadIntermittent(data *FileData, win Window) []Issue {
	var txns []*segment.Transaction
	for _, t := range data.Transactions {
		if win.Contains(t.StartTime) {
			txns = append(txns, t)
		}
	}
	if len(txns) < noReadMinTxns {
		return nil
	}

	total := len(txns)
	var noReads []*segment.Transaction
	quickCancels := 0
	for _, t := range txns {
		if !isNoRead(t) {
			continue
		}
		if t.DurationMS() < minWaitMS {
			quickCancels++
		} else {
			noReads = append(noReads, t)
		}
	}
	if len(noReads) == 0 {
		return nil
	}

	noReadPct := float64(len(noReads)) * 100 / float64(total)

	// Longest burst of consecutive true no-reads.
	var burst, maxBurst int
	for _, t := range txns {
		if isNoRead(t) && t.DurationMS() >= minWaitMS {
			burst++
			if burst > maxBurst {
				maxBurst = burst
			}
		} else {
			burst = 0
		}
	}

	// Customer wait statistics over the failed attempts.
	var totalWaitMS float64
	waitSamples := 0
	timeoutZone := 0
	for _, t := range noReads {
		d := t.DurationMS()
		if d > 0 {
			totalWaitMS += d
			waitSamples++
		}
		if d >= timeoutZoneLowMS && d <= timeoutZoneHiMS {
			timeoutZone++
		}
	}
	avgWaitS := 0.0
	if waitSamples > 0 {
		avgWaitS = totalWaitMS / float64(waitSamples) / 1000
	}
	totalWaitS := totalWaitMS / 1000
	timeoutPct := float64(timeoutZone) * 100 / float64(len(noReads))

	timeRange := fmt.Sprintf("%s - %s", fmtTime(noReads[0].StartTime), fmtTime(noReads[len(noReads)-1].StartTime))

	evidence := []string{
		fmt.Sprintf("%d/%d transactions failed to read card (%.0f%%)", len(noReads), total, noReadPct),
	}
	if quickCancels > 0 {
		evidence = append(evidence, fmt.Sprintf("%d quick cancels (<15s) excluded as likely cashier behavior", quickCancels))
	}

	switch {
	case maxBurst >= 3 || noReadPct >= 30:
		// Acute episode.
		if maxBurst >= 3 {
			evidence = append(evidence, fmt.Sprintf("Burst of %d consecutive no-reads detected", maxBurst))
		}
		evidence = append(evidence, fmt.Sprintf("Avg customer wait: %.0fs per failed attempt", avgWaitS))
		if timeoutPct > 20 {
			evidence = append(evidence, fmt.Sprintf("%.0f%% of failures cluster at POS timeout (30-55s)", timeoutPct))
		}
		evidence = append(evidence, fmt.Sprintf("Total wasted wait time: %.1f minutes", totalWaitS/60))

		return []Issue{newIssue(
			IssueCardReadIntermittent,
			minFloat(0.95, 0.7+float64(maxBurst)*0.05),
			timeRange,
			strings.Join(evidence, "; "),
		)}

	case noReadPct >= 15 && total >= 10:
		// Chronic degradation.
		evidence = append(evidence, fmt.Sprintf("Avg customer wait: %.0fs per failed attempt", avgWaitS))
		if timeoutPct > 20 {
			evidence = append(evidence, fmt.Sprintf("%.0f%% of failures cluster at POS timeout (30-55s)", timeoutPct))
		}
		evidence = append(evidence, fmt.Sprintf("Total wasted wait time: %.1f minutes", totalWaitS/60))

		// A 7-8 AM spike over the whole file points at startup or thermal
		// trouble rather than steady wear.
		if morningPct, ok := morningNoReadRate(data.Transactions); ok && morningPct > noReadPct+5 {
			evidence = append(evidence, fmt.Sprintf(
				"Morning spike: %.0f%% fail rate at 7-8 AM (vs %.0f%% overall) - possible startup/thermal issue",
				morningPct, noReadPct))
		}

		return []Issue{newIssue(
			IssueCardReadIntermittent,
			minFloat(0.85, 0.5+noReadPct/100),
			timeRange,
			strings.Join(evidence, "; "),
		)}
	}

	return nil
}

// isNoRead reports whether a window completed without reading a card: not
// approved, no card type, and no host round trip.
func isNoRead(t *segment.Transaction) bool {
	return !t.Approved() && t.CardType == "" && t.HostLatencyMS == 0
}

// morningNoReadRate computes the 7-8 AM no-read percentage over the whole
// file, ignoring any analysis window.
func morningNoReadRate(txns []*segment.Transaction) (float64, bool) {
	var noReads, total int
	for _, t := range txns {
		h := t.StartTime.Hour()
		if h != 7 && h != 8 {
			continue
		}
		total++
		if isNoRead(t) {
			noReads++
		}
	}
	if total == 0 {
		return 0, false
	}
	return float64(noReads) * 100 / float64(total), true
}

func uniqueSorted(hcs []*segment.HealthCheck, key func(*segment.HealthCheck) string) string {
	seen := make(map[string]struct{}, len(hcs))
	var vals []string
	for _, hc := range hcs {
		k := key(hc)
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			vals = append(vals, k)
		}
	}
	sort.Strings(vals)
	return "[" + strings.Join(vals, ", ") + "]"
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func fmtTime(ts time.Time) string {
	return ts.Format("2006-01-02 15:04:05")
}
