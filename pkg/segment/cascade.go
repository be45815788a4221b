package segment

import (
	"regexp"
	"strings"
	"time"

	"github.com/openeps/jrnlyzer/pkg/journal"
)

var (
	errorLinePattern     = regexp.MustCompile(`\*{4}ERROR[:\s](.+)`)
	processFailedPattern = regexp.MustCompile(`ProcessRequest FAILED`)
)

// DefaultCascadeMaxGap is the largest gap between error lines that still
// extends the same cascade.
const DefaultCascadeMaxGap = 5 * time.Second

// patternLabelLimit truncates cascade labels derived from error text.
const patternLabelLimit = 100

// CascadeDetector groups consecutive error lines into ErrorCascade events.
// An open cascade is extended by error lines arriving within the max gap and
// closed by a longer silence; the closing line may mark the cascade as
// recovered when it carries a ready/alive marker.
type CascadeDetector struct {
	maxGap        time.Duration
	current       *ErrorCascade
	lastErrorTime time.Time
}

// NewCascadeDetector creates a detector. maxGap <= 0 uses
// DefaultCascadeMaxGap.
func NewCascadeDetector(maxGap time.Duration) *CascadeDetector {
	if maxGap <= 0 {
		maxGap = DefaultCascadeMaxGap
	}
	return &CascadeDetector{maxGap: maxGap}
}

// Process consumes one entry and returns a completed cascade when the entry
// closed one, or nil.
func (d *CascadeDetector) Process(e *journal.Entry) *ErrorCascade {
	if isErrorLine(e.Message) {
		defer func() { d.lastErrorTime = e.Timestamp }()

		switch {
		case d.current == nil:
			d.current = newCascade(e)
		case e.Timestamp.Sub(d.lastErrorTime) <= d.maxGap:
			d.current.ErrorCount++
			d.current.EndLine = e.LineNumber
			d.current.EndTime = e.Timestamp
		default:
			// Gap too large: the burst ended, this error opens a new one.
			completed := d.finalize()
			d.current = newCascade(e)
			return completed
		}
		return nil
	}

	// Non-error line: close an open cascade once the silence exceeds the
	// gap, checking the closing line for a recovery marker.
	if d.current != nil && !d.lastErrorTime.IsZero() && e.Timestamp.Sub(d.lastErrorTime) > d.maxGap {
		completed := d.finalize()
		if isRecoveryLine(e.Message) {
			completed.RecoveryAchieved = true
			completed.RecoveryTimeMS = float64(e.Timestamp.Sub(completed.EndTime)) / float64(time.Millisecond)
		}
		d.current = nil
		d.lastErrorTime = time.Time{}
		return completed
	}

	return nil
}

// Flush closes a still-open cascade at end of stream.
func (d *CascadeDetector) Flush() *ErrorCascade {
	if d.current == nil {
		return nil
	}
	completed := d.finalize()
	d.current = nil
	d.lastErrorTime = time.Time{}
	return completed
}

func (d *CascadeDetector) finalize() *ErrorCascade {
	c := d.current
	if c.EndTime.IsZero() {
		c.EndTime = c.StartTime
		c.EndLine = c.StartLine
	}
	return c
}

func newCascade(e *journal.Entry) *ErrorCascade {
	c := &ErrorCascade{
		StartLine:         e.LineNumber,
		StartTime:         e.Timestamp,
		ErrorCount:        1,
		FirstErrorMessage: strings.TrimSpace(e.Message),
	}
	if m := errorLinePattern.FindStringSubmatch(e.Message); m != nil {
		label := strings.TrimSpace(m[1])
		if len(label) > patternLabelLimit {
			label = label[:patternLabelLimit]
		}
		c.ErrorPattern = label
	} else if processFailedPattern.MatchString(e.Message) {
		c.ErrorPattern = "ProcessRequest FAILED"
	}
	return c
}

func isErrorLine(msg string) bool {
	return errorLinePattern.MatchString(msg) || processFailedPattern.MatchString(msg)
}

func isRecoveryLine(msg string) bool {
	return strings.Contains(msg, "SCATAliveInt = 3") || strings.Contains(msg, "Ready")
}

// DetectCascades runs the detector over a full entry slice.
func DetectCascades(entries []*journal.Entry, maxGap time.Duration) []*ErrorCascade {
	d := NewCascadeDetector(maxGap)
	var out []*ErrorCascade
	for _, e := range entries {
		if c := d.Process(e); c != nil {
			out = append(out, c)
		}
	}
	if c := d.Flush(); c != nil {
		out = append(out, c)
	}
	return out
}
