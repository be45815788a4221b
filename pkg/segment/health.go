package segment

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/openeps/jrnlyzer/pkg/journal"
)

// Health check type names.
const (
	CheckExchangeInfo     = "ExchangeInfo"
	CheckMonitoringStatus = "MonitoringStatus"
	CheckLogin            = "Login"
)

var (
	exchangeInfoSend   = regexp.MustCompile(`ServerEPS_LSExchangeInfo Company\[(\d+)\].*?Addr\[([^\]]+)\]`)
	exchangeInfoResult = regexp.MustCompile(`after ServerEPS_LSExchangeInfo ErrorCode = (\d+) ErrorStr=(.*)`)
	monitoringResult   = regexp.MustCompile(`after ServerEPS_LaneServiceStatusUpload ErrorCode \((\d+)\) ErrorStr\(([^)]*)\)`)
	loginResult        = regexp.MustCompile(`Login result = (\w+)`)

	httpErrorPattern   = regexp.MustCompile(`HTTP/1\.\d (\d{3})`)
	socketErrorPattern = regexp.MustCompile(`Socket Error # (\d+)`)
)

// loginOKResults are the login outcomes that indicate a healthy backend.
var loginOKResults = map[string]bool{
	"lrNothingNew":   true,
	"lrWaitForFiles": true,
}

// HealthSegmenter identifies backend health check cycles in ServerEPS
// entries. ExchangeInfo probes span a start and a result line; the other
// check types resolve on a single line. At most one ExchangeInfo probe is
// open at a time: a second start before the first resolves discards the
// unresolved one.
type HealthSegmenter struct {
	current *HealthCheck
}

// NewHealthSegmenter creates a segmenter with no open probe.
func NewHealthSegmenter() *HealthSegmenter {
	return &HealthSegmenter{}
}

// Process consumes one entry and returns a completed health check record,
// or nil. Entries outside the SVREPS category are ignored.
func (s *HealthSegmenter) Process(e *journal.Entry) *HealthCheck {
	if e.Category != journal.CategorySvrEPS {
		return nil
	}
	msg := e.Message

	if m := exchangeInfoSend.FindStringSubmatch(msg); m != nil {
		// An unresolved probe has no result to report; drop it.
		s.current = &HealthCheck{
			StartLine:  e.LineNumber,
			StartTime:  e.Timestamp,
			CheckType:  CheckExchangeInfo,
			TargetHost: m[2],
		}
		return nil
	}

	if m := exchangeInfoResult.FindStringSubmatch(msg); m != nil {
		if s.current == nil || s.current.CheckType != CheckExchangeInfo {
			return nil
		}
		hc := s.current
		s.current = nil

		hc.EndLine = e.LineNumber
		hc.EndTime = e.Timestamp
		hc.ErrorCode = m[1]
		hc.Success = m[1] == "0"
		if !hc.StartTime.IsZero() {
			hc.LatencyMS = float64(e.Timestamp.Sub(hc.StartTime)) / float64(time.Millisecond)
		}
		hc.HTTPStatus = extractHTTPStatus(strings.TrimSpace(m[2]))
		return hc
	}

	if m := monitoringResult.FindStringSubmatch(msg); m != nil {
		return &HealthCheck{
			StartLine:  e.LineNumber,
			StartTime:  e.Timestamp,
			EndLine:    e.LineNumber,
			EndTime:    e.Timestamp,
			CheckType:  CheckMonitoringStatus,
			ErrorCode:  m[1],
			Success:    m[1] == "0",
			HTTPStatus: extractHTTPStatus(m[2]),
		}
	}

	if m := loginResult.FindStringSubmatch(msg); m != nil {
		return &HealthCheck{
			StartLine: e.LineNumber,
			StartTime: e.Timestamp,
			EndLine:   e.LineNumber,
			EndTime:   e.Timestamp,
			CheckType: CheckLogin,
			ErrorCode: m[1],
			Success:   loginOKResults[m[1]],
		}
	}

	return nil
}

// Flush discards any unresolved ExchangeInfo probe; only {start, result}
// pairs are meaningful.
func (s *HealthSegmenter) Flush() {
	s.current = nil
}

// extractHTTPStatus pulls an HTTP status code or socket error sub-code from
// a backend error string. A socket error takes precedence when both are
// present, since it describes the transport failure underneath the HTTP
// text. Returns "" when neither is present.
func extractHTTPStatus(errorStr string) string {
	status := ""
	if m := httpErrorPattern.FindStringSubmatch(errorStr); m != nil {
		status = m[1]
	}
	if m := socketErrorPattern.FindStringSubmatch(errorStr); m != nil {
		status = fmt.Sprintf("Socket_%s", m[1])
	}
	return status
}

// SegmentHealthChecks runs the segmenter over a full entry slice.
func SegmentHealthChecks(entries []*journal.Entry) []*HealthCheck {
	s := NewHealthSegmenter()
	var out []*HealthCheck
	for _, e := range entries {
		if hc := s.Process(e); hc != nil {
			out = append(out, hc)
		}
	}
	s.Flush()
	return out
}
