// Package segment reconstructs domain events from parsed journal entries:
// card transactions, pinpad liveness transitions, error bursts, and backend
// health checks. Each segmenter is a single-pass state machine over an
// ordered entry stream; per-file instances hold all mutable state, so files
// can be processed concurrently without locking.
package segment

import "time"

// Transaction is one card transaction reconstructed from its
// BeginOrder..EndOrder window.
type Transaction struct {
	StartLine  int
	EndLine    int
	StartTime  time.Time
	EndTime    time.Time
	EntryCount int

	// Identifiers
	SequenceNumber string
	CardType       string // Debit, Credit, EBT Food, EBT Cash
	EntryMethod    string // E (chip), S (swipe), C (contactless), M (manual)
	PANLast4       string
	AID            string
	AppLabel       string
	TACSequence    string
	CVMResult      string

	// Response
	ResponseCode        string // AA, DD, DN, ...
	HostResponseCode    string
	AuthorizationNumber string

	// Amounts
	AmountCents   int
	CashbackCents int

	// Host communication
	HostURL       string
	HostLatencyMS float64
	SESendTime    time.Time
	SERecvTime    time.Time

	// EMV data
	TVR         string
	IsQuickChip bool
	IsFallback  bool

	// Error tracking
	SerialErrorCount int
	StateSequence    []string
}

// Approved reports whether the transaction was approved.
func (t *Transaction) Approved() bool {
	return t.ResponseCode == "AA"
}

// DurationMS returns the transaction window length in milliseconds, or 0 if
// either boundary is missing.
func (t *Transaction) DurationMS() float64 {
	if t.StartTime.IsZero() || t.EndTime.IsZero() {
		return 0
	}
	return float64(t.EndTime.Sub(t.StartTime)) / float64(time.Millisecond)
}

// HealthCheck is one backend probe cycle.
type HealthCheck struct {
	StartLine  int
	EndLine    int
	StartTime  time.Time
	EndTime    time.Time
	CheckType  string // ExchangeInfo, MonitoringStatus, Login
	TargetHost string
	Success    bool
	ErrorCode  string
	HTTPStatus string // HTTP code, or Socket_<n> for transport errors
	LatencyMS  float64
}

// ErrorCascade is a time-clustered burst of consecutive error lines treated
// as one incident.
type ErrorCascade struct {
	StartLine         int
	EndLine           int
	StartTime         time.Time
	EndTime           time.Time
	ErrorPattern      string
	ErrorCount        int
	FirstErrorMessage string
	RecoveryAchieved  bool
	RecoveryTimeMS    float64 // valid only when RecoveryAchieved
}

// StateChange is a named SCAT state transition.
type StateChange struct {
	Timestamp time.Time
	NewState  string
	OldState  string
}

// AliveTransition is a change of the SCAT alive status. Only transitions are
// recorded; runs of the same status are compressed to their first sample.
type AliveTransition struct {
	Timestamp time.Time
	Status    int // 0 dead, 1 initializing, 2 loading, 3 alive, 9 none
	Name      string
}

// DeadPeriod is a contiguous run with alive status 0.
type DeadPeriod struct {
	Start time.Time
	End   time.Time

	// Open is true when the stream ended while still dead; End is then the
	// last known timestamp, not a recovery point.
	Open bool
}

// DurationSeconds returns the dead period length in seconds.
func (p DeadPeriod) DurationSeconds() float64 {
	return p.End.Sub(p.Start).Seconds()
}
