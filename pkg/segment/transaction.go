package segment

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/openeps/jrnlyzer/pkg/journal"
)

type txnState int

const (
	txnIdle txnState = iota
	txnInProgress
	txnOnlinePending
	txnCompleting
)

// Transaction boundary and field markers.
var (
	reBeginOrder    = regexp.MustCompile(`MTX_POS_BeginOrder`)
	reTenderTypeSet = regexp.MustCompile(`MTX_POS_SET_TenderTypePOS = [0-9A-F]`)
	reEndOrder      = regexp.MustCompile(`MTX_POS_EndOrder`)
	reResetClearEnd = regexp.MustCompile(`Reset_Clear END`)
	reSESend        = regexp.MustCompile(`SE_SEND\(TimeOutSecs (\d+)\).*?URL\[([^\]]+)\].*?Ae(\d+)`)
	reSERecv        = regexp.MustCompile(`SE_RECV\(([0-9.]+) secs\).*?Ae(\d+)`)
	reSendAckFail   = regexp.MustCompile(`\*{4}ERROR: SendMsgWaitAck3Tries failed`)
	reScatStateSeq  = regexp.MustCompile(`>>>>>>SCATState = (\w+)`)

	reCardEntry  = regexp.MustCompile(`CardEntryType = (\w)`)
	reAID        = regexp.MustCompile(`AppID >(\w+)<`)
	reAppLabel   = regexp.MustCompile(`AppLabel >([^<]+)<`)
	reCVMResult  = regexp.MustCompile(`CVMR >(\w+)<`)
	reTVR        = regexp.MustCompile(`tvr=(\w+),`)
	reCmdSeq     = regexp.MustCompile(`\*{4}COMMAND SEQUENCE for .+ >([^<]+)<`)
	reQuickChip  = regexp.MustCompile(`IsQuickChip=(\w)`)
	reFallback   = regexp.MustCompile(`IsCardEntryFallBack\s*(?:=\s*)?(True|Y)`)
	reAuthNumber = regexp.MustCompile(`AuthorizationNumber = (\w+)`)
	reTenderType = regexp.MustCompile(`TenderTypeMTXi = \S+ <(\w+[\s\w]*)>`)
	reRespCode   = regexp.MustCompile(`ResponseCode = (\w+)`)
	reHostResp   = regexp.MustCompile(`HostResponseCode = (\d+)`)
)

// SE_SEND payload field markers (compact ServerEPS wire fields).
var (
	reSendAmount   = regexp.MustCompile(`Da(\d+)`)
	reSendCashback = regexp.MustCompile(`Dc(\d+)`)
	reSendCardType = regexp.MustCompile(`Bn(\w{2})`)
	reSendPAN      = regexp.MustCompile(`Bp(\d+)`)
	reSendEntry    = regexp.MustCompile(`BfE?C?(\w)`)
	reSendAID      = regexp.MustCompile(`84-(\w+)`)
	reSendLabel    = regexp.MustCompile(`50-([^|]+)`)
	reSendTVR      = regexp.MustCompile(`95-(\w+)`)
	reSendCVM      = regexp.MustCompile(`9F34-(\w+)`)
	reSendTACSeq   = regexp.MustCompile(`Gh([^[]+)`)
)

// SE_RECV payload field markers.
var (
	reRecvRespCode = regexp.MustCompile(`Af(\w{2})`)
	reRecvAuth     = regexp.MustCompile(`Ag(\w+)`)
	reRecvHostResp = regexp.MustCompile(`Mb(\d{3})`)
)

// cvmPrePINPlaceholder is reported by the pinpad before PIN entry completes
// and never describes the final CVM outcome.
const cvmPrePINPlaceholder = "3F0000"

// cardTypeNames maps the two-letter wire card type codes.
var cardTypeNames = map[string]string{
	"DB": "Debit",
	"VS": "Credit",
	"MC": "Credit",
	"AX": "Credit",
	"DS": "Credit",
	"EF": "EBT Food",
	"EC": "EBT Cash",
}

// hostResponseOutcomes maps two-digit host codes to response codes. Codes
// outside the table leave the response unset.
var hostResponseOutcomes = map[string]string{
	"00": "AA",
	"05": "DD",
	"14": "DD",
	"51": "DD",
}

// fieldRule is one per-entry extraction: pattern plus a guarded setter.
// Setters are write-once; evaluation order fixes which writer wins when
// several patterns target the same field.
type fieldRule struct {
	pattern    *regexp.Regexp
	categories []journal.Category // nil means any category
	apply      func(t *Transaction, v string)
}

func (r *fieldRule) matchesCategory(c journal.Category) bool {
	if r.categories == nil {
		return true
	}
	for _, cat := range r.categories {
		if cat == c {
			return true
		}
	}
	return false
}

var txnFieldRules = []fieldRule{
	{
		pattern:    reCardEntry,
		categories: []journal.Category{journal.CategoryDLLEx, journal.CategoryTCPIP},
		apply: func(t *Transaction, v string) {
			if t.EntryMethod == "" {
				t.EntryMethod = v
			}
		},
	},
	{
		pattern: reAID,
		apply: func(t *Transaction, v string) {
			if t.AID == "" {
				t.AID = v
			}
		},
	},
	{
		pattern: reAppLabel,
		apply: func(t *Transaction, v string) {
			if t.AppLabel == "" {
				t.AppLabel = strings.TrimSpace(v)
			}
		},
	},
	{
		pattern: reCVMResult,
		apply: func(t *Transaction, v string) {
			if t.CVMResult == "" && v != cvmPrePINPlaceholder {
				t.CVMResult = v
			}
		},
	},
	{
		pattern: reTVR,
		apply: func(t *Transaction, v string) {
			if t.TVR == "" {
				t.TVR = v
			}
		},
	},
	{
		pattern: reCmdSeq,
		apply: func(t *Transaction, v string) {
			if t.TACSequence == "" {
				t.TACSequence = strings.TrimSpace(v)
			}
		},
	},
	{
		pattern:    reAuthNumber,
		categories: []journal.Category{journal.CategoryTCPIP},
		apply: func(t *Transaction, v string) {
			if t.AuthorizationNumber == "" {
				t.AuthorizationNumber = v
			}
		},
	},
	{
		pattern: reTenderType,
		apply: func(t *Transaction, v string) {
			if t.CardType != "" {
				return
			}
			name := strings.TrimSpace(v)
			switch {
			case strings.Contains(name, "Debit"):
				t.CardType = "Debit"
			case strings.Contains(name, "Credit"):
				t.CardType = "Credit"
			case strings.Contains(name, "EBT Food"), strings.Contains(name, "Food Stamp"):
				t.CardType = "EBT Food"
			case strings.Contains(name, "EBT Cash"):
				t.CardType = "EBT Cash"
			}
		},
	},
	{
		pattern:    reRespCode,
		categories: []journal.Category{journal.CategoryTCPIP},
		apply: func(t *Transaction, v string) {
			if t.ResponseCode == "" {
				t.ResponseCode = v
			}
		},
	},
	{
		pattern:    reHostResp,
		categories: []journal.Category{journal.CategoryTCPIP},
		apply: func(t *Transaction, v string) {
			if t.HostResponseCode == "" {
				t.HostResponseCode = v
			}
		},
	},
}

// TransactionSegmenter reconstructs transactions from an entry stream. One
// transaction is in flight at a time.
type TransactionSegmenter struct {
	state     txnState
	current   *Transaction
	lastEntry *journal.Entry
	qcSeen    bool
}

// NewTransactionSegmenter creates an idle segmenter.
func NewTransactionSegmenter() *TransactionSegmenter {
	return &TransactionSegmenter{state: txnIdle}
}

// Process consumes one entry and returns a completed transaction when the
// entry closed one, or nil.
func (s *TransactionSegmenter) Process(e *journal.Entry) *Transaction {
	msg := e.Message

	// BeginOrder always starts a new transaction, force-closing any
	// in-flight one at this entry's position.
	if reBeginOrder.MatchString(msg) {
		var completed *Transaction
		if s.current != nil && !s.current.StartTime.IsZero() {
			s.finalize(e)
			completed = s.current
		}
		s.start(e)
		return completed
	}

	// A tender-type set while idle is a soft transaction start: the order
	// began before this journal's coverage or the BeginOrder line was lost.
	if s.state == txnIdle && e.Category == journal.CategoryDLLEx && reTenderTypeSet.MatchString(msg) {
		s.start(e)
	}

	if s.current == nil {
		return nil
	}

	s.lastEntry = e
	s.current.EntryCount++

	s.extractFields(e)

	if e.Category == journal.CategorySvrEPS {
		if m := reSESend.FindStringSubmatch(msg); m != nil {
			s.state = txnOnlinePending
			s.current.SESendTime = e.Timestamp
			s.current.HostURL = m[2]
			s.current.SequenceNumber = m[3]
			s.extractSendPayload(msg)
		}
		if m := reSERecv.FindStringSubmatch(msg); m != nil {
			s.state = txnCompleting
			s.current.SERecvTime = e.Timestamp
			if secs, err := strconv.ParseFloat(m[1], 64); err == nil {
				s.current.HostLatencyMS = secs * 1000
			}
			s.extractRecvPayload(msg)
		}
	}

	if reEndOrder.MatchString(msg) {
		return s.close(e)
	}

	// A terminal reset also closes the window, but only once a decision was
	// recorded; resets during card prompting must not truncate the
	// transaction.
	if reResetClearEnd.MatchString(msg) && s.current.ResponseCode != "" {
		return s.close(e)
	}

	if reSendAckFail.MatchString(msg) {
		s.current.SerialErrorCount++
	}

	if m := reScatStateSeq.FindStringSubmatch(msg); m != nil {
		s.current.StateSequence = append(s.current.StateSequence, strings.TrimSpace(m[1]))
	}

	return nil
}

// Flush finalizes a still-open transaction at end of stream, using the last
// observed entry as its boundary. A transaction that never recorded a start
// time is discarded.
func (s *TransactionSegmenter) Flush() *Transaction {
	if s.current == nil || s.current.StartTime.IsZero() {
		s.current = nil
		s.state = txnIdle
		return nil
	}
	s.finalize(s.lastEntry)
	completed := s.current
	s.current = nil
	s.state = txnIdle
	return completed
}

func (s *TransactionSegmenter) start(e *journal.Entry) {
	s.current = &Transaction{
		StartLine: e.LineNumber,
		StartTime: e.Timestamp,
	}
	s.state = txnInProgress
	s.lastEntry = e
	s.qcSeen = false
}

func (s *TransactionSegmenter) close(e *journal.Entry) *Transaction {
	s.finalize(e)
	completed := s.current
	s.current = nil
	s.state = txnIdle
	return completed
}

func (s *TransactionSegmenter) finalize(e *journal.Entry) {
	if s.current == nil || e == nil {
		return
	}
	s.current.EndLine = e.LineNumber
	s.current.EndTime = e.Timestamp
}

func (s *TransactionSegmenter) extractFields(e *journal.Entry) {
	msg := e.Message
	txn := s.current

	for i := range txnFieldRules {
		rule := &txnFieldRules[i]
		if !rule.matchesCategory(e.Category) {
			continue
		}
		if m := rule.pattern.FindStringSubmatch(msg); m != nil {
			rule.apply(txn, m[1])
		}
	}

	if m := reQuickChip.FindStringSubmatch(msg); m != nil && !s.qcSeen {
		s.qcSeen = true
		txn.IsQuickChip = m[1] == "Y"
	}
	if reFallback.MatchString(msg) {
		txn.IsFallback = true
	}
}

// extractSendPayload runs the secondary extraction pass over an SE_SEND
// payload. Fields remain write-once against the per-entry extractors.
func (s *TransactionSegmenter) extractSendPayload(msg string) {
	txn := s.current

	if m := reSendAmount.FindStringSubmatch(msg); m != nil && txn.AmountCents == 0 {
		if v, err := strconv.Atoi(m[1]); err == nil {
			txn.AmountCents = v
		}
	}
	if m := reSendCashback.FindStringSubmatch(msg); m != nil && txn.CashbackCents == 0 {
		if v, err := strconv.Atoi(m[1]); err == nil {
			txn.CashbackCents = v
		}
	}
	if m := reSendCardType.FindStringSubmatch(msg); m != nil && txn.CardType == "" {
		if name, ok := cardTypeNames[m[1]]; ok {
			txn.CardType = name
		} else {
			txn.CardType = m[1]
		}
	}
	if m := reSendPAN.FindStringSubmatch(msg); m != nil && txn.PANLast4 == "" {
		txn.PANLast4 = m[1]
	}
	if m := reSendEntry.FindStringSubmatch(msg); m != nil && txn.EntryMethod == "" {
		txn.EntryMethod = m[1]
	}
	if m := reSendAID.FindStringSubmatch(msg); m != nil && txn.AID == "" {
		txn.AID = m[1]
	}
	if m := reSendLabel.FindStringSubmatch(msg); m != nil && txn.AppLabel == "" {
		txn.AppLabel = strings.TrimSpace(m[1])
	}
	if m := reSendTVR.FindStringSubmatch(msg); m != nil && txn.TVR == "" {
		txn.TVR = m[1]
	}
	if m := reSendCVM.FindStringSubmatch(msg); m != nil && txn.CVMResult == "" && m[1] != cvmPrePINPlaceholder {
		txn.CVMResult = m[1]
	}
	if m := reSendTACSeq.FindStringSubmatch(msg); m != nil && txn.TACSequence == "" {
		txn.TACSequence = strings.TrimSpace(m[1])
	}
}

// extractRecvPayload extracts decision fields from an SE_RECV payload. The
// host's verdict is authoritative and overwrites earlier channel echoes.
func (s *TransactionSegmenter) extractRecvPayload(msg string) {
	txn := s.current

	if m := reRecvRespCode.FindStringSubmatch(msg); m != nil {
		if code, ok := hostResponseOutcomes[m[1]]; ok {
			txn.ResponseCode = code
		}
	}
	if m := reRecvAuth.FindStringSubmatch(msg); m != nil {
		txn.AuthorizationNumber = strings.TrimSpace(m[1])
	}
	if m := reRecvHostResp.FindStringSubmatch(msg); m != nil {
		txn.HostResponseCode = m[1]
	}
}

// SegmentTransactions runs the segmenter over a full entry slice.
func SegmentTransactions(entries []*journal.Entry) []*Transaction {
	s := NewTransactionSegmenter()
	var out []*Transaction
	for _, e := range entries {
		if t := s.Process(e); t != nil {
			out = append(out, t)
		}
	}
	if t := s.Flush(); t != nil {
		out = append(out, t)
	}
	return out
}
