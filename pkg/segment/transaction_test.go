package segment

import (
	"testing"
	"time"

	"github.com/openeps/jrnlyzer/pkg/journal"
)

func entryAt(t *testing.T, line int, raw string) *journal.Entry {
	t.Helper()
	p := journal.NewParser("jrnl0002.txt")
	e, _ := p.ParseLine(raw, line)
	if e == nil {
		t.Fatalf("fixture line did not parse: %q", raw)
	}
	return e
}

func segmentLines(t *testing.T, lines []string) []*Transaction {
	t.Helper()
	entries := make([]*journal.Entry, 0, len(lines))
	for i, l := range lines {
		entries = append(entries, entryAt(t, i+1, l))
	}
	return SegmentTransactions(entries)
}

func TestTransactionSegmenter_FullCycle(t *testing.T) {
	lines := []string{
		"11/30/25 08:06:19.279 DLL-EX MTX_POS_BeginOrder",
		"11/30/25 08:07:31.399 SVREPS SE_SEND(TimeOutSecs 30) [60 bytes] URL[https://trn2.servereps.com/sCAT2] Aa145714 Ab1 Ae9218 BnDB Da5000 Bp1234 BfE",
		"11/30/25 08:07:33.149 SVREPS SE_RECV(1.743 secs) [250 bytes] Ae9218 Af00 Ag123456",
		"11/30/25 08:08:40.447 DLL-EX MTX_POS_EndOrder",
	}

	txns := segmentLines(t, lines)
	if len(txns) != 1 {
		t.Fatalf("got %d transactions, want 1", len(txns))
	}
	txn := txns[0]

	if txn.CardType != "Debit" {
		t.Errorf("CardType = %q, want Debit", txn.CardType)
	}
	if txn.AmountCents != 5000 {
		t.Errorf("AmountCents = %d, want 5000", txn.AmountCents)
	}
	if txn.PANLast4 != "1234" {
		t.Errorf("PANLast4 = %q, want 1234", txn.PANLast4)
	}
	if txn.EntryMethod != "E" {
		t.Errorf("EntryMethod = %q, want E", txn.EntryMethod)
	}
	if txn.ResponseCode != "AA" {
		t.Errorf("ResponseCode = %q, want AA", txn.ResponseCode)
	}
	if !txn.Approved() {
		t.Error("Approved() = false, want true")
	}
	if txn.HostLatencyMS != 1743.0 {
		t.Errorf("HostLatencyMS = %v, want 1743.0", txn.HostLatencyMS)
	}
	if txn.HostURL != "https://trn2.servereps.com/sCAT2" {
		t.Errorf("HostURL = %q", txn.HostURL)
	}
	if txn.SequenceNumber != "9218" {
		t.Errorf("SequenceNumber = %q, want 9218", txn.SequenceNumber)
	}
	if txn.AuthorizationNumber != "123456" {
		t.Errorf("AuthorizationNumber = %q, want 123456", txn.AuthorizationNumber)
	}
	if txn.StartLine != 1 || txn.EndLine != 4 {
		t.Errorf("boundary lines = %d..%d, want 1..4", txn.StartLine, txn.EndLine)
	}
}

func TestTransactionSegmenter_DeclinedHostCodes(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"00", "AA"},
		{"05", "DD"},
		{"14", "DD"},
		{"51", "DD"},
		{"91", ""}, // unmapped code leaves response unset
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			lines := []string{
				"11/30/25 08:00:00.000 DLL-EX MTX_POS_BeginOrder",
				"11/30/25 08:00:02.000 SVREPS SE_RECV(0.500 secs) Ae1 Af" + tt.code,
				"11/30/25 08:00:03.000 DLL-EX MTX_POS_EndOrder",
			}
			txns := segmentLines(t, lines)
			if len(txns) != 1 {
				t.Fatalf("got %d transactions, want 1", len(txns))
			}
			if txns[0].ResponseCode != tt.want {
				t.Errorf("ResponseCode = %q, want %q", txns[0].ResponseCode, tt.want)
			}
		})
	}
}

func TestTransactionSegmenter_BeginForcesClose(t *testing.T) {
	lines := []string{
		"11/30/25 08:00:00.000 DLL-EX MTX_POS_BeginOrder",
		"11/30/25 08:00:01.000 TCP/IP ResponseCode = AA",
		"11/30/25 08:05:00.000 DLL-EX MTX_POS_BeginOrder",
		"11/30/25 08:06:00.000 DLL-EX MTX_POS_EndOrder",
	}

	txns := segmentLines(t, lines)
	if len(txns) != 2 {
		t.Fatalf("got %d transactions, want 2", len(txns))
	}
	// The first is force-closed at the second BeginOrder's position.
	if txns[0].EndLine != 3 {
		t.Errorf("first transaction EndLine = %d, want 3", txns[0].EndLine)
	}
	if txns[0].ResponseCode != "AA" {
		t.Errorf("first transaction ResponseCode = %q, want AA", txns[0].ResponseCode)
	}
	if txns[1].StartLine != 3 || txns[1].EndLine != 4 {
		t.Errorf("second transaction = %d..%d, want 3..4", txns[1].StartLine, txns[1].EndLine)
	}
}

func TestTransactionSegmenter_ResetClearEndNeedsResponse(t *testing.T) {
	// Without a response code, Reset_Clear END must not close the window.
	lines := []string{
		"11/30/25 08:00:00.000 DLL-EX MTX_POS_BeginOrder",
		"11/30/25 08:00:05.000 DLL-EX Reset_Clear END",
		"11/30/25 08:00:10.000 TCP/IP ResponseCode = DD",
		"11/30/25 08:00:12.000 DLL-EX Reset_Clear END",
	}

	txns := segmentLines(t, lines)
	if len(txns) != 1 {
		t.Fatalf("got %d transactions, want 1", len(txns))
	}
	if txns[0].EndLine != 4 {
		t.Errorf("EndLine = %d, want 4 (second Reset_Clear END)", txns[0].EndLine)
	}
	if txns[0].ResponseCode != "DD" {
		t.Errorf("ResponseCode = %q, want DD", txns[0].ResponseCode)
	}
}

func TestTransactionSegmenter_SoftStartOnTenderType(t *testing.T) {
	lines := []string{
		"11/30/25 08:00:00.000 DLL-EX MTX_POS_SET_TenderTypePOS = 1 In",
		"11/30/25 08:00:05.000 DLL-EX MTX_POS_EndOrder",
	}

	txns := segmentLines(t, lines)
	if len(txns) != 1 {
		t.Fatalf("got %d transactions, want 1", len(txns))
	}
	if txns[0].StartLine != 1 {
		t.Errorf("StartLine = %d, want 1", txns[0].StartLine)
	}
}

func TestTransactionSegmenter_CardTypeWriteOnce(t *testing.T) {
	// The SE_SEND payload code writer runs first here; the later tender
	// name writer must not overwrite.
	lines := []string{
		"11/30/25 08:00:00.000 DLL-EX MTX_POS_BeginOrder",
		"11/30/25 08:00:01.000 SVREPS SE_SEND(TimeOutSecs 30) URL[https://trn1.servereps.com/sCAT2] Ae1 BnDB",
		"11/30/25 08:00:02.000 DLL-EX TenderTypeMTXi = 2 <Credit>",
		"11/30/25 08:00:03.000 DLL-EX MTX_POS_EndOrder",
	}
	txns := segmentLines(t, lines)
	if len(txns) != 1 {
		t.Fatalf("got %d transactions, want 1", len(txns))
	}
	if txns[0].CardType != "Debit" {
		t.Errorf("CardType = %q, want Debit (first writer wins)", txns[0].CardType)
	}

	// Reversed encounter order: the tender name writer runs first.
	lines = []string{
		"11/30/25 08:00:00.000 DLL-EX MTX_POS_BeginOrder",
		"11/30/25 08:00:01.000 DLL-EX TenderTypeMTXi = 2 <Credit>",
		"11/30/25 08:00:02.000 SVREPS SE_SEND(TimeOutSecs 30) URL[https://trn1.servereps.com/sCAT2] Ae1 BnDB",
		"11/30/25 08:00:03.000 DLL-EX MTX_POS_EndOrder",
	}
	txns = segmentLines(t, lines)
	if len(txns) != 1 {
		t.Fatalf("got %d transactions, want 1", len(txns))
	}
	if txns[0].CardType != "Credit" {
		t.Errorf("CardType = %q, want Credit (first writer wins)", txns[0].CardType)
	}
}

func TestTransactionSegmenter_CVMRejectsPrePINPlaceholder(t *testing.T) {
	lines := []string{
		"11/30/25 08:00:00.000 DLL-EX MTX_POS_BeginOrder",
		"11/30/25 08:00:01.000 DLL-EX CVMR >3F0000<",
		"11/30/25 08:00:02.000 DLL-EX CVMR >410302<",
		"11/30/25 08:00:03.000 DLL-EX MTX_POS_EndOrder",
	}
	txns := segmentLines(t, lines)
	if len(txns) != 1 {
		t.Fatalf("got %d transactions, want 1", len(txns))
	}
	if txns[0].CVMResult != "410302" {
		t.Errorf("CVMResult = %q, want 410302", txns[0].CVMResult)
	}
}

func TestTransactionSegmenter_SerialErrorsAndStates(t *testing.T) {
	lines := []string{
		"11/30/25 08:00:00.000 DLL-EX MTX_POS_BeginOrder",
		"11/30/25 08:00:01.000 SERIAL ****ERROR: SendMsgWaitAck3Tries failed",
		"11/30/25 08:00:02.000 SERIAL ****ERROR: SendMsgWaitAck3Tries failed",
		"11/30/25 08:00:03.000 MTXPOS >>>>>>SCATState = StateReset           - was StateNone",
		"11/30/25 08:00:04.000 DLL-EX MTX_POS_EndOrder",
	}
	txns := segmentLines(t, lines)
	if len(txns) != 1 {
		t.Fatalf("got %d transactions, want 1", len(txns))
	}
	if txns[0].SerialErrorCount != 2 {
		t.Errorf("SerialErrorCount = %d, want 2", txns[0].SerialErrorCount)
	}
	if len(txns[0].StateSequence) != 1 || txns[0].StateSequence[0] != "StateReset" {
		t.Errorf("StateSequence = %v, want [StateReset]", txns[0].StateSequence)
	}
}

func TestTransactionSegmenter_FlushOpenTransaction(t *testing.T) {
	lines := []string{
		"11/30/25 08:00:00.000 DLL-EX MTX_POS_BeginOrder",
		"11/30/25 08:00:30.000 TCP/IP CardEntryType = E",
	}
	txns := segmentLines(t, lines)
	if len(txns) != 1 {
		t.Fatalf("got %d transactions, want 1 (flushed)", len(txns))
	}
	if txns[0].EndLine != 2 {
		t.Errorf("EndLine = %d, want 2 (last observed entry)", txns[0].EndLine)
	}
	want := time.Date(2025, 11, 30, 8, 0, 30, 0, time.UTC)
	if !txns[0].EndTime.Equal(want) {
		t.Errorf("EndTime = %v, want %v", txns[0].EndTime, want)
	}
}

func TestTransactionSegmenter_NoStartNoOutput(t *testing.T) {
	lines := []string{
		"11/30/25 08:00:00.000 TCP/IP ResponseCode = AA",
		"11/30/25 08:00:01.000 SVREPS Login result = lrNothingNew",
	}
	if txns := segmentLines(t, lines); len(txns) != 0 {
		t.Fatalf("got %d transactions, want 0", len(txns))
	}
}
