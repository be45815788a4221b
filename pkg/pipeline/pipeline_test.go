package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/openeps/jrnlyzer/pkg/diagnose"
)

const sampleJournal = `11/30/25 08:00:00.000 MTXPOS Loaded MTX_POS.dll 3.0.17.0
11/30/25 08:00:00.100 MTXPOS Register lane Aa=145714 Ab=123
11/30/25 08:00:01.000 SVREPS Login result = lrNothingNew
11/30/25 08:06:19.279 DLL-EX MTX_POS_BeginOrder
11/30/25 08:07:31.399 SVREPS SE_SEND(TimeOutSecs 30) [60 bytes] URL[https://trn2.servereps.com/sCAT2] Aa145714 Ab1 Ae9218 BnDB Da5000 Bp1234 BfE
11/30/25 08:07:33.149 SVREPS SE_RECV(1.743 secs) [250 bytes] Ae9218 Af00 Ag123456
11/30/25 08:08:40.447 DLL-EX MTX_POS_EndOrder
11/30/25 08:10:00.000 SERIAL ****ERROR: SendMsgWaitAck3Tries failed
11/30/25 08:10:01.000 SERIAL ****ERROR: SendMsgWaitAck3Tries failed
11/30/25 08:10:02.000 SERIAL ****ERROR: SendMsgWaitAck3Tries failed
11/30/25 08:10:30.000 MTXPOS SCATAliveInt = 0 (ReportScatDead)
11/30/25 08:15:00.000 MTXPOS SCATAliveInt = 3 (ReportScatAlive)
`

func writeJournal(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jrnl0002-20251130.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestRun_FullChain(t *testing.T) {
	path := writeJournal(t, sampleJournal)

	result, err := Run(context.Background(), path)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Metadata.Lane != "0002" {
		t.Errorf("Lane = %q, want 0002", result.Metadata.Lane)
	}
	if len(result.Entries) != 12 {
		t.Errorf("got %d entries, want 12", len(result.Entries))
	}

	if result.Identity == nil || result.Identity.SHA256Hash == "" {
		t.Fatal("identity missing or unhashed")
	}
	if result.Identity.CompanyID != "145714" {
		t.Errorf("CompanyID = %q, want 145714", result.Identity.CompanyID)
	}
	if result.Identity.MTXPOSVersion != "3.0.17.0" {
		t.Errorf("MTXPOSVersion = %q, want 3.0.17.0", result.Identity.MTXPOSVersion)
	}

	if len(result.Transactions) != 1 {
		t.Fatalf("got %d transactions, want 1", len(result.Transactions))
	}
	txn := result.Transactions[0]
	if !txn.Approved() || txn.CardType != "Debit" || txn.AmountCents != 5000 {
		t.Errorf("transaction = %+v", txn)
	}

	if len(result.Cascades) != 1 {
		t.Fatalf("got %d cascades, want 1", len(result.Cascades))
	}
	if result.Cascades[0].ErrorCount != 3 {
		t.Errorf("cascade ErrorCount = %d, want 3", result.Cascades[0].ErrorCount)
	}

	if len(result.HealthChecks) != 1 {
		t.Fatalf("got %d health checks, want 1", len(result.HealthChecks))
	}
	if !result.HealthChecks[0].Success {
		t.Error("login health check not successful")
	}

	if len(result.Timeline) != 2 {
		t.Errorf("got %d alive transitions, want 2", len(result.Timeline))
	}
}

func TestRun_DiagnoseFindings(t *testing.T) {
	path := writeJournal(t, sampleJournal)

	result, err := Run(context.Background(), path)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	issues := Diagnose(result, diagnose.Window{})

	// The dead period is 4.5 minutes, the ACK cluster has three members,
	// and the cascade reaches the reporting threshold.
	types := make(map[string]int)
	for _, is := range issues {
		types[is.Type]++
	}
	if types[diagnose.IssueScatDead] != 1 {
		t.Errorf("scat_dead issues = %d, want 1", types[diagnose.IssueScatDead])
	}
	if types[diagnose.IssueSerialCommFailure] != 2 {
		t.Errorf("serial_comm_failure issues = %d, want 2 (cluster + cascade)", types[diagnose.IssueSerialCommFailure])
	}
}

func TestRun_MissingFile(t *testing.T) {
	_, err := Run(context.Background(), filepath.Join(t.TempDir(), "absent.txt"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRun_RepeatExpansion(t *testing.T) {
	content := "11/30/25 08:00:00.000 SERIAL polling\n" +
		"  (Above Line Repeated 4 Times)\n"
	path := writeJournal(t, content)

	result, err := Run(context.Background(), path)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Entries) != 5 {
		t.Errorf("got %d entries, want 5 (1 + 4 expanded)", len(result.Entries))
	}

	result, err = Run(context.Background(), path, WithoutExpansion())
	if err != nil {
		t.Fatalf("Run without expansion: %v", err)
	}
	if len(result.Entries) != 1 {
		t.Errorf("got %d entries, want 1 without expansion", len(result.Entries))
	}
}
