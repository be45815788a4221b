package test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/openeps/jrnlyzer/internal/storage"
	"github.com/openeps/jrnlyzer/pkg/config"
	"github.com/openeps/jrnlyzer/pkg/diagnose"
	"github.com/openeps/jrnlyzer/pkg/output"
	"github.com/openeps/jrnlyzer/pkg/pipeline"
)

const journalFixture = "testdata/jrnl0002-20251130.txt"

// requireFile fails the test if the required test file doesn't exist.
// We never skip tests - missing test data is a test failure.
func requireFile(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatalf("Required test file not found: %s", path)
	}
}

// TestE2E_FullAnalysis runs the complete pipeline on a representative
// journal: identity extraction, repeat expansion, transaction and health
// segmentation, cascade detection, liveness tracking, and diagnosis.
func TestE2E_FullAnalysis(t *testing.T) {
	requireFile(t, journalFixture)
	ctx := context.Background()

	result, err := pipeline.Run(ctx, journalFixture)
	if err != nil {
		t.Fatalf("pipeline.Run: %v", err)
	}

	if result.Metadata.Lane != "0002" {
		t.Errorf("Lane = %q, want 0002", result.Metadata.Lane)
	}
	if result.Metadata.LogDate != "2025-11-30" {
		t.Errorf("LogDate = %q, want 2025-11-30", result.Metadata.LogDate)
	}

	// 31 journal lines plus 2 copies from the repeat marker.
	if len(result.Entries) != 33 {
		t.Errorf("got %d entries, want 33", len(result.Entries))
	}

	id := result.Identity
	if id == nil {
		t.Fatal("no identity extracted")
	}
	if id.CompanyID != "145714" || id.StoreID != "123" {
		t.Errorf("site = %s/%s, want 145714/123", id.CompanyID, id.StoreID)
	}
	if id.MTXPOSVersion != "3.0.17.0" || id.MTXEPSVersion != "5.3.0.8" {
		t.Errorf("versions = %s/%s", id.MTXPOSVersion, id.MTXEPSVersion)
	}
	if id.PinpadModel != "M400" {
		t.Errorf("PinpadModel = %q, want M400", id.PinpadModel)
	}
	if id.PinpadSerial != "285-351-118" {
		t.Errorf("PinpadSerial = %q, want 285-351-118", id.PinpadSerial)
	}
	if id.Config["EndOrderIntervalMsg"] != "300" {
		t.Errorf("EndOrderIntervalMsg = %q, want 300", id.Config["EndOrderIntervalMsg"])
	}

	if len(result.Transactions) != 4 {
		t.Fatalf("got %d transactions, want 4", len(result.Transactions))
	}
	if !result.Transactions[0].Approved() {
		t.Error("first transaction should be approved")
	}
	for i, txn := range result.Transactions[1:] {
		if txn.Approved() || txn.ResponseCode != "DD" {
			t.Errorf("transaction %d: Approved()=%v ResponseCode=%q, want declined DD",
				i+1, txn.Approved(), txn.ResponseCode)
		}
	}

	if len(result.HealthChecks) != 2 {
		t.Errorf("got %d health checks, want 2 (login + exchange)", len(result.HealthChecks))
	}
	if len(result.Cascades) != 1 || result.Cascades[0].ErrorCount != 3 {
		t.Errorf("cascades = %+v, want one cascade of 3 errors", result.Cascades)
	}
}

// TestE2E_Diagnosis checks that the known problems planted in the fixture
// are all diagnosed.
func TestE2E_Diagnosis(t *testing.T) {
	requireFile(t, journalFixture)

	result, err := pipeline.Run(context.Background(), journalFixture)
	if err != nil {
		t.Fatalf("pipeline.Run: %v", err)
	}
	issues := pipeline.Diagnose(result, diagnose.Window{})

	found := make(map[string]bool)
	for _, issue := range issues {
		found[issue.Type] = true
	}
	for _, want := range []string{
		diagnose.IssueScatDead,
		diagnose.IssueSerialCommFailure,
		diagnose.IssueRepeatedDecline,
	} {
		if !found[want] {
			t.Errorf("issue %s not diagnosed; got %v", want, issues)
		}
	}

	// Narrowing the window to before any events suppresses everything.
	early := diagnose.Window{
		Start: time.Date(2025, 11, 29, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 11, 29, 23, 0, 0, 0, time.UTC),
	}
	if got := pipeline.Diagnose(result, early); len(got) != 0 {
		t.Errorf("expected no issues in early window, got %v", got)
	}
}

// TestE2E_ReportFormats renders the same report through every formatter.
func TestE2E_ReportFormats(t *testing.T) {
	requireFile(t, journalFixture)
	ctx := context.Background()

	result, err := pipeline.Run(ctx, journalFixture)
	if err != nil {
		t.Fatalf("pipeline.Run: %v", err)
	}
	issues := pipeline.Diagnose(result, diagnose.Window{})
	report := output.NewReport(result, issues, diagnose.Window{}, time.Now())

	if !report.HasIssues() {
		t.Fatal("fixture should produce issues")
	}
	if report.Summary.Transactions != 4 || report.Summary.Declined != 3 {
		t.Errorf("summary = %+v", report.Summary)
	}

	var text bytes.Buffer
	f := output.New("text", output.FormatOptions{NoColor: true})
	if err := f.Format(ctx, report, &text); err != nil {
		t.Fatalf("text format: %v", err)
	}
	if !strings.Contains(text.String(), "scat_dead") {
		t.Errorf("text report missing scat_dead:\n%s", text.String())
	}

	var buf bytes.Buffer
	f = output.New("json", output.FormatOptions{})
	if err := f.Format(ctx, report, &buf); err != nil {
		t.Fatalf("json format: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("json output does not parse: %v", err)
	}
	if _, ok := decoded["issues"]; !ok {
		t.Error("json report missing issues key")
	}
}

// TestE2E_IngestToDatabase persists a full analysis and reads it back.
func TestE2E_IngestToDatabase(t *testing.T) {
	requireFile(t, journalFixture)
	ctx := context.Background()

	result, err := pipeline.Run(ctx, journalFixture)
	if err != nil {
		t.Fatalf("pipeline.Run: %v", err)
	}

	store, err := storage.Open(filepath.Join(t.TempDir(), "e2e.db"), nil)
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	defer store.Close()

	fileID, err := store.SaveResult(ctx, result)
	if err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	exists, err := store.Exists(ctx, fileID)
	if err != nil || !exists {
		t.Fatalf("Exists(%s) = %v, %v, want true", fileID, exists, err)
	}

	files, err := store.ListFiles(ctx)
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 1 || files[0].Lane != "0002" {
		t.Fatalf("files = %+v, want one lane-0002 record", files)
	}

	counts, err := store.CountEventsByType(ctx, fileID)
	if err != nil {
		t.Fatalf("CountEventsByType: %v", err)
	}
	if counts[storage.EventTransaction] != 4 {
		t.Errorf("transaction events = %d, want 4", counts[storage.EventTransaction])
	}
	if counts[storage.EventCascade] != 1 {
		t.Errorf("cascade events = %d, want 1", counts[storage.EventCascade])
	}
}

// TestE2E_ConfigFile loads the checked-in config fixture.
func TestE2E_ConfigFile(t *testing.T) {
	requireFile(t, "testdata/jrnlyzer.yaml")

	cfg, err := config.Load("testdata/jrnlyzer.yaml")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	if cfg.DatabasePath != "e2e.db" {
		t.Errorf("DatabasePath = %q, want e2e.db", cfg.DatabasePath)
	}
	if cfg.Analysis.CascadeMaxGap != 5*time.Second {
		t.Errorf("CascadeMaxGap = %v, want 5s", cfg.Analysis.CascadeMaxGap)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
}
