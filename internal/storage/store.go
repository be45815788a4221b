// Package storage persists analyzed journal data in an embedded SQLite
// database: one row per file with its extracted identity, batch-inserted
// entries, and the segmented events keyed by short random IDs.
package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/openeps/jrnlyzer/pkg/identity"
	"github.com/openeps/jrnlyzer/pkg/journal"
	"github.com/openeps/jrnlyzer/pkg/pipeline"
)

// Event type names used in the events table.
const (
	EventTransaction = "transaction"
	EventHealthCheck = "health_check"
	EventCascade     = "error_cascade"
)

// Store wraps the SQLite database.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{db: db, log: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// FileID derives the deterministic file identifier from path and size.
func FileID(md journal.FileMetadata) string {
	raw := fmt.Sprintf("%s:%d", md.FilePath, md.FileSize)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])[:16]
}

// Exists reports whether a file has already been ingested.
func (s *Store) Exists(ctx context.Context, fileID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM log_files WHERE file_id = ?`, fileID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteFile removes a file and all rows derived from it, so the file can
// be re-ingested.
func (s *Store) DeleteFile(ctx context.Context, fileID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning delete: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{
		"log_entries", "events", "transactions", "health_checks",
		"error_cascades", "scat_timeline", "log_files",
	} {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE file_id = ?", table), fileID); err != nil {
			return fmt.Errorf("deleting from %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// SaveResult writes a full analysis result in one database transaction and
// returns the file ID.
func (s *Store) SaveResult(ctx context.Context, r *pipeline.Result) (string, error) {
	fileID := FileID(r.Metadata)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning save: %w", err)
	}
	defer tx.Rollback()

	if err := insertFile(ctx, tx, fileID, r); err != nil {
		return "", err
	}
	if err := insertEntries(ctx, tx, fileID, r.Entries); err != nil {
		return "", err
	}
	if err := insertTransactions(ctx, tx, fileID, r); err != nil {
		return "", err
	}
	if err := insertHealthChecks(ctx, tx, fileID, r); err != nil {
		return "", err
	}
	if err := insertCascades(ctx, tx, fileID, r); err != nil {
		return "", err
	}
	if err := insertTimeline(ctx, tx, fileID, r); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing save: %w", err)
	}

	s.log.Info("file ingested",
		zap.String("file_id", fileID),
		zap.String("file", r.Metadata.FileName),
		zap.Int("entries", len(r.Entries)),
		zap.Int("transactions", len(r.Transactions)))
	return fileID, nil
}

func insertFile(ctx context.Context, tx *sql.Tx, fileID string, r *pipeline.Result) error {
	id := r.Identity
	if id == nil {
		id = identity.New()
	}
	var configJSON any
	if len(id.Config) > 0 {
		raw, err := json.Marshal(id.Config)
		if err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
		configJSON = string(raw)
	}
	source := id.UploadSource
	if source == "" {
		source = "local"
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO log_files
		    (file_id, file_path, file_name, lane, log_date, store_id,
		     line_count, byte_size, company_id, mtx_pos_version,
		     mtx_eps_version, seccode_version, pos_version, pinpad_model,
		     pinpad_serial, pinpad_firmware, config_json, upload_source,
		     sha256_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fileID, r.Metadata.FilePath, r.Metadata.FileName, r.Metadata.Lane,
		r.Metadata.LogDate, nullIfEmpty(id.StoreID), r.Metadata.LineCount,
		r.Metadata.FileSize, nullIfEmpty(id.CompanyID),
		nullIfEmpty(id.MTXPOSVersion), nullIfEmpty(id.MTXEPSVersion),
		nullIfEmpty(id.SecCodeVersion), nullIfEmpty(id.POSVersion),
		nullIfEmpty(id.PinpadModel), nullIfEmpty(id.PinpadSerial),
		nullIfEmpty(id.PinpadFirmware), configJSON, source,
		nullIfEmpty(id.SHA256Hash))
	if err != nil {
		return fmt.Errorf("inserting file record: %w", err)
	}
	return nil
}

func insertEntries(ctx context.Context, tx *sql.Tx, fileID string, entries []*journal.Entry) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO log_entries
		    (file_id, line_number, timestamp, category, message,
		     is_expanded, expansion_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing entry insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		count := e.ExpansionCount
		if count == 0 {
			count = 1
		}
		if _, err := stmt.ExecContext(ctx, fileID, e.LineNumber, e.Timestamp,
			string(e.Category), e.Message, e.IsExpanded, count); err != nil {
			return fmt.Errorf("inserting entry %d: %w", e.LineNumber, err)
		}
	}
	return nil
}

// insertEvent writes the common event row and returns its generated ID.
func insertEvent(ctx context.Context, tx *sql.Tx, eventType, fileID string, md journal.FileMetadata,
	startTime, endTime time.Time, startLine, endLine, lineCount int) (string, error) {

	eventID := uuid.New().String()[:12]
	durationMS := float64(endTime.Sub(startTime)) / float64(time.Millisecond)
	_, err := tx.ExecContext(ctx, `
		INSERT INTO events
		    (event_id, event_type, file_id, lane, log_date, start_time,
		     end_time, start_line, end_line, line_count, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		eventID, eventType, fileID, md.Lane, md.LogDate,
		startTime, endTime, startLine, endLine, lineCount, durationMS)
	if err != nil {
		return "", fmt.Errorf("inserting %s event: %w", eventType, err)
	}
	return eventID, nil
}

func insertTransactions(ctx context.Context, tx *sql.Tx, fileID string, r *pipeline.Result) error {
	for _, t := range r.Transactions {
		eventID, err := insertEvent(ctx, tx, EventTransaction, fileID, r.Metadata,
			t.StartTime, t.EndTime, t.StartLine, t.EndLine, t.EntryCount)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO transactions
			    (event_id, sequence_number, card_type, entry_method,
			     pan_last4, aid, app_label, tac_sequence, cvm_result,
			     response_code, host_response_code, authorization_number,
			     amount_cents, cashback_cents, host_url, host_latency_ms,
			     tvr, is_approved, is_quickchip, is_fallback,
			     serial_error_count)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			eventID, nullIfEmpty(t.SequenceNumber), nullIfEmpty(t.CardType),
			nullIfEmpty(t.EntryMethod), nullIfEmpty(t.PANLast4),
			nullIfEmpty(t.AID), nullIfEmpty(t.AppLabel),
			nullIfEmpty(t.TACSequence), nullIfEmpty(t.CVMResult),
			nullIfEmpty(t.ResponseCode), nullIfEmpty(t.HostResponseCode),
			nullIfEmpty(t.AuthorizationNumber), t.AmountCents,
			t.CashbackCents, nullIfEmpty(t.HostURL), t.HostLatencyMS,
			nullIfEmpty(t.TVR), t.Approved(), t.IsQuickChip, t.IsFallback,
			t.SerialErrorCount)
		if err != nil {
			return fmt.Errorf("inserting transaction at line %d: %w", t.StartLine, err)
		}
	}
	return nil
}

func insertHealthChecks(ctx context.Context, tx *sql.Tx, fileID string, r *pipeline.Result) error {
	for _, hc := range r.HealthChecks {
		eventID, err := insertEvent(ctx, tx, EventHealthCheck, fileID, r.Metadata,
			hc.StartTime, hc.EndTime, hc.StartLine, hc.EndLine, hc.EndLine-hc.StartLine+1)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO health_checks
			    (event_id, check_type, target_host, success, error_code,
			     http_status, latency_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			eventID, hc.CheckType, nullIfEmpty(hc.TargetHost), hc.Success,
			nullIfEmpty(hc.ErrorCode), nullIfEmpty(hc.HTTPStatus), hc.LatencyMS)
		if err != nil {
			return fmt.Errorf("inserting health check at line %d: %w", hc.StartLine, err)
		}
	}
	return nil
}

func insertCascades(ctx context.Context, tx *sql.Tx, fileID string, r *pipeline.Result) error {
	for _, c := range r.Cascades {
		eventID, err := insertEvent(ctx, tx, EventCascade, fileID, r.Metadata,
			c.StartTime, c.EndTime, c.StartLine, c.EndLine, c.ErrorCount)
		if err != nil {
			return err
		}
		pattern := c.ErrorPattern
		if pattern == "" {
			pattern = "Unknown"
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO error_cascades
			    (event_id, error_pattern, error_count, recovery_achieved,
			     recovery_time_ms)
			VALUES (?, ?, ?, ?, ?)`,
			eventID, pattern, c.ErrorCount, c.RecoveryAchieved, c.RecoveryTimeMS)
		if err != nil {
			return fmt.Errorf("inserting cascade at line %d: %w", c.StartLine, err)
		}
	}
	return nil
}

func insertTimeline(ctx context.Context, tx *sql.Tx, fileID string, r *pipeline.Result) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO scat_timeline (file_id, timestamp, alive_status)
		VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing timeline insert: %w", err)
	}
	defer stmt.Close()

	for _, tr := range r.Timeline {
		if _, err := stmt.ExecContext(ctx, fileID, tr.Timestamp, tr.Status); err != nil {
			return fmt.Errorf("inserting timeline sample: %w", err)
		}
	}
	return nil
}

// UpdateIdentity fills identity columns of an existing file record without
// overwriting values already present.
func (s *Store) UpdateIdentity(ctx context.Context, fileID string, id *identity.Identity) error {
	var configJSON any
	if len(id.Config) > 0 {
		raw, err := json.Marshal(id.Config)
		if err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
		configJSON = string(raw)
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE log_files SET
		    company_id      = COALESCE(company_id, ?),
		    store_id        = COALESCE(store_id, ?),
		    mtx_pos_version = COALESCE(mtx_pos_version, ?),
		    mtx_eps_version = COALESCE(mtx_eps_version, ?),
		    seccode_version = COALESCE(seccode_version, ?),
		    pos_version     = COALESCE(pos_version, ?),
		    pinpad_model    = COALESCE(pinpad_model, ?),
		    pinpad_serial   = COALESCE(pinpad_serial, ?),
		    pinpad_firmware = COALESCE(pinpad_firmware, ?),
		    config_json     = COALESCE(config_json, ?),
		    sha256_hash     = COALESCE(sha256_hash, ?)
		WHERE file_id = ?`,
		nullIfEmpty(id.CompanyID), nullIfEmpty(id.StoreID),
		nullIfEmpty(id.MTXPOSVersion), nullIfEmpty(id.MTXEPSVersion),
		nullIfEmpty(id.SecCodeVersion), nullIfEmpty(id.POSVersion),
		nullIfEmpty(id.PinpadModel), nullIfEmpty(id.PinpadSerial),
		nullIfEmpty(id.PinpadFirmware), configJSON,
		nullIfEmpty(id.SHA256Hash), fileID)
	if err != nil {
		return fmt.Errorf("updating identity for %s: %w", fileID, err)
	}
	return nil
}

// FileRecord is one row of the ingested-file inventory.
type FileRecord struct {
	FileID    string
	FileName  string
	Lane      string
	LogDate   string
	StoreID   string
	CompanyID string
	LineCount int
}

// ListFiles returns every ingested file, newest log date first.
func (s *Store) ListFiles(ctx context.Context) ([]FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT file_id, file_name, lane, log_date,
		       COALESCE(store_id, ''), COALESCE(company_id, ''),
		       COALESCE(line_count, 0)
		FROM log_files ORDER BY log_date DESC, lane`)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	defer rows.Close()

	var records []FileRecord
	for rows.Next() {
		var rec FileRecord
		if err := rows.Scan(&rec.FileID, &rec.FileName, &rec.Lane, &rec.LogDate,
			&rec.StoreID, &rec.CompanyID, &rec.LineCount); err != nil {
			return nil, fmt.Errorf("scanning file row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountEventsByType returns event counts grouped by type, for status output.
func (s *Store) CountEventsByType(ctx context.Context, fileID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_type, COUNT(*) FROM events WHERE file_id = ?
		GROUP BY event_type`, fileID)
	if err != nil {
		return nil, fmt.Errorf("counting events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var eventType string
		var n int
		if err := rows.Scan(&eventType, &n); err != nil {
			return nil, fmt.Errorf("scanning event count: %w", err)
		}
		counts[eventType] = n
	}
	return counts, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
