package storage

// schemaDDL creates every table on open. All statements are idempotent.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS log_files (
    file_id          TEXT PRIMARY KEY,
    file_path        TEXT NOT NULL,
    file_name        TEXT NOT NULL,
    lane             TEXT NOT NULL,
    log_date         TEXT NOT NULL,
    store_id         TEXT,
    line_count       INTEGER,
    byte_size        INTEGER,
    ingested_at      TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    company_id       TEXT,
    mtx_pos_version  TEXT,
    mtx_eps_version  TEXT,
    seccode_version  TEXT,
    pos_version      TEXT,
    pinpad_model     TEXT,
    pinpad_serial    TEXT,
    pinpad_firmware  TEXT,
    config_json      TEXT,
    upload_source    TEXT DEFAULT 'local',
    sha256_hash      TEXT
);

CREATE TABLE IF NOT EXISTS log_entries (
    entry_id        INTEGER PRIMARY KEY AUTOINCREMENT,
    file_id         TEXT NOT NULL REFERENCES log_files(file_id),
    line_number     INTEGER NOT NULL,
    timestamp       TIMESTAMP NOT NULL,
    category        TEXT NOT NULL,
    message         TEXT NOT NULL,
    is_expanded     BOOLEAN DEFAULT FALSE,
    expansion_count INTEGER DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_entries_file ON log_entries(file_id, line_number);

CREATE TABLE IF NOT EXISTS events (
    event_id    TEXT PRIMARY KEY,
    event_type  TEXT NOT NULL,
    file_id     TEXT REFERENCES log_files(file_id),
    lane        TEXT NOT NULL,
    log_date    TEXT NOT NULL,
    start_time  TIMESTAMP NOT NULL,
    end_time    TIMESTAMP NOT NULL,
    start_line  INTEGER NOT NULL,
    end_line    INTEGER NOT NULL,
    line_count  INTEGER NOT NULL,
    duration_ms REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_file ON events(file_id, event_type);

CREATE TABLE IF NOT EXISTS transactions (
    event_id             TEXT PRIMARY KEY REFERENCES events(event_id),
    sequence_number      TEXT,
    card_type            TEXT,
    entry_method         TEXT,
    pan_last4            TEXT,
    aid                  TEXT,
    app_label            TEXT,
    tac_sequence         TEXT,
    cvm_result           TEXT,
    response_code        TEXT,
    host_response_code   TEXT,
    authorization_number TEXT,
    amount_cents         INTEGER,
    cashback_cents       INTEGER,
    host_url             TEXT,
    host_latency_ms      REAL,
    tvr                  TEXT,
    is_approved          BOOLEAN,
    is_quickchip         BOOLEAN,
    is_fallback          BOOLEAN,
    serial_error_count   INTEGER
);

CREATE TABLE IF NOT EXISTS health_checks (
    event_id    TEXT PRIMARY KEY REFERENCES events(event_id),
    check_type  TEXT NOT NULL,
    target_host TEXT,
    success     BOOLEAN,
    error_code  TEXT,
    http_status TEXT,
    latency_ms  REAL
);

CREATE TABLE IF NOT EXISTS error_cascades (
    event_id          TEXT PRIMARY KEY REFERENCES events(event_id),
    error_pattern     TEXT NOT NULL,
    error_count       INTEGER,
    recovery_achieved BOOLEAN,
    recovery_time_ms  REAL
);

CREATE TABLE IF NOT EXISTS scat_timeline (
    file_id      TEXT REFERENCES log_files(file_id),
    timestamp    TIMESTAMP NOT NULL,
    alive_status INTEGER NOT NULL,
    PRIMARY KEY (file_id, timestamp)
);
`
