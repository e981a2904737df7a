package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// InitDB opens or creates the SQLite file at path and applies the schema.
// ":memory:" is accepted for tests and previews.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// One connection: every pragma below is per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set PRAGMA journal_mode=WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set PRAGMA foreign_keys=ON: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set PRAGMA busy_timeout=5000: %w", err)
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

const sqliteDriverName = "sqlite"

const schemaProfiles = `
CREATE TABLE IF NOT EXISTS profiles (
    id INTEGER PRIMARY KEY CHECK (id BETWEEN 0 AND 9),
    description TEXT NOT NULL,
    flags INTEGER NOT NULL DEFAULT 0,
    liquidus_c REAL NOT NULL DEFAULT 0,
    ramp1_slope REAL NOT NULL,
    soak_temp1_c REAL NOT NULL,
    soak_temp2_c REAL NOT NULL,
    soak_time_s INTEGER NOT NULL,
    ramp2_slope REAL NOT NULL,
    peak_temp_c REAL NOT NULL,
    peak_dwell_s INTEGER NOT NULL,
    ramp_down_slope REAL NOT NULL
);
`

const schemaRuns = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    profile_id INTEGER NOT NULL,
    profile_name TEXT NOT NULL,
    ambient_c REAL NOT NULL,
    outcome TEXT NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    points INTEGER NOT NULL,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP NOT NULL
);
`

const schemaDataPoints = `
CREATE TABLE IF NOT EXISTS data_points (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    t INTEGER NOT NULL,
    state TEXT NOT NULL,
    heater INTEGER NOT NULL,
    fan INTEGER NOT NULL,
    target_c REAL NOT NULL,
    channels TEXT NOT NULL,
    PRIMARY KEY (run_id, t)
);
`

const schemaOvenState = `
CREATE TABLE IF NOT EXISTS oven_state (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    session TEXT NOT NULL,
    state TEXT NOT NULL,
    time_s INTEGER NOT NULL,
    profile_id INTEGER NOT NULL,
    setpoint_c REAL NOT NULL,
    actual_c REAL,
    heater INTEGER NOT NULL,
    fan INTEGER NOT NULL,
    channels TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaOvenEvents = `
CREATE TABLE IF NOT EXISTS oven_events (
    id TEXT PRIMARY KEY,
    occurred_at TIMESTAMP NOT NULL,
    type TEXT NOT NULL,
    message TEXT NOT NULL,
    meta TEXT
);
CREATE INDEX IF NOT EXISTS oven_events_occurred_at ON oven_events (occurred_at);
`

const schemaUsers = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

func ensureSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range []string{
		schemaProfiles,
		schemaRuns,
		schemaDataPoints,
		schemaOvenState,
		schemaOvenEvents,
		schemaUsers,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}
