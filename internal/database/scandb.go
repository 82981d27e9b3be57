package database

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/vfs19/edlscan/internal/model"
)

// ErrSessionNotFound is returned when a session ID does not exist.
var ErrSessionNotFound = errors.New("scan session not found")

// ScanDB provides SQLite-based storage for scan sessions.
//
// Design decision: one database file for all sessions rather than one
// per scan. Comparison queries join across sessions, and a single file
// keeps backup/restore trivial.
type ScanDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures ScanDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so an external reader can
	// inspect history while a scan session is being written.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a ScanDB in the given directory.
func Open(dbDir string, opts Options) (*ScanDB, error) {
	dbPath := filepath.Join(dbDir, "edlscan.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite: mode=rw prevents creating new files,
	// mode=rwc allows creation.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports a single writer; don't pretend otherwise.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	sdb := &ScanDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := sdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return sdb, nil
}

// Close closes the database connection.
func (sdb *ScanDB) Close() error {
	return sdb.db.Close()
}

// createTables creates the schema if it doesn't exist.
func (sdb *ScanDB) createTables() error {
	schema := `
	-- One row per completed (or interrupted) memory scan
	CREATE TABLE IF NOT EXISTS scan_sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		start_addr INTEGER NOT NULL,
		end_addr INTEGER NOT NULL,
		step INTEGER NOT NULL,
		date_scanned DATETIME NOT NULL,
		elapsed_ms INTEGER NOT NULL,
		reads_attempted INTEGER NOT NULL,
		error_count INTEGER NOT NULL,
		nonzero_count INTEGER NOT NULL,
		cancelled INTEGER NOT NULL DEFAULT 0,
		aborted INTEGER NOT NULL DEFAULT 0,
		abort_reason TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_date ON scan_sessions(date_scanned);
	CREATE INDEX IF NOT EXISTS idx_sessions_range ON scan_sessions(start_addr, end_addr);

	-- Non-zero words discovered during a session
	CREATE TABLE IF NOT EXISTS discoveries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id INTEGER NOT NULL REFERENCES scan_sessions(id),
		address INTEGER NOT NULL,
		value_hex TEXT NOT NULL,
		UNIQUE(session_id, address)
	);

	CREATE INDEX IF NOT EXISTS idx_discoveries_session ON discoveries(session_id);
	CREATE INDEX IF NOT EXISTS idx_discoveries_address ON discoveries(address);

	-- Regions the recovery policy abandoned during a session
	CREATE TABLE IF NOT EXISTS skip_regions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id INTEGER NOT NULL REFERENCES scan_sessions(id),
		start_addr INTEGER NOT NULL,
		end_addr INTEGER NOT NULL,
		reason TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_skips_session ON skip_regions(session_id);
	`

	_, err := sdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveScanReport persists one scan session with its discoveries and
// skip regions, returning the new session ID. The write is a single
// transaction: history never contains a half-saved session.
func (sdb *ScanDB) SaveScanReport(ctx context.Context, report *model.ScanReport) (int64, error) {
	tx, err := sdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op

	res, err := tx.ExecContext(ctx, `
		INSERT INTO scan_sessions
		(start_addr, end_addr, step, date_scanned, elapsed_ms,
		 reads_attempted, error_count, nonzero_count, cancelled, aborted, abort_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.StartAddr, report.EndAddr, report.Step,
		report.DateScanned, report.Elapsed.Milliseconds(),
		report.ReadsAttempted, report.ErrorCount, report.NonZeroCount(),
		boolToInt(report.Cancelled), boolToInt(report.Aborted), report.AbortReason,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert session: %w", err)
	}

	sessionID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get session ID: %w", err)
	}

	for _, d := range report.Discoveries {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO discoveries (session_id, address, value_hex)
			VALUES (?, ?, ?)`,
			sessionID, d.Address, hex.EncodeToString(d.Value),
		); err != nil {
			return 0, fmt.Errorf("failed to insert discovery: %w", err)
		}
	}

	for _, s := range report.SkipRegions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO skip_regions (session_id, start_addr, end_addr, reason)
			VALUES (?, ?, ?, ?)`,
			sessionID, s.Start, s.End, s.Reason,
		); err != nil {
			return 0, fmt.Errorf("failed to insert skip region: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit session: %w", err)
	}
	return sessionID, nil
}

// SessionSummary is one row of scan history.
type SessionSummary struct {
	ID             int64
	StartAddr      uint32
	EndAddr        uint32
	Step           uint32
	DateScanned    time.Time
	Elapsed        time.Duration
	ReadsAttempted int
	ErrorCount     int
	NonZeroCount   int
	Cancelled      bool
	Aborted        bool
	AbortReason    string
}

// ListSessions returns all sessions, newest first.
func (sdb *ScanDB) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := sdb.db.QueryContext(ctx, `
		SELECT id, start_addr, end_addr, step, date_scanned, elapsed_ms,
		       reads_attempted, error_count, nonzero_count, cancelled, aborted,
		       COALESCE(abort_reason, '')
		FROM scan_sessions
		ORDER BY date_scanned DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []SessionSummary
	for rows.Next() {
		var s SessionSummary
		var elapsedMS int64
		var cancelled, aborted int
		if err := rows.Scan(&s.ID, &s.StartAddr, &s.EndAddr, &s.Step,
			&s.DateScanned, &elapsedMS, &s.ReadsAttempted, &s.ErrorCount,
			&s.NonZeroCount, &cancelled, &aborted, &s.AbortReason); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		s.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		s.Cancelled = cancelled != 0
		s.Aborted = aborted != 0
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// GetSession returns one session summary by ID.
func (sdb *ScanDB) GetSession(ctx context.Context, id int64) (*SessionSummary, error) {
	row := sdb.db.QueryRowContext(ctx, `
		SELECT id, start_addr, end_addr, step, date_scanned, elapsed_ms,
		       reads_attempted, error_count, nonzero_count, cancelled, aborted,
		       COALESCE(abort_reason, '')
		FROM scan_sessions WHERE id = ?`, id)

	var s SessionSummary
	var elapsedMS int64
	var cancelled, aborted int
	err := row.Scan(&s.ID, &s.StartAddr, &s.EndAddr, &s.Step,
		&s.DateScanned, &elapsedMS, &s.ReadsAttempted, &s.ErrorCount,
		&s.NonZeroCount, &cancelled, &aborted, &s.AbortReason)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	s.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	s.Cancelled = cancelled != 0
	s.Aborted = aborted != 0
	return &s, nil
}

// GetDiscoveries returns every discovery of a session, in address order.
func (sdb *ScanDB) GetDiscoveries(ctx context.Context, sessionID int64) ([]model.Discovery, error) {
	rows, err := sdb.db.QueryContext(ctx, `
		SELECT address, value_hex FROM discoveries
		WHERE session_id = ? ORDER BY address`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query discoveries: %w", err)
	}
	defer rows.Close()

	var out []model.Discovery
	for rows.Next() {
		var addr uint32
		var valueHex string
		if err := rows.Scan(&addr, &valueHex); err != nil {
			return nil, fmt.Errorf("failed to scan discovery row: %w", err)
		}
		value, err := hex.DecodeString(valueHex)
		if err != nil {
			return nil, fmt.Errorf("corrupt discovery value for 0x%08x: %w", addr, err)
		}
		out = append(out, model.Discovery{Address: addr, Value: value})
	}
	return out, rows.Err()
}

// boolToInt maps a bool onto SQLite's integer representation.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
