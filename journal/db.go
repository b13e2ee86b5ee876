// Package journal keeps a local SQLite record of the calls the bridge has
// completed so they can be listed from the CLI or over MCP.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"extsock/bridge"

	_ "modernc.org/sqlite"
)

const (
	// DBFileName is used when no path is configured.
	DBFileName = "extsock.db"

	// DefaultListLimit caps List when no limit is given.
	DefaultListLimit = 50

	timeLayout = "2006-01-02 15:04:05"
)

// Entry is one row of the call journal.
type Entry struct {
	ID         int64  `json:"id" yaml:"id"`
	CallID     string `json:"call_id" yaml:"call_id"`
	Method     string `json:"method" yaml:"method"`
	PeerID     string `json:"peer_id,omitempty" yaml:"peer_id,omitempty"`
	IsError    bool   `json:"is_error" yaml:"is_error"`
	Code       int    `json:"code,omitempty" yaml:"code,omitempty"`
	Text       string `json:"text" yaml:"text"`
	DurationMS int64  `json:"duration_ms" yaml:"duration_ms"`
	CreatedAt  string `json:"created_at" yaml:"created_at"`
}

// Journal stores call records. It implements bridge.CallRecorder.
type Journal struct {
	db *sql.DB
}

var _ bridge.CallRecorder = (*Journal)(nil)

// Open opens (creating if needed) the journal database at path.
func Open(path string) (*Journal, error) {
	if path == "" {
		path = DBFileName
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create journal directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Serialize writers; this also keeps ":memory:" on a single database.
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return &Journal{db: db}, nil
}

// createTables creates the journal schema if it doesn't exist
func createTables(db *sql.DB) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS bridge_calls (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			call_id TEXT,
			method TEXT NOT NULL,
			peer_id TEXT,
			is_error BOOLEAN NOT NULL DEFAULT 0,
			code INTEGER,
			text TEXT,
			duration_ms INTEGER,
			created_at TEXT NOT NULL
		)`,
	}
	for _, query := range tables {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_bridge_calls_method ON bridge_calls(method)`,
		`CREATE INDEX IF NOT EXISTS idx_bridge_calls_created_at ON bridge_calls(created_at)`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// RecordCall appends rec to the journal.
func (j *Journal) RecordCall(ctx context.Context, rec bridge.CallRecord) error {
	if j == nil || j.db == nil {
		return fmt.Errorf("journal is not open")
	}
	at := rec.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO bridge_calls(call_id, method, peer_id, is_error, code, text, duration_ms, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.CallID, rec.Method, rec.PeerID, rec.IsError, rec.Code, rec.Text, rec.Duration.Milliseconds(), at.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to record call %s: %w", rec.Method, err)
	}
	return nil
}

// List returns the most recent entries, newest first. A non-positive limit
// uses DefaultListLimit.
func (j *Journal) List(ctx context.Context, limit int) ([]Entry, error) {
	if j == nil || j.db == nil {
		return nil, fmt.Errorf("journal is not open")
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, call_id, method, peer_id, is_error, code, text, duration_ms, created_at
		FROM bridge_calls ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query calls: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var (
			e                    Entry
			callID, peerID, text sql.NullString
			code, duration       sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &callID, &e.Method, &peerID, &e.IsError, &code, &text, &duration, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan call row: %w", err)
		}
		e.CallID = callID.String
		e.PeerID = peerID.String
		e.Text = text.String
		e.Code = int(code.Int64)
		e.DurationMS = duration.Int64
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate call rows: %w", err)
	}
	return entries, nil
}

// Prune deletes all but the newest keep entries and returns how many rows
// were removed.
func (j *Journal) Prune(ctx context.Context, keep int) (int64, error) {
	if j == nil || j.db == nil {
		return 0, fmt.Errorf("journal is not open")
	}
	if keep < 0 {
		return 0, fmt.Errorf("keep must not be negative: %d", keep)
	}
	res, err := j.db.ExecContext(ctx,
		`DELETE FROM bridge_calls WHERE id NOT IN (SELECT id FROM bridge_calls ORDER BY id DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune calls: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned calls: %w", err)
	}
	return n, nil
}
