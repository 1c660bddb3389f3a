// Package store provides the embedded on-device database holding grind
// sessions, kill records, cached statistics, and key/value settings.
//
// The store runs on SQLite in WAL mode for concurrent reads during writes.
// It is the single source of truth for the UI: the optimistic write path
// creates rows tagged "pending", and the sync manager is the only component
// that moves data between this store and the remote service.
//
// Hot paths (kill increment/decrement, pending queries) go through indexed
// lookups only; nothing here scans a full table per keystroke.
//
// There is deliberately no foreign-key enforcement at this layer. Kill
// records reference sessions by ID, but referential integrity is owned by
// application logic so that a pull pass can apply rows in any order.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Store wraps the SQLite connection with typed accessors for each table.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates a database connection at the specified path.
//
// The database file and its parent directory are created if missing.
// The caller MUST call Close() when done.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{conn: conn, path: path}

	if _, err := s.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := s.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return s, nil
}

// Close checkpoints the WAL and closes the connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.conn = nil
	return nil
}

// InitSchema creates tables and indexes if they don't exist.
// Idempotent - safe to call on every startup.
func (s *Store) InitSchema() error {
	return s.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the schema with context support.
func (s *Store) InitSchemaContext(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS grind_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		animal_id TEXT NOT NULL,
		animal_name TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 0,
		total_kills INTEGER NOT NULL DEFAULT 0,
		current_kills INTEGER NOT NULL DEFAULT 0,
		next_kill_number INTEGER NOT NULL DEFAULT 1,
		updated_at TEXT NOT NULL,
		sync_status TEXT NOT NULL DEFAULT 'pending',
		last_synced_at TEXT
	);

	CREATE TABLE IF NOT EXISTS kill_records (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		animal_id TEXT NOT NULL DEFAULT '',
		kill_number INTEGER NOT NULL,
		is_diamond INTEGER NOT NULL DEFAULT 0,
		is_great_one INTEGER NOT NULL DEFAULT 0,
		is_troll INTEGER NOT NULL DEFAULT 0,
		fur_type_id TEXT,
		fur_type_name TEXT,
		weight REAL,
		trophy_score REAL,
		difficulty_level INTEGER,
		killed_at TEXT NOT NULL,
		sync_status TEXT NOT NULL DEFAULT 'pending',
		last_synced_at TEXT
	);

	CREATE TABLE IF NOT EXISTS session_statistics (
		session_id TEXT PRIMARY KEY,
		total_kills INTEGER NOT NULL DEFAULT 0,
		diamonds INTEGER NOT NULL DEFAULT 0,
		great_ones INTEGER NOT NULL DEFAULT 0,
		rare_furs INTEGER NOT NULL DEFAULT 0,
		trolls INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	-- Kill rows deleted locally after they were already uploaded. The push
	-- pass replays these as remote deletes so trigger-maintained counts
	-- converge instead of drifting.
	CREATE TABLE IF NOT EXISTS kill_tombstones (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL
	);

	-- Indexes for the sync manager's scoped queries
	CREATE INDEX IF NOT EXISTS idx_sessions_user_active_status
	    ON grind_sessions(user_id, is_active, sync_status);
	CREATE INDEX IF NOT EXISTS idx_sessions_user_status
	    ON grind_sessions(user_id, sync_status);

	CREATE INDEX IF NOT EXISTS idx_kills_user_status
	    ON kill_records(user_id, sync_status);
	CREATE INDEX IF NOT EXISTS idx_kills_session
	    ON kill_records(session_id);
	`

	if _, err := s.conn.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// RawDB returns the underlying sql.DB connection.
func (s *Store) RawDB() *sql.DB {
	return s.conn
}

// timeToNullString converts a time pointer to a nullable string for SQL.
func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

// nullStringToTime converts a nullable SQL string to a time pointer.
func nullStringToTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
