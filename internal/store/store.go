// Package store provides the SQLite record store for klusjes.
//
// The store is the single canonical owner of the room/task/photo graph.
// It runs embedded SQLite with WAL mode so the HTTP handlers and the change
// feed connections can read concurrently while mutations are applied.
//
// Architecture:
//   - Tables: rooms, tasks, task_photos, watermarks
//   - Referential integrity: task -> room and photo -> task with ON DELETE CASCADE
//   - Watermarks: every successful mutation bumps a per-collection
//     last-modified row, which is the sole signal the change feed uses to
//     decide whether to push a fresh snapshot
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Collection names used for watermark tracking. Photo mutations bump the
// tasks watermark because photos travel inside task snapshots.
const (
	CollectionRooms = "rooms"
	CollectionTasks = "tasks"
)

// Store wraps the SQLite connection with chore-tracking queries.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates a database connection at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// If the database doesn't exist, it is created along with the schema.
//
// The caller MUST call Close() when done.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{conn: conn, path: path}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := s.conn.Exec(pragma); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := s.InitSchema(context.Background()); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection, checkpointing the WAL first so all
// changes are persisted to the main database file.
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

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// InitSchema creates the database schema if it doesn't exist.
// Idempotent - safe to call multiple times.
func (s *Store) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		color TEXT NOT NULL DEFAULT '#6366f1',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		room_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		priority INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'todo',
		due_date TEXT,
		estimated_minutes INTEGER,
		created_at TEXT NOT NULL,
		completed_at TEXT,
		FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS task_photos (
		id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL,
		url TEXT NOT NULL,
		created_at TEXT NOT NULL,
		FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE
	);

	-- Per-collection last-modified markers for the change feed
	CREATE TABLE IF NOT EXISTS watermarks (
		collection TEXT PRIMARY KEY,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_room ON tasks(room_id);
	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE INDEX IF NOT EXISTS idx_tasks_list ON tasks(priority, created_at);
	CREATE INDEX IF NOT EXISTS idx_photos_task ON task_photos(task_id);
	`

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// Watermark returns the last-modified timestamp for a collection.
// A collection that has never been mutated reports the zero time.
func (s *Store) Watermark(ctx context.Context, collection string) (time.Time, error) {
	var raw string
	err := s.conn.QueryRowContext(ctx,
		`SELECT updated_at FROM watermarks WHERE collection = ?`, collection).Scan(&raw)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read watermark for %s: %w", collection, err)
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse watermark for %s: %w", collection, err)
	}
	return t, nil
}

// touchWatermark records a mutation to a collection inside the caller's
// transaction. Nanosecond precision so rapid mutations within one second
// still advance the marker.
func touchWatermark(ctx context.Context, tx *sql.Tx, collection string) error {
	stamp := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := tx.ExecContext(ctx, `
		INSERT INTO watermarks (collection, updated_at) VALUES (?, ?)
		ON CONFLICT(collection) DO UPDATE SET updated_at = excluded.updated_at
	`, collection, stamp)
	if err != nil {
		return fmt.Errorf("failed to touch watermark %s: %w", collection, err)
	}
	return nil
}

// newID generates a prefixed record identifier, e.g. "task_0b49...".
func newID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// timeToNullString converts a time pointer to a nullable string for SQL.
func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
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
