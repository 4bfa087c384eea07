// Package local provides the durable on-device store for tally.
//
// The store keeps one JSON document per logical key in an embedded SQLite
// database (ncruces/go-sqlite3, WAL mode). Writes are synchronous: when a
// Save call returns, the document is on disk, so nothing asynchronous can
// observe a state that has not absorbed the latest user action.
//
// Reads never fail. A missing key and a document that no longer parses are
// treated the same way: the caller gets the documented default. The
// distinction is still visible through Result.Status for diagnostics.
package local

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Key names a stored document.
type Key string

const (
	KeyAppState          Key = "app_state"
	KeySettings          Key = "settings"
	KeyGymSessions       Key = "gym_sessions"
	KeyGymRoutines       Key = "gym_routines"
	KeyExerciseLibrary   Key = "exercise_library"
	KeyAdminTasks        Key = "admin_tasks"
	KeyUsageCounters     Key = "usage_counters"
	KeyNotificationState Key = "notification_state"
	KeyEarnedBadges      Key = "earned_badges"
	KeyMigrated          Key = "migrated"
	KeyIDRemap           Key = "id_remap"
	KeySyncQueue         Key = "sync_queue"
	KeySyncDeadLetter    Key = "sync_dead_letter"
	KeyLastSync          Key = "last_sync"
)

// AllKeys is every key the app writes. ClearAll deletes exactly these; keep
// it in sync when adding a key so sign-out never leaves user data behind.
var AllKeys = []Key{
	KeyAppState,
	KeySettings,
	KeyGymSessions,
	KeyGymRoutines,
	KeyExerciseLibrary,
	KeyAdminTasks,
	KeyUsageCounters,
	KeyNotificationState,
	KeyEarnedBadges,
	KeyMigrated,
	KeyIDRemap,
	KeySyncQueue,
	KeySyncDeadLetter,
	KeyLastSync,
}

// Store wraps the SQLite connection holding the documents.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates or opens the store at path.
//
// The caller MUST call Close() when done.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping local store: %w", err)
	}

	// One writer keeps document read-modify-write sequences ordered.
	conn.SetMaxOpenConns(1)

	s := &Store{conn: conn, path: path}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := s.conn.Exec(p); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	if err := s.initSchema(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS documents (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`
	if _, err := s.conn.Exec(ddl); err != nil {
		return fmt.Errorf("failed to initialize local schema: %w", err)
	}
	return nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
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
		return fmt.Errorf("failed to close local store: %w", err)
	}
	s.conn = nil
	return nil
}

// Get returns the raw document for key. ok is false when the key is absent.
func (s *Store) Get(key Key) (raw []byte, ok bool, err error) {
	var value string
	err = s.conn.QueryRowContext(context.Background(),
		`SELECT value FROM documents WHERE key = ?`, string(key)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return []byte(value), true, nil
}

// Put stores raw as the document for key.
func (s *Store) Put(key Key, raw []byte) error {
	query := `
	INSERT INTO documents (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		updated_at = excluded.updated_at
	`
	_, err := s.conn.ExecContext(context.Background(), query,
		string(key), string(raw), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(key Key) error {
	if _, err := s.conn.ExecContext(context.Background(),
		`DELETE FROM documents WHERE key = ?`, string(key)); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// ClearAll wipes every key in AllKeys. Used on sign-out.
func (s *Store) ClearAll() error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin clear: %w", err)
	}
	defer tx.Rollback()

	for _, k := range AllKeys {
		if _, err := tx.Exec(`DELETE FROM documents WHERE key = ?`, string(k)); err != nil {
			return fmt.Errorf("failed to clear %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit clear: %w", err)
	}
	return nil
}

// UpdatedAt returns when key was last written, or the zero time.
func (s *Store) UpdatedAt(key Key) time.Time {
	var ts string
	err := s.conn.QueryRow(`SELECT updated_at FROM documents WHERE key = ?`, string(key)).Scan(&ts)
	if err != nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Size returns the database file size in bytes, or 0 if unknown.
func (s *Store) Size() int64 {
	info, err := os.Stat(s.path)
	if err != nil {
		return 0
	}
	return info.Size()
}
