// Package remote is tally's remote backend: a libSQL/SQLite database holding
// one table per row type in package rows.
//
// Production deployments talk to a Turso primary through a go-libsql
// embedded replica (OpenTurso): reads are served from the local replica
// after a Refresh, writes are forwarded to the primary. OpenSQLite serves
// the same schema from a plain SQLite file, for self-hosting and tests.
package remote

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/tursodatabase/go-libsql"

	"github.com/mschirtzinger/tally/internal/queue"
)

// Config configures a Turso connection.
type Config struct {
	// URL is the primary database URL (libsql://... or https://...)
	URL string

	// AuthToken authenticates against the primary
	AuthToken string

	// ReplicaPath is where the embedded replica file lives
	ReplicaPath string

	// SyncInterval enables background replica syncs when non-zero
	SyncInterval time.Duration

	// Logger for backend activity
	Logger *log.Logger
}

// Backend is an open remote database.
type Backend struct {
	db        *sql.DB
	connector *libsql.Connector
	logger    *log.Logger

	syncMu   sync.Mutex
	lastSync time.Time
}

func defaultLogger() *log.Logger {
	return log.New(os.Stderr, "[remote] ", log.LstdFlags)
}

// OpenTurso opens an embedded replica of the Turso primary at cfg.URL.
//
// The caller MUST call Close() when done.
func OpenTurso(cfg Config) (*Backend, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("remote url is required")
	}
	if cfg.ReplicaPath == "" {
		return nil, fmt.Errorf("replica path is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = defaultLogger()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.ReplicaPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create replica directory: %w", err)
	}

	opts := []libsql.Option{libsql.WithAuthToken(cfg.AuthToken)}
	if cfg.SyncInterval > 0 {
		opts = append(opts, libsql.WithSyncInterval(cfg.SyncInterval))
	}
	connector, err := libsql.NewEmbeddedReplicaConnector(cfg.ReplicaPath, cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create replica connector: %w", err)
	}

	b := &Backend{
		db:        sql.OpenDB(connector),
		connector: connector,
		logger:    cfg.Logger,
	}
	cfg.Logger.Printf("Opened replica %s of %s", cfg.ReplicaPath, cfg.URL)
	return b, nil
}

// OpenSQLite opens (creating if needed) a plain SQLite backend at path and
// initializes its schema.
//
// The caller MUST call Close() when done.
func OpenSQLite(path string, logger *log.Logger) (*Backend, error) {
	if logger == nil {
		logger = defaultLogger()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, p := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	b := &Backend{db: db, logger: logger}
	if err := b.InitSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

// InitSchema creates all tables. Safe to call repeatedly.
func (b *Backend) InitSchema(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to initialize remote schema: %w", err)
	}
	return nil
}

// DB returns the underlying handle for typed Table reads.
func (b *Backend) DB() *sql.DB {
	return b.db
}

// Refresh pulls the latest frames from the primary into the replica so
// subsequent reads see other writers. No-op for plain SQLite.
func (b *Backend) Refresh(ctx context.Context) error {
	if b.connector == nil {
		return nil
	}
	b.syncMu.Lock()
	defer b.syncMu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := b.connector.Sync()
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to sync replica: %w", err)
		}
		b.lastSync = time.Now()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LastRefresh returns when the replica last synced, or the zero time.
func (b *Backend) LastRefresh() time.Time {
	b.syncMu.Lock()
	defer b.syncMu.Unlock()
	return b.lastSync
}

// Ping checks the database answers.
func (b *Backend) Ping(ctx context.Context) error {
	if err := b.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping remote: %w", err)
	}
	return nil
}

// Apply executes one queued operation in its own transaction. It
// implements queue.Applier.
func (b *Backend) Apply(ctx context.Context, op queue.Operation) error {
	t, ok := registry[op.Table]
	if !ok {
		return &RejectedError{Table: op.Table, Err: ErrUnknownTable}
	}
	return b.InTx(ctx, func(tx Execer) error {
		return t.apply(ctx, tx, op)
	})
}

// InTx runs fn in a transaction, committing when it returns nil.
func (b *Backend) InTx(ctx context.Context, fn func(tx Execer) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the database and, for replicas, the connector.
func (b *Backend) Close() error {
	var firstErr error
	if err := b.db.Close(); err != nil {
		firstErr = fmt.Errorf("failed to close remote: %w", err)
	}
	if b.connector != nil {
		if err := b.connector.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close replica connector: %w", err)
		}
	}
	return firstErr
}

var _ queue.Applier = (*Backend)(nil)
