// Package memory provides the SQLite-backed persistent store for the
// learning subsystem. It owns the append-only experiences log and the
// database lifecycle (open, migrations, purge); derived tables are
// written by the pattern engine and the preference manager through the
// same connection.
package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// ErrClosed is returned when an operation is attempted on a closed store.
var ErrClosed = errors.New("memory store is closed")

// ErrStorage marks I/O failures on the persisted store. Callers isolate
// these from command execution: learning degrades, commands never fail.
var ErrStorage = errors.New("storage failure")

// ErrValidation marks malformed input rejected before it reaches storage.
var ErrValidation = errors.New("invalid interaction")

// walCheckpointInterval is how often the WAL file is checkpointed to
// prevent unbounded growth in long-lived processes.
const walCheckpointInterval = 5 * time.Minute

// DB wraps the SQLite connection for the learning store. It manages
// pragmas, migrations, and lifecycle. A single connection is used so
// SQLite sees one writer.
type DB struct {
	db        *sql.DB
	logger    *slog.Logger
	dbPath    string
	stopCh    chan struct{}
	stoppedCh chan struct{}
	closeErr  error
	closeOnce sync.Once
}

// Options configures store initialization.
type Options struct {
	// Path is the database file path. Required.
	Path string

	// ReadOnly opens the database without running migrations or the
	// checkpoint loop.
	ReadOnly bool

	// Logger for diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Open opens the database file, applies pragmas, and runs migrations.
// The caller must call Close when done.
func Open(ctx context.Context, opts Options) (*DB, error) {
	if opts.Path == "" {
		return nil, errors.New("memory: database path is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// modernc.org/sqlite uses _pragma=name(value) syntax.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", opts.Path)
	if opts.ReadOnly {
		dsn += "&mode=ro"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite handles concurrency better with a single writer.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if !opts.ReadOnly {
		if err := RunMigrations(ctx, sqlDB); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	d := &DB{
		db:        sqlDB,
		logger:    logger,
		dbPath:    opts.Path,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
	if !opts.ReadOnly {
		go d.walCheckpointLoop()
	} else {
		close(d.stoppedCh)
	}
	return d, nil
}

// Close closes the database connection. Safe to call multiple times.
func (d *DB) Close() error {
	d.closeOnce.Do(func() {
		close(d.stopCh)
		<-d.stoppedCh

		if d.db != nil {
			// Final checkpoint merges the WAL into the main file.
			_, _ = d.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			d.closeErr = d.db.Close()
		}
	})
	return d.closeErr
}

// DB returns the underlying sql.DB for the pattern engine and
// preference manager, which run their own queries against the shared
// single-writer connection.
func (d *DB) DB() *sql.DB {
	return d.db
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.dbPath
}

func (d *DB) walCheckpointLoop() {
	defer close(d.stoppedCh)

	ticker := time.NewTicker(walCheckpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopCh:
			return
		case <-ticker.C:
			if _, err := d.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
				d.logger.Warn("wal checkpoint failed", "error", err)
			}
		}
	}
}

// storageErr wraps a driver error so callers can match ErrStorage.
func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
