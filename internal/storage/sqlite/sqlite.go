// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/mmynk/loanledger/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

const dateLayout = "2006-01-02"

// SQLiteStore implements storage.Store using SQLite.
//
// Every write transaction is opened with BEGIN IMMEDIATE, so it owns the
// database write lock from its first statement. Concurrent allocations
// therefore run one after another; other writers wait up to the busy timeout.
// Read transactions go through a separate query-only handle and, under WAL,
// never wait for a writer.
type SQLiteStore struct {
	db     *sql.DB
	reader *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	base := filepath.Clean(dbPath) +
		"?_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", base+"&_pragma=journal_mode(WAL)&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Opened after migrations so the file is already in WAL mode.
	reader, err := sql.Open("sqlite", base+"&_pragma=query_only(1)&_txlock=deferred")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open read handle: %w", err)
	}
	if err := reader.PingContext(ctx); err != nil {
		reader.Close()
		db.Close()
		return nil, fmt.Errorf("failed to ping read handle: %w", err)
	}

	return &SQLiteStore{db: db, reader: reader}, nil
}

// Close closes both database handles.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	var readErr error
	if s.reader != nil {
		readErr = s.reader.Close()
	}
	return errors.Join(s.db.Close(), readErr)
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RunInTx runs fn in one transaction and commits only if fn succeeds.
func (s *SQLiteStore) RunInTx(ctx context.Context, fn storage.TxFunc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapError(err))
	}
	defer tx.Rollback()

	if err := fn(ctx, &sqliteTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", mapError(err))
	}
	return nil
}

// RunInReadTx runs fn in a deferred read-only transaction. It sees one
// consistent snapshot and does not take the write lock; writes through tx fail.
func (s *SQLiteStore) RunInReadTx(ctx context.Context, fn storage.TxFunc) error {
	tx, err := s.reader.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin read transaction: %w", mapError(err))
	}
	defer tx.Rollback()

	if err := fn(ctx, &sqliteTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to end read transaction: %w", mapError(err))
	}
	return nil
}

// sqliteTx implements storage.Tx on top of a *sql.Tx.
type sqliteTx struct {
	tx *sql.Tx
}

// mapError translates lock contention into storage.ErrConflict.
func mapError(err error) error {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3lib.SQLITE_BUSY, sqlite3lib.SQLITE_LOCKED:
			return fmt.Errorf("%w: %v", storage.ErrConflict, err)
		}
	}
	return err
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func toDate(value time.Time) string {
	return value.Format(dateLayout)
}

func fromDate(value string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, value, time.UTC)
}

func now() time.Time {
	return time.Now().UTC()
}
