// Package sqlite implements the record store on an embedded SQLite database.
//
// Write transactions start with BEGIN IMMEDIATE so a read-modify-write holds
// the database write lock from its first read. Every Mutate also guards the
// UPDATE with the version it read; a lost race surfaces as a
// core.ConflictError and is retried by storage.RetryOnConflict.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ storage.RecordStore = (*Store)(nil)

// DSN returns the connection string used for path.
func DSN(path string) string {
	return "file:" + path + "?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
}

// New opens (creating if needed) the database at dbPath and migrates it.
func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("SQLite store ready", "db_path", dbPath)
	return &Store{db: db, now: time.Now}, nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn inside a write transaction.
func (s *Store) withTx(ctx context.Context, kind, id string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return conflictOr(err, kind, id, "begin transaction")
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return conflictOr(err, kind, id, "commit transaction")
	}
	return nil
}

// mutate is the shared read-modify-write loop behind every Mutate method.
func mutate[T any](
	ctx context.Context,
	s *Store,
	kind, id string,
	load func(ctx context.Context, q queryer, id string) (T, error),
	version func(T) int64,
	apply func(cur T, next *T),
	save func(ctx context.Context, tx *sql.Tx, rec T, prevVersion int64) (int64, error),
	fn func(*T) error,
) (T, error) {
	var out T
	err := storage.RetryOnConflict(ctx, func() error {
		return s.withTx(ctx, kind, id, func(tx *sql.Tx) error {
			cur, err := load(ctx, tx, id)
			if err != nil {
				return err
			}
			next := cur
			if err := fn(&next); err != nil {
				return err
			}
			apply(cur, &next)
			n, err := save(ctx, tx, next, version(cur))
			if err != nil {
				return conflictOr(err, kind, id, "update "+kind)
			}
			if n == 0 {
				return &core.ConflictError{Kind: kind, ID: id}
			}
			out = next
			return nil
		})
	})
	return out, err
}

// conflictOr maps SQLITE_BUSY/SQLITE_LOCKED to a ConflictError and wraps
// everything else.
func conflictOr(err error, kind, id, op string) error {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return &core.ConflictError{Kind: kind, ID: id}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func notFound(err error, kind, id, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return &core.NotFoundError{Kind: kind, ID: id}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func toNanos(t time.Time) int64 { return t.UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

func nullTime(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNullTime(n sql.NullInt64) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return fromNanos(n.Int64)
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
