// Package postgres implements the record store on PostgreSQL through pgx.
//
// Every read-modify-write runs in one transaction that locks the row with
// SELECT ... FOR UPDATE; the UPDATE is additionally guarded by the version it
// read. Serialization failures and deadlocks surface as core.ConflictError and
// are retried by storage.RetryOnConflict.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ storage.RecordStore = (*Store)(nil)

// New connects to databaseURL, migrates the schema and returns the store.
// maxConns <= 0 keeps the pgxpool default.
func New(ctx context.Context, databaseURL string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(databaseURL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("Postgres store ready", "max_conns", cfg.MaxConns)
	return &Store{pool: pool, now: time.Now}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) withTx(ctx context.Context, kind, id string, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return conflictOr(err, kind, id, "begin transaction")
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return conflictOr(err, kind, id, "commit transaction")
	}
	return nil
}

// mutate is the shared locked read-modify-write loop behind every Mutate.
func mutate[T any](
	ctx context.Context,
	s *Store,
	kind, id string,
	lock func(ctx context.Context, q querier, id string) (T, error),
	version func(T) int64,
	apply func(cur T, next *T),
	save func(ctx context.Context, tx pgx.Tx, rec T, prevVersion int64) (int64, error),
	fn func(*T) error,
) (T, error) {
	var out T
	if !validID(id) {
		return out, &core.NotFoundError{Kind: kind, ID: id}
	}
	err := storage.RetryOnConflict(ctx, func() error {
		return s.withTx(ctx, kind, id, func(tx pgx.Tx) error {
			cur, err := lock(ctx, tx, id)
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

// validID rejects ids that cannot be a uuid column value so lookups report
// not found instead of a driver error.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func conflictOr(err error, kind, id, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return &core.ConflictError{Kind: kind, ID: id}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func notFound(err error, kind, id, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return &core.NotFoundError{Kind: kind, ID: id}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ts trims t to the microsecond resolution of timestamptz so a stored window
// end never rounds up into the next window.
func ts(t time.Time) time.Time {
	return t.Truncate(time.Microsecond)
}

func nullTS(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	v := ts(t)
	return &v
}

func fromNullTS(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}
