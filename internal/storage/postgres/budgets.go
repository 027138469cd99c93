package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

const selectBudget = `SELECT id::text, owner_id, category_id, period, allocated_cents, start_at, end_at,
	spent_cents, alert_threshold, is_active, reconciled_at, version, created_at, updated_at FROM budgets`

func scanBudget(row pgx.Row) (core.Budget, error) {
	var (
		b                   core.Budget
		period              string
		endAt, reconciledAt *time.Time
	)
	err := row.Scan(&b.ID, &b.OwnerID, &b.CategoryID, &period, &b.Allocated.Cents, &b.Start, &endAt,
		&b.Spent.Cents, &b.AlertThreshold, &b.IsActive, &reconciledAt, &b.Version, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return core.Budget{}, err
	}
	b.Period = core.Period(period)
	b.Start = b.Start.UTC()
	b.End = fromNullTS(endAt)
	b.ReconciledAt = fromNullTS(reconciledAt)
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return b, nil
}

func lockBudget(ctx context.Context, q querier, id string) (core.Budget, error) {
	b, err := scanBudget(q.QueryRow(ctx, selectBudget+" WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		return core.Budget{}, notFound(err, core.KindBudget, id, "lock budget")
	}
	return b, nil
}

func (s *Store) listBudgets(ctx context.Context, where string, args ...any) ([]core.Budget, error) {
	rows, err := s.pool.Query(ctx, selectBudget+" WHERE "+where+" ORDER BY created_at, id", args...)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate budgets: %w", err)
	}
	return out, nil
}

func (s *Store) InsertBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if b.ID == "" {
		b.ID = core.NewID()
	}
	b.Version = 1
	b.Start = ts(b.Start)
	if !b.End.IsZero() {
		b.End = ts(b.End)
	}
	b.CreatedAt, b.UpdatedAt = ts(b.CreatedAt), ts(b.UpdatedAt)
	_, err := s.pool.Exec(ctx, `INSERT INTO budgets
		(id, owner_id, category_id, period, allocated_cents, start_at, end_at, spent_cents,
		 alert_threshold, is_active, reconciled_at, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		b.ID, b.OwnerID, b.CategoryID, string(b.Period), b.Allocated.Cents, b.Start, nullTS(b.End), b.Spent.Cents,
		b.AlertThreshold, b.IsActive, nullTS(b.ReconciledAt), b.Version, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return core.Budget{}, fmt.Errorf("insert budget: %w", err)
	}
	return b, nil
}

func (s *Store) GetBudget(ctx context.Context, id string) (core.Budget, error) {
	if !validID(id) {
		return core.Budget{}, &core.NotFoundError{Kind: core.KindBudget, ID: id}
	}
	b, err := scanBudget(s.pool.QueryRow(ctx, selectBudget+" WHERE id = $1", id))
	if err != nil {
		return core.Budget{}, notFound(err, core.KindBudget, id, "get budget")
	}
	return b, nil
}

func (s *Store) ListBudgets(ctx context.Context, ownerID string) ([]core.Budget, error) {
	return s.listBudgets(ctx, "owner_id = $1", ownerID)
}

func (s *Store) FindBudgets(ctx context.Context, ownerID, categoryID string, at time.Time) ([]core.Budget, error) {
	return s.listBudgets(ctx,
		"owner_id = $1 AND category_id = $2 AND start_at <= $3 AND (end_at IS NULL OR end_at >= $3)",
		ownerID, categoryID, ts(at))
}

func (s *Store) ListActiveBudgets(ctx context.Context) ([]core.Budget, error) {
	return s.listBudgets(ctx, "is_active")
}

func (s *Store) MutateBudget(ctx context.Context, id string, fn func(*core.Budget) error) (core.Budget, error) {
	return mutate(ctx, s, core.KindBudget, id, lockBudget,
		func(b core.Budget) int64 { return b.Version },
		applyBudgetIdentity,
		saveBudget, fn)
}

// ReconcileBudget locks the budget row, sums its matching expenses and stores
// the result in one transaction.
func (s *Store) ReconcileBudget(ctx context.Context, id string, now time.Time) (core.Budget, core.Reconciliation, error) {
	if !validID(id) {
		return core.Budget{}, core.Reconciliation{}, &core.NotFoundError{Kind: core.KindBudget, ID: id}
	}
	var (
		r   core.Reconciliation
		out core.Budget
	)
	err := storage.RetryOnConflict(ctx, func() error {
		return s.withTx(ctx, core.KindBudget, id, func(tx pgx.Tx) error {
			cur, err := lockBudget(ctx, tx, id)
			if err != nil {
				return err
			}
			spent, err := sumTransactions(ctx, tx, cur.OwnerID, storage.BudgetFilter(cur))
			if err != nil {
				return err
			}
			next := cur
			r = next.ApplyReconciliation(spent, now)
			applyBudgetIdentity(cur, &next)
			n, err := saveBudget(ctx, tx, next, cur.Version)
			if err != nil {
				return conflictOr(err, core.KindBudget, id, "update budget")
			}
			if n == 0 {
				return &core.ConflictError{Kind: core.KindBudget, ID: id}
			}
			out = next
			return nil
		})
	})
	if err != nil {
		return core.Budget{}, core.Reconciliation{}, err
	}
	return out, r, nil
}

func applyBudgetIdentity(cur core.Budget, next *core.Budget) {
	next.ID, next.OwnerID = cur.ID, cur.OwnerID
	next.Version = cur.Version + 1
}

func saveBudget(ctx context.Context, tx pgx.Tx, b core.Budget, prevVersion int64) (int64, error) {
	tag, err := tx.Exec(ctx, `UPDATE budgets
		SET category_id = $1, period = $2, allocated_cents = $3, start_at = $4, end_at = $5,
			spent_cents = $6, alert_threshold = $7, is_active = $8, reconciled_at = $9,
			version = $10, updated_at = $11
		WHERE id = $12 AND version = $13`,
		b.CategoryID, string(b.Period), b.Allocated.Cents, ts(b.Start), nullTS(b.End),
		b.Spent.Cents, b.AlertThreshold, b.IsActive, nullTS(b.ReconciledAt),
		b.Version, ts(b.UpdatedAt),
		b.ID, prevVersion)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
