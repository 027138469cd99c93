package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

const budgetColumns = `id, owner_id, category_id, period, allocated_cents, start_at, end_at,
	spent_cents, alert_threshold, is_active, reconciled_at, version, created_at, updated_at`

func scanBudget(row interface{ Scan(...any) error }) (core.Budget, error) {
	var (
		b                    core.Budget
		period, threshold    string
		startAt              int64
		endAt, reconciledAt  sql.NullInt64
		isActive             int64
		createdAt, updatedAt int64
	)
	err := row.Scan(&b.ID, &b.OwnerID, &b.CategoryID, &period, &b.Allocated.Cents, &startAt, &endAt,
		&b.Spent.Cents, &threshold, &isActive, &reconciledAt, &b.Version, &createdAt, &updatedAt)
	if err != nil {
		return core.Budget{}, err
	}
	b.AlertThreshold, err = decimal.NewFromString(threshold)
	if err != nil {
		return core.Budget{}, fmt.Errorf("parse alert threshold %q: %w", threshold, err)
	}
	b.Period = core.Period(period)
	b.Start = fromNanos(startAt)
	b.End = fromNullTime(endAt)
	b.IsActive = isActive != 0
	b.ReconciledAt = fromNullTime(reconciledAt)
	b.CreatedAt = fromNanos(createdAt)
	b.UpdatedAt = fromNanos(updatedAt)
	return b, nil
}

func loadBudget(ctx context.Context, q queryer, id string) (core.Budget, error) {
	b, err := scanBudget(q.QueryRowContext(ctx, "SELECT "+budgetColumns+" FROM budgets WHERE id = ?", id))
	if err != nil {
		return core.Budget{}, notFound(err, core.KindBudget, id, "get budget")
	}
	return b, nil
}

func (s *Store) listBudgets(ctx context.Context, where string, args ...any) ([]core.Budget, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+budgetColumns+" FROM budgets WHERE "+where+" ORDER BY created_at, rowid", args...)
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
	_, err := s.db.ExecContext(ctx, `INSERT INTO budgets (`+budgetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.OwnerID, b.CategoryID, string(b.Period), b.Allocated.Cents, toNanos(b.Start), nullTime(b.End),
		b.Spent.Cents, b.AlertThreshold.String(), boolInt(b.IsActive), nullTime(b.ReconciledAt), b.Version,
		toNanos(b.CreatedAt), toNanos(b.UpdatedAt))
	if err != nil {
		return core.Budget{}, fmt.Errorf("insert budget: %w", err)
	}
	return b, nil
}

func (s *Store) GetBudget(ctx context.Context, id string) (core.Budget, error) {
	return loadBudget(ctx, s.db, id)
}

func (s *Store) ListBudgets(ctx context.Context, ownerID string) ([]core.Budget, error) {
	return s.listBudgets(ctx, "owner_id = ?", ownerID)
}

func (s *Store) FindBudgets(ctx context.Context, ownerID, categoryID string, at time.Time) ([]core.Budget, error) {
	ts := toNanos(at)
	return s.listBudgets(ctx,
		"owner_id = ? AND category_id = ? AND start_at <= ? AND (end_at IS NULL OR end_at >= ?)",
		ownerID, categoryID, ts, ts)
}

func (s *Store) ListActiveBudgets(ctx context.Context) ([]core.Budget, error) {
	return s.listBudgets(ctx, "is_active = 1")
}

func (s *Store) MutateBudget(ctx context.Context, id string, fn func(*core.Budget) error) (core.Budget, error) {
	return mutate(ctx, s, core.KindBudget, id, loadBudget,
		func(b core.Budget) int64 { return b.Version },
		applyBudgetIdentity,
		saveBudget, fn)
}

// ReconcileBudget sums the matching expenses inside the same write
// transaction that stores the result.
func (s *Store) ReconcileBudget(ctx context.Context, id string, now time.Time) (core.Budget, core.Reconciliation, error) {
	var r core.Reconciliation
	var out core.Budget
	err := storage.RetryOnConflict(ctx, func() error {
		return s.withTx(ctx, core.KindBudget, id, func(tx *sql.Tx) error {
			cur, err := loadBudget(ctx, tx, id)
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

func saveBudget(ctx context.Context, tx *sql.Tx, b core.Budget, prevVersion int64) (int64, error) {
	res, err := tx.ExecContext(ctx, `UPDATE budgets
		SET category_id = ?, period = ?, allocated_cents = ?, start_at = ?, end_at = ?,
			spent_cents = ?, alert_threshold = ?, is_active = ?, reconciled_at = ?,
			version = ?, updated_at = ?
		WHERE id = ? AND version = ?`,
		b.CategoryID, string(b.Period), b.Allocated.Cents, toNanos(b.Start), nullTime(b.End),
		b.Spent.Cents, b.AlertThreshold.String(), boolInt(b.IsActive), nullTime(b.ReconciledAt),
		b.Version, toNanos(b.UpdatedAt),
		b.ID, prevVersion)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
