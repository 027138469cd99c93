package sqlite

import (
	"context"
	"fmt"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

const transactionColumns = `id, owner_id, category_id, kind, amount_cents, currency, occurred_at,
	description, note, created_at, updated_at`

func scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		tx                               core.Transaction
		kind                             string
		occurredAt, createdAt, updatedAt int64
	)
	err := row.Scan(&tx.ID, &tx.OwnerID, &tx.CategoryID, &kind, &tx.Amount.Cents, &tx.Currency,
		&occurredAt, &tx.Description, &tx.Note, &createdAt, &updatedAt)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.Kind = core.TransactionKind(kind)
	tx.OccurredAt = fromNanos(occurredAt)
	tx.CreatedAt = fromNanos(createdAt)
	tx.UpdatedAt = fromNanos(updatedAt)
	return tx, nil
}

// filterClause renders the WHERE clause for an owner and filter.
func filterClause(ownerID string, f storage.TransactionFilter) (string, []any) {
	conds := []string{"owner_id = ?"}
	args := []any{ownerID}
	if f.CategoryID != nil {
		conds = append(conds, "category_id = ?")
		args = append(args, *f.CategoryID)
	}
	if f.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if !f.From.IsZero() {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, toNanos(f.From))
	}
	if !f.To.IsZero() {
		conds = append(conds, "occurred_at <= ?")
		args = append(args, toNanos(f.To))
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *Store) QueryTransactions(ctx context.Context, ownerID string, f storage.TransactionFilter) ([]core.Transaction, error) {
	where, args := filterClause(ownerID, f)
	rows, err := s.db.QueryContext(ctx, "SELECT "+transactionColumns+" FROM transactions"+where+" ORDER BY occurred_at, rowid", args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (s *Store) SumTransactions(ctx context.Context, ownerID string, f storage.TransactionFilter) (core.Money, error) {
	return sumTransactions(ctx, s.db, ownerID, f)
}

func sumTransactions(ctx context.Context, q queryer, ownerID string, f storage.TransactionFilter) (core.Money, error) {
	where, args := filterClause(ownerID, f)
	var total int64
	if err := q.QueryRowContext(ctx, "SELECT COALESCE(SUM(amount_cents), 0) FROM transactions"+where, args...).Scan(&total); err != nil {
		return core.Money{}, fmt.Errorf("sum transactions: %w", err)
	}
	return core.Cents(total), nil
}

func (s *Store) InsertTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if tx.ID == "" {
		tx.ID = core.NewID()
	}
	now := s.now()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.OwnerID, tx.CategoryID, string(tx.Kind), tx.Amount.Cents, tx.Currency,
		toNanos(tx.OccurredAt), tx.Description, tx.Note, toNanos(tx.CreatedAt), toNanos(tx.UpdatedAt))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return tx, nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	tx, err := scanTransaction(s.db.QueryRowContext(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id))
	if err != nil {
		return core.Transaction{}, notFound(err, core.KindTransaction, id, "get transaction")
	}
	return tx, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE transactions
		SET category_id = ?, amount_cents = ?, currency = ?, occurred_at = ?,
			description = ?, note = ?, updated_at = ?
		WHERE id = ?`,
		tx.CategoryID, tx.Amount.Cents, tx.Currency, toNanos(tx.OccurredAt),
		tx.Description, tx.Note, toNanos(tx.UpdatedAt), tx.ID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Transaction{}, &core.NotFoundError{Kind: core.KindTransaction, ID: tx.ID}
	}
	return tx, nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.NotFoundError{Kind: core.KindTransaction, ID: id}
	}
	return nil
}
