package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

const selectTransaction = `SELECT id::text, owner_id, category_id, kind, amount_cents, currency, occurred_at,
	description, note, created_at, updated_at FROM transactions`

func scanTransaction(row pgx.Row) (core.Transaction, error) {
	var (
		tx   core.Transaction
		kind string
	)
	err := row.Scan(&tx.ID, &tx.OwnerID, &tx.CategoryID, &kind, &tx.Amount.Cents, &tx.Currency,
		&tx.OccurredAt, &tx.Description, &tx.Note, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.Kind = core.TransactionKind(kind)
	tx.OccurredAt = tx.OccurredAt.UTC()
	tx.CreatedAt = tx.CreatedAt.UTC()
	tx.UpdatedAt = tx.UpdatedAt.UTC()
	return tx, nil
}

func filterClause(ownerID string, f storage.TransactionFilter) (string, []any) {
	args := []any{ownerID}
	conds := []string{"owner_id = $1"}
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.CategoryID != nil {
		add("category_id = $%d", *f.CategoryID)
	}
	if f.Kind != "" {
		add("kind = $%d", string(f.Kind))
	}
	if !f.From.IsZero() {
		add("occurred_at >= $%d", ts(f.From))
	}
	if !f.To.IsZero() {
		add("occurred_at <= $%d", ts(f.To))
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *Store) QueryTransactions(ctx context.Context, ownerID string, f storage.TransactionFilter) ([]core.Transaction, error) {
	where, args := filterClause(ownerID, f)
	rows, err := s.pool.Query(ctx, selectTransaction+where+" ORDER BY occurred_at, created_at", args...)
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
	return sumTransactions(ctx, s.pool, ownerID, f)
}

func sumTransactions(ctx context.Context, q querier, ownerID string, f storage.TransactionFilter) (core.Money, error) {
	where, args := filterClause(ownerID, f)
	var total int64
	if err := q.QueryRow(ctx, "SELECT COALESCE(SUM(amount_cents), 0)::bigint FROM transactions"+where, args...).Scan(&total); err != nil {
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
	now := ts(s.now())
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now
	tx.OccurredAt = ts(tx.OccurredAt)

	_, err := s.pool.Exec(ctx, `INSERT INTO transactions
		(id, owner_id, category_id, kind, amount_cents, currency, occurred_at, description, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		tx.ID, tx.OwnerID, tx.CategoryID, string(tx.Kind), tx.Amount.Cents, tx.Currency,
		tx.OccurredAt, tx.Description, tx.Note, tx.CreatedAt, tx.UpdatedAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return tx, nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	if !validID(id) {
		return core.Transaction{}, &core.NotFoundError{Kind: core.KindTransaction, ID: id}
	}
	tx, err := scanTransaction(s.pool.QueryRow(ctx, selectTransaction+" WHERE id = $1", id))
	if err != nil {
		return core.Transaction{}, notFound(err, core.KindTransaction, id, "get transaction")
	}
	return tx, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if !validID(tx.ID) {
		return core.Transaction{}, &core.NotFoundError{Kind: core.KindTransaction, ID: tx.ID}
	}
	tx.OccurredAt = ts(tx.OccurredAt)
	tag, err := s.pool.Exec(ctx, `UPDATE transactions
		SET category_id = $1, amount_cents = $2, currency = $3, occurred_at = $4,
			description = $5, note = $6, updated_at = $7
		WHERE id = $8`,
		tx.CategoryID, tx.Amount.Cents, tx.Currency, tx.OccurredAt,
		tx.Description, tx.Note, ts(tx.UpdatedAt), tx.ID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.Transaction{}, &core.NotFoundError{Kind: core.KindTransaction, ID: tx.ID}
	}
	return tx, nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	if !validID(id) {
		return &core.NotFoundError{Kind: core.KindTransaction, ID: id}
	}
	tag, err := s.pool.Exec(ctx, "DELETE FROM transactions WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &core.NotFoundError{Kind: core.KindTransaction, ID: id}
	}
	return nil
}
