package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"fintrack/internal/core"
)

const selectDebt = `SELECT id::text, owner_id, creditor_name, debtor_name, debt_type, original_cents,
	remaining_cents, minimum_payment_cents, currency, due_date, priority, status,
	is_settled, settled_at, description, version, created_at, updated_at FROM debts`

func scanDebt(row pgx.Row) (core.Debt, error) {
	var (
		d                      core.Debt
		debtType, prio, status string
		dueDate, settledAt     *time.Time
	)
	err := row.Scan(&d.ID, &d.OwnerID, &d.CreditorName, &d.DebtorName, &debtType, &d.Original.Cents,
		&d.Remaining.Cents, &d.MinimumPayment.Cents, &d.Currency, &dueDate, &prio, &status,
		&d.IsSettled, &settledAt, &d.Description, &d.Version, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return core.Debt{}, err
	}
	d.Type = core.DebtType(debtType)
	d.Priority = core.Priority(prio)
	d.Status = core.DebtStatus(status)
	d.DueDate = fromNullTS(dueDate)
	d.SettledAt = fromNullTS(settledAt)
	d.CreatedAt = d.CreatedAt.UTC()
	d.UpdatedAt = d.UpdatedAt.UTC()
	return d, nil
}

func lockDebt(ctx context.Context, q querier, id string) (core.Debt, error) {
	d, err := scanDebt(q.QueryRow(ctx, selectDebt+" WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		return core.Debt{}, notFound(err, core.KindDebt, id, "lock debt")
	}
	return d, nil
}

func (s *Store) InsertDebt(ctx context.Context, d core.Debt) (core.Debt, error) {
	if d.ID == "" {
		d.ID = core.NewID()
	}
	d.Version = 1
	d.CreatedAt, d.UpdatedAt = ts(d.CreatedAt), ts(d.UpdatedAt)
	_, err := s.pool.Exec(ctx, `INSERT INTO debts
		(id, owner_id, creditor_name, debtor_name, debt_type, original_cents, remaining_cents,
		 minimum_payment_cents, currency, due_date, priority, status, is_settled, settled_at,
		 description, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		d.ID, d.OwnerID, d.CreditorName, d.DebtorName, string(d.Type), d.Original.Cents, d.Remaining.Cents,
		d.MinimumPayment.Cents, d.Currency, nullTS(d.DueDate), string(d.Priority), string(d.Status), d.IsSettled, nullTS(d.SettledAt),
		d.Description, d.Version, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return core.Debt{}, fmt.Errorf("insert debt: %w", err)
	}
	return d, nil
}

func (s *Store) GetDebt(ctx context.Context, id string) (core.Debt, error) {
	if !validID(id) {
		return core.Debt{}, &core.NotFoundError{Kind: core.KindDebt, ID: id}
	}
	d, err := scanDebt(s.pool.QueryRow(ctx, selectDebt+" WHERE id = $1", id))
	if err != nil {
		return core.Debt{}, notFound(err, core.KindDebt, id, "get debt")
	}
	return d, nil
}

func (s *Store) ListDebts(ctx context.Context, ownerID string) ([]core.Debt, error) {
	rows, err := s.pool.Query(ctx, selectDebt+" WHERE owner_id = $1 ORDER BY created_at, id", ownerID)
	if err != nil {
		return nil, fmt.Errorf("list debts: %w", err)
	}
	defer rows.Close()

	var out []core.Debt
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan debt: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate debts: %w", err)
	}
	return out, nil
}

func (s *Store) MutateDebt(ctx context.Context, id string, fn func(*core.Debt) error) (core.Debt, error) {
	return mutate(ctx, s, core.KindDebt, id, lockDebt,
		func(d core.Debt) int64 { return d.Version },
		func(cur core.Debt, next *core.Debt) {
			next.ID, next.OwnerID = cur.ID, cur.OwnerID
			next.Version = cur.Version + 1
		},
		saveDebt, fn)
}

func saveDebt(ctx context.Context, tx pgx.Tx, d core.Debt, prevVersion int64) (int64, error) {
	tag, err := tx.Exec(ctx, `UPDATE debts
		SET creditor_name = $1, debtor_name = $2, remaining_cents = $3, minimum_payment_cents = $4,
			currency = $5, due_date = $6, priority = $7, status = $8, is_settled = $9, settled_at = $10,
			description = $11, version = $12, updated_at = $13
		WHERE id = $14 AND version = $15`,
		d.CreditorName, d.DebtorName, d.Remaining.Cents, d.MinimumPayment.Cents,
		d.Currency, nullTS(d.DueDate), string(d.Priority), string(d.Status), d.IsSettled, nullTS(d.SettledAt),
		d.Description, d.Version, ts(d.UpdatedAt),
		d.ID, prevVersion)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
