package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"fintrack/internal/core"
)

const debtColumns = `id, owner_id, creditor_name, debtor_name, debt_type, original_cents,
	remaining_cents, minimum_payment_cents, currency, due_date, priority, status,
	is_settled, settled_at, description, version, created_at, updated_at`

func scanDebt(row interface{ Scan(...any) error }) (core.Debt, error) {
	var (
		d                      core.Debt
		debtType, prio, status string
		dueDate, settledAt     sql.NullInt64
		isSettled              int64
		createdAt, updatedAt   int64
	)
	err := row.Scan(&d.ID, &d.OwnerID, &d.CreditorName, &d.DebtorName, &debtType, &d.Original.Cents,
		&d.Remaining.Cents, &d.MinimumPayment.Cents, &d.Currency, &dueDate, &prio, &status,
		&isSettled, &settledAt, &d.Description, &d.Version, &createdAt, &updatedAt)
	if err != nil {
		return core.Debt{}, err
	}
	d.Type = core.DebtType(debtType)
	d.Priority = core.Priority(prio)
	d.Status = core.DebtStatus(status)
	d.DueDate = fromNullTime(dueDate)
	d.IsSettled = isSettled != 0
	d.SettledAt = fromNullTime(settledAt)
	d.CreatedAt = fromNanos(createdAt)
	d.UpdatedAt = fromNanos(updatedAt)
	return d, nil
}

func loadDebt(ctx context.Context, q queryer, id string) (core.Debt, error) {
	d, err := scanDebt(q.QueryRowContext(ctx, "SELECT "+debtColumns+" FROM debts WHERE id = ?", id))
	if err != nil {
		return core.Debt{}, notFound(err, core.KindDebt, id, "get debt")
	}
	return d, nil
}

func (s *Store) InsertDebt(ctx context.Context, d core.Debt) (core.Debt, error) {
	if d.ID == "" {
		d.ID = core.NewID()
	}
	d.Version = 1
	_, err := s.db.ExecContext(ctx, `INSERT INTO debts (`+debtColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.OwnerID, d.CreditorName, d.DebtorName, string(d.Type), d.Original.Cents,
		d.Remaining.Cents, d.MinimumPayment.Cents, d.Currency, nullTime(d.DueDate), string(d.Priority), string(d.Status),
		boolInt(d.IsSettled), nullTime(d.SettledAt), d.Description, d.Version, toNanos(d.CreatedAt), toNanos(d.UpdatedAt))
	if err != nil {
		return core.Debt{}, fmt.Errorf("insert debt: %w", err)
	}
	return d, nil
}

func (s *Store) GetDebt(ctx context.Context, id string) (core.Debt, error) {
	return loadDebt(ctx, s.db, id)
}

func (s *Store) ListDebts(ctx context.Context, ownerID string) ([]core.Debt, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+debtColumns+" FROM debts WHERE owner_id = ? ORDER BY created_at, rowid", ownerID)
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
	return mutate(ctx, s, core.KindDebt, id, loadDebt,
		func(d core.Debt) int64 { return d.Version },
		func(cur core.Debt, next *core.Debt) {
			next.ID, next.OwnerID = cur.ID, cur.OwnerID
			next.Version = cur.Version + 1
		},
		saveDebt, fn)
}

func saveDebt(ctx context.Context, tx *sql.Tx, d core.Debt, prevVersion int64) (int64, error) {
	res, err := tx.ExecContext(ctx, `UPDATE debts
		SET creditor_name = ?, debtor_name = ?, remaining_cents = ?, minimum_payment_cents = ?,
			currency = ?, due_date = ?, priority = ?, status = ?, is_settled = ?, settled_at = ?,
			description = ?, version = ?, updated_at = ?
		WHERE id = ? AND version = ?`,
		d.CreditorName, d.DebtorName, d.Remaining.Cents, d.MinimumPayment.Cents,
		d.Currency, nullTime(d.DueDate), string(d.Priority), string(d.Status), boolInt(d.IsSettled), nullTime(d.SettledAt),
		d.Description, d.Version, toNanos(d.UpdatedAt),
		d.ID, prevVersion)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
