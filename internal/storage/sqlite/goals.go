package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"fintrack/internal/core"
)

const goalColumns = `id, owner_id, name, target_cents, current_cents, currency, target_date,
	is_achieved, achieved_at, version, created_at, updated_at`

func scanGoal(row interface{ Scan(...any) error }) (core.Goal, error) {
	var (
		g                      core.Goal
		targetDate, achievedAt sql.NullInt64
		isAchieved             int64
		createdAt, updatedAt   int64
	)
	err := row.Scan(&g.ID, &g.OwnerID, &g.Name, &g.Target.Cents, &g.Current.Cents, &g.Currency, &targetDate,
		&isAchieved, &achievedAt, &g.Version, &createdAt, &updatedAt)
	if err != nil {
		return core.Goal{}, err
	}
	g.TargetDate = fromNullTime(targetDate)
	g.IsAchieved = isAchieved != 0
	g.AchievedAt = fromNullTime(achievedAt)
	g.CreatedAt = fromNanos(createdAt)
	g.UpdatedAt = fromNanos(updatedAt)
	return g, nil
}

func loadGoal(ctx context.Context, q queryer, id string) (core.Goal, error) {
	g, err := scanGoal(q.QueryRowContext(ctx, "SELECT "+goalColumns+" FROM goals WHERE id = ?", id))
	if err != nil {
		return core.Goal{}, notFound(err, core.KindGoal, id, "get goal")
	}
	return g, nil
}

func (s *Store) InsertGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	if g.ID == "" {
		g.ID = core.NewID()
	}
	g.Version = 1
	_, err := s.db.ExecContext(ctx, `INSERT INTO goals (`+goalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.OwnerID, g.Name, g.Target.Cents, g.Current.Cents, g.Currency, nullTime(g.TargetDate),
		boolInt(g.IsAchieved), nullTime(g.AchievedAt), g.Version, toNanos(g.CreatedAt), toNanos(g.UpdatedAt))
	if err != nil {
		return core.Goal{}, fmt.Errorf("insert goal: %w", err)
	}
	return g, nil
}

func (s *Store) GetGoal(ctx context.Context, id string) (core.Goal, error) {
	return loadGoal(ctx, s.db, id)
}

func (s *Store) ListGoals(ctx context.Context, ownerID string) ([]core.Goal, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+goalColumns+" FROM goals WHERE owner_id = ? ORDER BY created_at, rowid", ownerID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate goals: %w", err)
	}
	return out, nil
}

func (s *Store) MutateGoal(ctx context.Context, id string, fn func(*core.Goal) error) (core.Goal, error) {
	return mutate(ctx, s, core.KindGoal, id, loadGoal,
		func(g core.Goal) int64 { return g.Version },
		func(cur core.Goal, next *core.Goal) {
			next.ID, next.OwnerID = cur.ID, cur.OwnerID
			next.Version = cur.Version + 1
		},
		saveGoal, fn)
}

func saveGoal(ctx context.Context, tx *sql.Tx, g core.Goal, prevVersion int64) (int64, error) {
	res, err := tx.ExecContext(ctx, `UPDATE goals
		SET name = ?, target_cents = ?, current_cents = ?, currency = ?, target_date = ?,
			is_achieved = ?, achieved_at = ?, version = ?, updated_at = ?
		WHERE id = ? AND version = ?`,
		g.Name, g.Target.Cents, g.Current.Cents, g.Currency, nullTime(g.TargetDate),
		boolInt(g.IsAchieved), nullTime(g.AchievedAt), g.Version, toNanos(g.UpdatedAt),
		g.ID, prevVersion)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
