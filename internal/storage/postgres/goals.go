package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"fintrack/internal/core"
)

const selectGoal = `SELECT id::text, owner_id, name, target_cents, current_cents, currency, target_date,
	is_achieved, achieved_at, version, created_at, updated_at FROM goals`

func scanGoal(row pgx.Row) (core.Goal, error) {
	var (
		g                      core.Goal
		targetDate, achievedAt *time.Time
	)
	err := row.Scan(&g.ID, &g.OwnerID, &g.Name, &g.Target.Cents, &g.Current.Cents, &g.Currency, &targetDate,
		&g.IsAchieved, &achievedAt, &g.Version, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return core.Goal{}, err
	}
	g.TargetDate = fromNullTS(targetDate)
	g.AchievedAt = fromNullTS(achievedAt)
	g.CreatedAt = g.CreatedAt.UTC()
	g.UpdatedAt = g.UpdatedAt.UTC()
	return g, nil
}

func lockGoal(ctx context.Context, q querier, id string) (core.Goal, error) {
	g, err := scanGoal(q.QueryRow(ctx, selectGoal+" WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		return core.Goal{}, notFound(err, core.KindGoal, id, "lock goal")
	}
	return g, nil
}

func (s *Store) InsertGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	if g.ID == "" {
		g.ID = core.NewID()
	}
	g.Version = 1
	g.CreatedAt, g.UpdatedAt = ts(g.CreatedAt), ts(g.UpdatedAt)
	_, err := s.pool.Exec(ctx, `INSERT INTO goals
		(id, owner_id, name, target_cents, current_cents, currency, target_date,
		 is_achieved, achieved_at, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		g.ID, g.OwnerID, g.Name, g.Target.Cents, g.Current.Cents, g.Currency, nullTS(g.TargetDate),
		g.IsAchieved, nullTS(g.AchievedAt), g.Version, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return core.Goal{}, fmt.Errorf("insert goal: %w", err)
	}
	return g, nil
}

func (s *Store) GetGoal(ctx context.Context, id string) (core.Goal, error) {
	if !validID(id) {
		return core.Goal{}, &core.NotFoundError{Kind: core.KindGoal, ID: id}
	}
	g, err := scanGoal(s.pool.QueryRow(ctx, selectGoal+" WHERE id = $1", id))
	if err != nil {
		return core.Goal{}, notFound(err, core.KindGoal, id, "get goal")
	}
	return g, nil
}

func (s *Store) ListGoals(ctx context.Context, ownerID string) ([]core.Goal, error) {
	rows, err := s.pool.Query(ctx, selectGoal+" WHERE owner_id = $1 ORDER BY created_at, id", ownerID)
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
	return mutate(ctx, s, core.KindGoal, id, lockGoal,
		func(g core.Goal) int64 { return g.Version },
		func(cur core.Goal, next *core.Goal) {
			next.ID, next.OwnerID = cur.ID, cur.OwnerID
			next.Version = cur.Version + 1
		},
		saveGoal, fn)
}

func saveGoal(ctx context.Context, tx pgx.Tx, g core.Goal, prevVersion int64) (int64, error) {
	tag, err := tx.Exec(ctx, `UPDATE goals
		SET name = $1, target_cents = $2, current_cents = $3, currency = $4, target_date = $5,
			is_achieved = $6, achieved_at = $7, version = $8, updated_at = $9
		WHERE id = $10 AND version = $11`,
		g.Name, g.Target.Cents, g.Current.Cents, g.Currency, nullTS(g.TargetDate),
		g.IsAchieved, nullTS(g.AchievedAt), g.Version, ts(g.UpdatedAt),
		g.ID, prevVersion)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
