package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"fintrack/internal/core"
)

func (s *Store) UpsertCategory(ctx context.Context, c core.Category) error {
	if err := c.Validate(); err != nil {
		return err
	}
	labels, err := json.Marshal(c.Labels)
	if err != nil {
		return fmt.Errorf("encode labels: %w", err)
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO categories (owner_id, id, kind, labels)
		VALUES ($1, $2, $3, $4::jsonb)
		ON CONFLICT (owner_id, id) DO UPDATE SET kind = EXCLUDED.kind, labels = EXCLUDED.labels`,
		c.OwnerID, c.ID, string(c.Kind), string(labels))
	if err != nil {
		return fmt.Errorf("upsert category: %w", err)
	}
	return nil
}

func (s *Store) ListCategories(ctx context.Context, ownerID string) ([]core.Category, error) {
	rows, err := s.pool.Query(ctx, `SELECT owner_id, id, kind, labels::text FROM categories
		WHERE owner_id = '' OR owner_id = $1
		ORDER BY kind, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var (
			c            core.Category
			kind, labels string
		)
		if err := rows.Scan(&c.OwnerID, &c.ID, &kind, &labels); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Kind = core.TransactionKind(kind)
		if err := json.Unmarshal([]byte(labels), &c.Labels); err != nil {
			return nil, fmt.Errorf("decode labels for %s: %w", c.ID, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}
