package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"turnstile/internal/models"
)

type GrantRepository struct {
	db *DB
}

func NewGrantRepository(db *DB) *GrantRepository {
	return &GrantRepository{db: db}
}

// Upsert records or renews time-boxed access: an existing (account, item)
// row gets its unlocked_at overwritten, never duplicated. Last writer wins.
func (r *GrantRepository) Upsert(ctx context.Context, accountID, itemID string, unlockedAt time.Time) (*models.AccessGrant, error) {
	id, err := GenerateID("grt")
	if err != nil {
		return nil, fmt.Errorf("generating grant ID: %w", err)
	}

	var g models.AccessGrant
	err = r.db.QueryRowContext(ctx,
		`INSERT INTO access_grants (id, account_id, item_id, unlocked_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT (account_id, item_id) DO UPDATE SET unlocked_at = excluded.unlocked_at
         RETURNING id, account_id, item_id, unlocked_at`,
		id, accountID, itemID, unlockedAt.UTC(),
	).Scan(&g.ID, &g.AccountID, &g.ItemID, &g.UnlockedAt)
	if err != nil {
		return nil, fmt.Errorf("upserting access grant: %w", err)
	}

	return &g, nil
}

func (r *GrantRepository) Find(ctx context.Context, accountID, itemID string) (*models.AccessGrant, error) {
	var g models.AccessGrant

	err := r.db.QueryRowContext(ctx,
		`SELECT id, account_id, item_id, unlocked_at FROM access_grants WHERE account_id = ? AND item_id = ?`,
		accountID, itemID,
	).Scan(&g.ID, &g.AccountID, &g.ItemID, &g.UnlockedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying access grant: %w", err)
	}

	return &g, nil
}
