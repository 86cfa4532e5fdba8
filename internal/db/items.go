package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"turnstile/internal/models"
)

type ItemRepository struct {
	db *DB
}

func NewItemRepository(db *DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// Create inserts a content item and its delivery assets in one transaction.
// Asset IDs are assigned here; positions follow the given order.
func (r *ItemRepository) Create(ctx context.Context, title, description string, published bool, assets []models.ContentAsset) (*models.ContentItem, error) {
	id, err := GenerateID("itm")
	if err != nil {
		return nil, fmt.Errorf("generating item ID: %w", err)
	}
	now := time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting item transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO content_items (id, title, description, published, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, title, description, published, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating content item: %w", err)
	}

	for i, asset := range assets {
		assetID, err := GenerateID("ast")
		if err != nil {
			return nil, fmt.Errorf("generating asset ID: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO content_assets (id, item_id, kind, location, position) VALUES (?, ?, ?, ?, ?)`,
			assetID, id, asset.Kind, asset.Location, i,
		)
		if err != nil {
			return nil, fmt.Errorf("creating content asset: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing item: %w", err)
	}

	return &models.ContentItem{
		ID:          id,
		Title:       title,
		Description: description,
		Published:   published,
		CreatedAt:   now,
	}, nil
}

func (r *ItemRepository) FindByID(ctx context.Context, id string) (*models.ContentItem, error) {
	var item models.ContentItem
	var updatedAt sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, description, published, created_at, updated_at FROM content_items WHERE id = ?`,
		id,
	).Scan(&item.ID, &item.Title, &item.Description, &item.Published, &item.CreatedAt, &updatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying content item: %w", err)
	}

	item.UpdatedAt = nullTimeToPtr(updatedAt)

	return &item, nil
}

func (r *ItemRepository) ListAssets(ctx context.Context, itemID string) ([]models.ContentAsset, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, item_id, kind, location, position FROM content_assets WHERE item_id = ? ORDER BY position`,
		itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying content assets: %w", err)
	}
	defer rows.Close()

	var assets []models.ContentAsset
	for rows.Next() {
		var a models.ContentAsset
		if err := rows.Scan(&a.ID, &a.ItemID, &a.Kind, &a.Location, &a.Position); err != nil {
			return nil, fmt.Errorf("scanning content asset: %w", err)
		}
		assets = append(assets, a)
	}

	return assets, rows.Err()
}

func (r *ItemRepository) SetPublished(ctx context.Context, id string, published bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE content_items SET published = ?, updated_at = ? WHERE id = ?`,
		published, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating publish state: %w", err)
	}
	return checkRowsAffected(result)
}

// Delete removes the item; assets, access grants, and verification tokens
// targeting it go with it via ON DELETE CASCADE.
func (r *ItemRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM content_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting content item: %w", err)
	}
	return checkRowsAffected(result)
}

// List returns items matching the title filter, newest first. An empty
// filter returns everything.
func (r *ItemRepository) List(ctx context.Context, titleFilter string, limit int) ([]*models.ContentItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, description, published, created_at, updated_at
         FROM content_items
         WHERE title LIKE '%' || ? || '%'
         ORDER BY created_at DESC
         LIMIT ?`,
		titleFilter, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying content items: %w", err)
	}
	defer rows.Close()

	var items []*models.ContentItem
	for rows.Next() {
		var item models.ContentItem
		var updatedAt sql.NullTime

		if err := rows.Scan(&item.ID, &item.Title, &item.Description, &item.Published, &item.CreatedAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning content item: %w", err)
		}

		item.UpdatedAt = nullTimeToPtr(updatedAt)
		items = append(items, &item)
	}

	return items, rows.Err()
}
