package db

import (
	"context"
	"fmt"
	"time"

	"turnstile/internal/models"
)

type ChannelRepository struct {
	db *DB
}

func NewChannelRepository(db *DB) *ChannelRepository {
	return &ChannelRepository{db: db}
}

func (r *ChannelRepository) Add(ctx context.Context, channelID, title, inviteURL string) (*models.RequiredChannel, error) {
	id, err := GenerateID("chn")
	if err != nil {
		return nil, fmt.Errorf("generating channel ID: %w", err)
	}
	now := time.Now().UTC()

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO required_channels (id, channel_id, title, invite_url, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, channelID, title, inviteURL, now,
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("creating required channel: %w", err)
	}

	return &models.RequiredChannel{
		ID:        id,
		ChannelID: channelID,
		Title:     title,
		InviteURL: inviteURL,
		CreatedAt: now,
	}, nil
}

func (r *ChannelRepository) Remove(ctx context.Context, channelID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM required_channels WHERE channel_id = ?`, channelID)
	if err != nil {
		return fmt.Errorf("deleting required channel: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *ChannelRepository) List(ctx context.Context) ([]*models.RequiredChannel, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, channel_id, title, invite_url, created_at FROM required_channels ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying required channels: %w", err)
	}
	defer rows.Close()

	var channels []*models.RequiredChannel
	for rows.Next() {
		var c models.RequiredChannel
		if err := rows.Scan(&c.ID, &c.ChannelID, &c.Title, &c.InviteURL, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning required channel: %w", err)
		}
		channels = append(channels, &c)
	}

	return channels, rows.Err()
}
