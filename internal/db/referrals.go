package db

import (
	"context"
	"fmt"
	"time"

	"turnstile/internal/models"
)

type ReferralRepository struct {
	db *DB
}

func NewReferralRepository(db *DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

// Create inserts a referral row. The unique constraint on referred_id is the
// synchronization primitive: of two concurrent attempts to refer the same
// account, exactly one insert lands. Returns created=false on the duplicate,
// which callers treat as a silent no-op.
func (r *ReferralRepository) Create(ctx context.Context, referrerID, referredID string) (bool, error) {
	id, err := GenerateID("ref")
	if err != nil {
		return false, fmt.Errorf("generating referral ID: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO referrals (id, referrer_id, referred_id, created_at) VALUES (?, ?, ?, ?)`,
		id, referrerID, referredID, time.Now().UTC(),
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return false, nil
		}
		return false, fmt.Errorf("creating referral: %w", err)
	}

	return true, nil
}

func (r *ReferralRepository) CountForReferrer(ctx context.Context, referrerID string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM referrals WHERE referrer_id = ?`,
		referrerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting referrals: %w", err)
	}
	return count, nil
}

func (r *ReferralRepository) ListForReferrer(ctx context.Context, referrerID string) ([]*models.Referral, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, referrer_id, referred_id, created_at FROM referrals WHERE referrer_id = ? ORDER BY created_at DESC`,
		referrerID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying referrals: %w", err)
	}
	defer rows.Close()

	var referrals []*models.Referral
	for rows.Next() {
		var ref models.Referral
		if err := rows.Scan(&ref.ID, &ref.ReferrerID, &ref.ReferredID, &ref.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning referral: %w", err)
		}
		referrals = append(referrals, &ref)
	}

	return referrals, rows.Err()
}
