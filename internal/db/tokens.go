package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"turnstile/internal/models"
)

type TokenRepository struct {
	db *DB
}

func NewTokenRepository(db *DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Create mints a pending verification token for the account. Unlock tokens
// carry the target item, credit tokens carry the award amount.
func (r *TokenRepository) Create(ctx context.Context, accountID string, purpose models.TokenPurpose, itemID *string, award int64) (*models.VerifyToken, error) {
	id, err := GenerateID("vtk")
	if err != nil {
		return nil, fmt.Errorf("generating token ID: %w", err)
	}
	token, err := GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("generating token: %w", err)
	}
	now := time.Now().UTC()

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO verify_tokens (id, token, account_id, purpose, item_id, award, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, token, accountID, purpose, itemID, award, models.TokenPending, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating verification token: %w", err)
	}

	return &models.VerifyToken{
		ID:        id,
		Token:     token,
		AccountID: accountID,
		Purpose:   purpose,
		ItemID:    itemID,
		Award:     award,
		Status:    models.TokenPending,
		CreatedAt: now,
	}, nil
}

func (r *TokenRepository) FindByToken(ctx context.Context, token string) (*models.VerifyToken, error) {
	var t models.VerifyToken
	var itemID sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, token, account_id, purpose, item_id, award, status, created_at FROM verify_tokens WHERE token = ?`,
		token,
	).Scan(&t.ID, &t.Token, &t.AccountID, &t.Purpose, &itemID, &t.Award, &t.Status, &t.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying verification token: %w", err)
	}

	if itemID.Valid {
		t.ItemID = &itemID.String
	}

	return &t, nil
}

// MarkVerified moves a pending token to verified. It only fires for tokens
// still pending and created after notBefore; anything else is a no-op, which
// keeps the external verifier's callback idempotent.
func (r *TokenRepository) MarkVerified(ctx context.Context, token string, notBefore time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE verify_tokens SET status = ? WHERE token = ? AND status = ? AND created_at > ?`,
		models.TokenVerified, token, models.TokenPending, notBefore.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("marking token verified: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}

	return rows > 0, nil
}

// MarkExpired transitions a pending or verified token to expired. Expiry is
// evaluated lazily by callers; this just records the transition.
func (r *TokenRepository) MarkExpired(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE verify_tokens SET status = ? WHERE id = ? AND status IN (?, ?)`,
		models.TokenExpired, id, models.TokenPending, models.TokenVerified,
	)
	if err != nil {
		return fmt.Errorf("expiring token: %w", err)
	}
	return nil
}

// ConsumeVerified atomically moves a verified token to used and returns it.
// The status guard in the UPDATE makes consumption exactly-once: of two
// concurrent claims, only one sees a row. Returns ErrNotFound otherwise.
func (r *TokenRepository) ConsumeVerified(ctx context.Context, token string) (*models.VerifyToken, error) {
	var t models.VerifyToken
	var itemID sql.NullString

	err := r.db.QueryRowContext(ctx,
		`UPDATE verify_tokens
         SET status = ?
       WHERE token = ?
         AND status = ?
       RETURNING id, token, account_id, purpose, item_id, award, status, created_at`,
		models.TokenUsed, token, models.TokenVerified,
	).Scan(&t.ID, &t.Token, &t.AccountID, &t.Purpose, &itemID, &t.Award, &t.Status, &t.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("consuming verification token: %w", err)
	}

	if itemID.Valid {
		t.ItemID = &itemID.String
	}

	return &t, nil
}

// DeleteStale removes token rows old enough that no lazy-expiry observer can
// still need them. Garbage collection only; the expiry contract is enforced
// at check time.
func (r *TokenRepository) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM verify_tokens WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("deleting stale tokens: %w", err)
	}

	return result.RowsAffected()
}
