package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"turnstile/internal/models"
)

type AccountRepository struct {
	db *DB
}

func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// GetOrCreate upserts an account keyed by its external identity. The role is
// only applied on first creation; an existing row keeps its stored role.
func (r *AccountRepository) GetOrCreate(ctx context.Context, externalID, displayName string, role models.Role) (*models.Account, bool, error) {
	account, err := r.FindByExternalID(ctx, externalID)
	if err == nil {
		return account, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	id, err := GenerateID("acc")
	if err != nil {
		return nil, false, fmt.Errorf("generating account ID: %w", err)
	}
	now := time.Now().UTC()

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, external_id, display_name, role, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, externalID, displayName, role, now,
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			// Lost the insert race; the other writer's row wins.
			account, err := r.FindByExternalID(ctx, externalID)
			return account, false, err
		}
		return nil, false, fmt.Errorf("creating account: %w", err)
	}

	return &models.Account{
		ID:          id,
		ExternalID:  externalID,
		DisplayName: displayName,
		Role:        role,
		CreatedAt:   now,
	}, true, nil
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	return r.findOne(ctx, `SELECT id, external_id, display_name, balance, last_credit_reset, is_premium, premium_expires_at, role, banned_at, created_at FROM accounts WHERE id = ?`, id)
}

func (r *AccountRepository) FindByExternalID(ctx context.Context, externalID string) (*models.Account, error) {
	return r.findOne(ctx, `SELECT id, external_id, display_name, balance, last_credit_reset, is_premium, premium_expires_at, role, banned_at, created_at FROM accounts WHERE external_id = ?`, externalID)
}

// SpendCredit decrements the balance by cost only if the stored balance
// covers it and appends the matching ledger entry, in one transaction.
// Returns ok=false when the balance was insufficient.
func (r *AccountRepository) SpendCredit(ctx context.Context, accountID string, cost int64) (int64, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("starting spend transaction: %w", err)
	}
	defer tx.Rollback()

	var newBalance int64
	err = tx.QueryRowContext(ctx,
		`UPDATE accounts SET balance = balance - ? WHERE id = ? AND balance >= ? RETURNING balance`,
		cost, accountID, cost,
	).Scan(&newBalance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("decrementing balance: %w", err)
	}

	if err := insertLedgerEntry(ctx, tx, accountID, -cost, models.ReasonAccess); err != nil {
		return 0, false, err
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("committing spend: %w", err)
	}

	return newBalance, true, nil
}

// AddCredits increments the balance and appends the matching ledger entry,
// in one transaction.
func (r *AccountRepository) AddCredits(ctx context.Context, accountID string, amount int64, reason string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting credit transaction: %w", err)
	}
	defer tx.Rollback()

	var newBalance int64
	err = tx.QueryRowContext(ctx,
		`UPDATE accounts SET balance = balance + ? WHERE id = ? RETURNING balance`,
		amount, accountID,
	).Scan(&newBalance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("incrementing balance: %w", err)
	}

	if err := insertLedgerEntry(ctx, tx, accountID, amount, reason); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing credit: %w", err)
	}

	return newBalance, nil
}

// ZeroBalance resets the balance to zero, recording the removal in the
// ledger so the audit trail still sums to the cached balance.
func (r *AccountRepository) ZeroBalance(ctx context.Context, accountID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting zero-balance transaction: %w", err)
	}
	defer tx.Rollback()

	var balance int64
	err = tx.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE id = ?`, accountID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("reading balance: %w", err)
	}

	if balance == 0 {
		return nil
	}

	if _, err := tx.ExecContext(ctx, `UPDATE accounts SET balance = 0 WHERE id = ?`, accountID); err != nil {
		return fmt.Errorf("zeroing balance: %w", err)
	}

	if err := insertLedgerEntry(ctx, tx, accountID, -balance, models.ReasonAdmin); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing zero-balance: %w", err)
	}

	return nil
}

// ResetCycle starts a fresh earning cycle: balance back to zero and the
// cooldown anchor moved to now. A forfeited balance is recorded as a
// negative ledger entry so the audit trail still sums to the cached balance.
func (r *AccountRepository) ResetCycle(ctx context.Context, accountID string, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting cycle-reset transaction: %w", err)
	}
	defer tx.Rollback()

	var balance int64
	err = tx.QueryRowContext(ctx,
		`UPDATE accounts SET last_credit_reset = ? WHERE id = ? RETURNING balance`,
		now.UTC(), accountID,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("resetting credit cycle: %w", err)
	}

	if balance != 0 {
		if _, err := tx.ExecContext(ctx, `UPDATE accounts SET balance = 0 WHERE id = ?`, accountID); err != nil {
			return fmt.Errorf("zeroing cycle balance: %w", err)
		}
		if err := insertLedgerEntry(ctx, tx, accountID, -balance, models.ReasonReset); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing cycle reset: %w", err)
	}

	return nil
}

// SetAnchorIfUnset sets the cooldown anchor only when it has never been set.
func (r *AccountRepository) SetAnchorIfUnset(ctx context.Context, accountID string, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET last_credit_reset = ? WHERE id = ? AND last_credit_reset IS NULL`,
		now.UTC(), accountID,
	)
	if err != nil {
		return fmt.Errorf("setting credit anchor: %w", err)
	}
	return nil
}

func (r *AccountRepository) SetBanned(ctx context.Context, accountID string, banned bool) error {
	var result sql.Result
	var err error
	if banned {
		result, err = r.db.ExecContext(ctx, `UPDATE accounts SET banned_at = ? WHERE id = ?`, time.Now().UTC(), accountID)
	} else {
		result, err = r.db.ExecContext(ctx, `UPDATE accounts SET banned_at = NULL WHERE id = ?`, accountID)
	}
	if err != nil {
		return fmt.Errorf("updating ban state: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *AccountRepository) SetPremium(ctx context.Context, accountID string, premium bool, expiresAt *time.Time) error {
	var expiry any
	if expiresAt != nil {
		expiry = expiresAt.UTC()
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET is_premium = ?, premium_expires_at = ? WHERE id = ?`,
		premium, expiry, accountID,
	)
	if err != nil {
		return fmt.Errorf("updating premium state: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *AccountRepository) findOne(ctx context.Context, query string, args ...any) (*models.Account, error) {
	var a models.Account
	var lastReset, premiumExpires, bannedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&a.ID,
		&a.ExternalID,
		&a.DisplayName,
		&a.Balance,
		&lastReset,
		&a.IsPremium,
		&premiumExpires,
		&a.Role,
		&bannedAt,
		&a.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying account: %w", err)
	}

	a.LastCreditReset = nullTimeToPtr(lastReset)
	a.PremiumExpiresAt = nullTimeToPtr(premiumExpires)
	a.BannedAt = nullTimeToPtr(bannedAt)

	return &a, nil
}
