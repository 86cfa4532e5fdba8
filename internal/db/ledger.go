package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"turnstile/internal/models"
)

// execer covers both *sql.DB and *sql.Tx so ledger rows can be appended
// inside the balance-mutating transactions in accounts.go.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertLedgerEntry(ctx context.Context, tx execer, accountID string, amount int64, reason string) error {
	id, err := GenerateID("led")
	if err != nil {
		return fmt.Errorf("generating ledger entry ID: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO credit_ledger (id, account_id, amount, reason, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, accountID, amount, reason, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("appending ledger entry: %w", err)
	}
	return nil
}

type LedgerRepository struct {
	db *DB
}

func NewLedgerRepository(db *DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) ListForAccount(ctx context.Context, accountID string, limit int) ([]*models.CreditEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, account_id, amount, reason, created_at FROM credit_ledger WHERE account_id = ? ORDER BY created_at DESC LIMIT ?`,
		accountID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying ledger: %w", err)
	}
	defer rows.Close()

	var entries []*models.CreditEntry
	for rows.Next() {
		var e models.CreditEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Amount, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning ledger entry: %w", err)
		}
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}

// SumForAccount recomputes the balance from the audit trail. The cached
// balance on the account row is the read source of truth; this exists for
// consistency checks.
func (r *LedgerRepository) SumForAccount(ctx context.Context, accountID string) (int64, error) {
	var sum int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM credit_ledger WHERE account_id = ?`,
		accountID,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("summing ledger: %w", err)
	}
	return sum, nil
}
