package entitlement

import (
	"context"
	"fmt"
	"time"

	"turnstile/internal/models"
)

// EarnStatus is the answer to "can this account earn credits right now".
// When blocked, Remaining says how long until the current cycle ends.
type EarnStatus struct {
	Allowed   bool       `json:"allowed"`
	Balance   int64      `json:"balance"`
	Remaining *Remaining `json:"remaining,omitempty"`
}

// CanEarn evaluates the per-cycle earning cap. The cap is enforced per
// cycle, not per transaction: an account at cap waits out the full cycle,
// an account below cap may earn again immediately. A cycle that has fully
// elapsed resets the balance to zero and restarts the window.
func (s *Service) CanEarn(ctx context.Context, account *models.Account) (*EarnStatus, error) {
	now := time.Now().UTC()

	// Never earned: eligible, the anchor is set on first earn.
	if account.LastCreditReset == nil {
		return &EarnStatus{Allowed: true, Balance: account.Balance}, nil
	}

	elapsed := now.Sub(*account.LastCreditReset)
	if elapsed >= s.cfg.CreditCycle {
		if err := s.accounts.ResetCycle(ctx, account.ID, now); err != nil {
			return nil, fmt.Errorf("resetting credit cycle: %w", err)
		}
		account.Balance = 0
		account.LastCreditReset = &now
		return &EarnStatus{Allowed: true, Balance: 0}, nil
	}

	if account.Balance >= s.cfg.CreditCap {
		left := remainingIn(s.cfg.CreditCycle - elapsed)
		return &EarnStatus{Allowed: false, Balance: account.Balance, Remaining: &left}, nil
	}

	return &EarnStatus{Allowed: true, Balance: account.Balance}, nil
}

// earn applies a credit award: ledger entry plus cached balance, and pins
// the cooldown anchor if this is the account's first earn.
func (s *Service) earn(ctx context.Context, accountID string, amount int64) (int64, error) {
	balance, err := s.accounts.AddCredits(ctx, accountID, amount, models.ReasonVerification)
	if err != nil {
		return 0, fmt.Errorf("crediting account: %w", err)
	}
	if err := s.accounts.SetAnchorIfUnset(ctx, accountID, time.Now().UTC()); err != nil {
		return 0, err
	}
	return balance, nil
}
