package entitlement

import (
	"time"

	"turnstile/internal/models"
)

// Outcome classifies the result of an entitlement request. Every outcome is
// a normal result value; handlers map them to responses without treating
// any of them as a fault.
type Outcome string

const (
	// OutcomeGranted carries the item and its delivery assets.
	OutcomeGranted Outcome = "granted"
	// OutcomeCredited is the credit-token counterpart of Granted.
	OutcomeCredited Outcome = "credited"
	// OutcomeDenied is terminal: the account is banned.
	OutcomeDenied Outcome = "denied"
	// OutcomeNeedsSubscription lists the unmet force-subscribe channels.
	OutcomeNeedsSubscription Outcome = "needs_subscription"
	// OutcomeNotFound covers unknown items and unknown or foreign tokens.
	OutcomeNotFound Outcome = "not_found"
	// OutcomeNeedsVerification carries a freshly minted token and the
	// external verification URL the user must complete.
	OutcomeNeedsVerification Outcome = "needs_verification"
	// OutcomeStillPending: the external step has not been confirmed yet.
	OutcomeStillPending Outcome = "still_pending"
	// OutcomeExpired is terminal for that token; a new one must be minted.
	OutcomeExpired Outcome = "expired"
	// OutcomeAlreadyUsed: the token's benefit was applied earlier.
	OutcomeAlreadyUsed Outcome = "already_used"
	// OutcomeInsufficientBalance: recoverable by earning credits.
	OutcomeInsufficientBalance Outcome = "insufficient_balance"
	// OutcomeCooldownActive: the per-cycle earning cap was reached.
	OutcomeCooldownActive Outcome = "cooldown_active"
	// OutcomeServiceUnavailable: an external collaborator failed; retryable.
	OutcomeServiceUnavailable Outcome = "service_unavailable"
)

// Remaining is a validity window left, floored to the nearest minute.
type Remaining struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

type Decision struct {
	Outcome         Outcome                   `json:"outcome"`
	Item            *models.ContentItem       `json:"item,omitempty"`
	Assets          []models.ContentAsset     `json:"assets,omitempty"`
	AdminPreview    bool                      `json:"adminPreview,omitempty"`
	ValidFor        *Remaining                `json:"validFor,omitempty"`
	Token           string                    `json:"token,omitempty"`
	VerificationURL string                    `json:"verificationUrl,omitempty"`
	MissingChannels []*models.RequiredChannel `json:"missingChannels,omitempty"`
	Balance         int64                     `json:"balance,omitempty"`
}

// remainingIn splits a duration into floored hours and minutes, clamped at
// zero.
func remainingIn(d time.Duration) Remaining {
	if d < 0 {
		d = 0
	}
	total := int(d.Minutes())
	return Remaining{Hours: total / 60, Minutes: total % 60}
}

// grantValid reports whether a grant activated at unlockedAt is still
// inside its window at now, and how much is left. The window is half-open:
// at exactly ttl the grant is no longer valid.
func grantValid(unlockedAt, now time.Time, ttl time.Duration) (bool, Remaining) {
	elapsed := now.Sub(unlockedAt)
	if elapsed >= ttl {
		return false, Remaining{}
	}
	return true, remainingIn(ttl - elapsed)
}
