package models

import "time"

// AccessGrant records when time-boxed access to an item was last
// (re)activated for an account. One row per (account, item) pair.
type AccessGrant struct {
	ID         string    `json:"id"`
	AccountID  string    `json:"accountId"`
	ItemID     string    `json:"itemId"`
	UnlockedAt time.Time `json:"unlockedAt"`
}

// CreditEntry is one row of the append-only credit audit log.
type CreditEntry struct {
	ID        string    `json:"id"`
	AccountID string    `json:"accountId"`
	Amount    int64     `json:"amount"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"createdAt"`
}

const (
	ReasonVerification = "verification"
	ReasonAccess       = "access"
	ReasonReferral     = "referral"
	ReasonAdmin        = "admin"
	ReasonReset        = "reset"
)

type Referral struct {
	ID         string    `json:"id"`
	ReferrerID string    `json:"referrerId"`
	ReferredID string    `json:"referredId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// RequiredChannel is one force-subscribe rule: membership in the channel
// is required before any gated action proceeds.
type RequiredChannel struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channelId"`
	Title     string    `json:"title"`
	InviteURL string    `json:"inviteUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
