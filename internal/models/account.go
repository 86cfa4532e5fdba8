package models

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type Account struct {
	ID               string     `json:"id"`
	ExternalID       string     `json:"externalId"`
	DisplayName      string     `json:"displayName"`
	Balance          int64      `json:"balance"`
	LastCreditReset  *time.Time `json:"lastCreditReset,omitempty"`
	IsPremium        bool       `json:"isPremium"`
	PremiumExpiresAt *time.Time `json:"premiumExpiresAt,omitempty"`
	Role             Role       `json:"role"`
	BannedAt         *time.Time `json:"-"`
	CreatedAt        time.Time  `json:"createdAt"`
}

func (a *Account) IsBanned() bool {
	return a.BannedAt != nil
}

// PremiumActive reports whether the premium flag is set and not past its
// expiry. A premium account with no expiry never lapses.
func (a *Account) PremiumActive(now time.Time) bool {
	if !a.IsPremium {
		return false
	}
	if a.PremiumExpiresAt == nil {
		return true
	}
	return a.PremiumExpiresAt.After(now)
}
