package models

import "time"

type TokenPurpose string

const (
	PurposeUnlock TokenPurpose = "unlock"
	PurposeCredit TokenPurpose = "credit"
)

type TokenStatus string

const (
	TokenPending  TokenStatus = "pending"
	TokenVerified TokenStatus = "verified"
	TokenExpired  TokenStatus = "expired"
	TokenUsed     TokenStatus = "used"
)

// VerifyToken is a single-use credential proving the owner completed the
// external verification step. Unlock tokens carry the item they unlock;
// credit tokens carry the amount they award.
type VerifyToken struct {
	ID        string       `json:"id"`
	Token     string       `json:"token"`
	AccountID string       `json:"accountId"`
	Purpose   TokenPurpose `json:"purpose"`
	ItemID    *string      `json:"itemId,omitempty"`
	Award     int64        `json:"award"`
	Status    TokenStatus  `json:"status"`
	CreatedAt time.Time    `json:"createdAt"`
}
