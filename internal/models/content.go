package models

import "time"

type AssetKind string

const (
	AssetFile AssetKind = "file"
	AssetLink AssetKind = "link"
)

type ContentItem struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Published   bool       `json:"published"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// ContentAsset is one deliverable of a content item: a stored file
// reference or an external link, in delivery order.
type ContentAsset struct {
	ID       string    `json:"id"`
	ItemID   string    `json:"itemId"`
	Kind     AssetKind `json:"kind"`
	Location string    `json:"location"`
	Position int       `json:"position"`
}
