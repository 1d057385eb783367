package models

import "time"

// AssetInfo identifies an object stored in the asset store.
type AssetInfo struct {
	AssetID string
	URL     string
}

// PendingAssetDeletion records a superseded avatar asset that still has to be
// removed from the asset store.
type PendingAssetDeletion struct {
	ID        string
	UserID    string
	AssetID   string
	Attempts  int
	LastError string
	CreatedAt time.Time
}
