// Package assetdeletions persists superseded asset ids until the asset store
// confirms their removal.
package assetdeletions

import (
	"context"

	"github.com/dmitrijs2005/chatauth/internal/server/models"
)

// Repository defines the pending-deletion queue.
type Repository interface {
	// Create records assetID as owed for deletion on behalf of userID.
	Create(ctx context.Context, userID, assetID string) (string, error)

	// ListDue returns up to limit records, least recently attempted first.
	ListDue(ctx context.Context, limit int) ([]*models.PendingAssetDeletion, error)

	// MarkFailed increments the attempt counter and stores the failure text.
	MarkFailed(ctx context.Context, id string, reason string) error

	// Delete removes a record. Deleting a missing record is not an error.
	Delete(ctx context.Context, id string) error
}
