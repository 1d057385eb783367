// Package assets talks to the external asset store that holds avatar images.
package assets

import (
	"context"

	"github.com/dmitrijs2005/chatauth/internal/server/models"
)

// Store uploads and deletes image assets. Failures are *common.AssetError
// values tagged with common.ErrInvalidFileType (content rejected) or
// common.ErrUpstreamAssetFailure (the store could not be reached or refused).
type Store interface {
	UploadImage(ctx context.Context, data []byte) (models.AssetInfo, error)
	// DestroyImage deletes the asset; an empty id or an already missing
	// asset is not an error.
	DestroyImage(ctx context.Context, assetID string) error
}
