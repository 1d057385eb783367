package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/chatauth/internal/common"
	"github.com/dmitrijs2005/chatauth/internal/dbx"
	"github.com/dmitrijs2005/chatauth/internal/logging"
	"github.com/dmitrijs2005/chatauth/internal/server/assets"
	"github.com/dmitrijs2005/chatauth/internal/server/models"
	"github.com/dmitrijs2005/chatauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/chatauth/internal/server/repositories/users"
)

const ackStatus = "Successfully"

// ProfileManager edits and reads the public part of user records, including
// the avatar kept in the asset store.
type ProfileManager struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       assets.Store
	logger      logging.Logger
}

func NewProfileManager(db *sql.DB, m repomanager.RepositoryManager, store assets.Store, logger logging.Logger) *ProfileManager {
	return &ProfileManager{
		db:          db,
		repomanager: m,
		store:       store,
		logger:      logger.With("module", "profiles"),
	}
}

// UpdateProfile merges upd into the record of userID. An empty update only
// checks that the user exists.
func (s *ProfileManager) UpdateProfile(ctx context.Context, userID string, upd models.ProfileUpdate) (*models.Ack, error) {
	repo := s.repomanager.Users(s.db)

	var err error
	if upd.IsEmpty() {
		_, err = repo.FindByCondition(ctx, users.Filter{ID: userID}, users.WithoutSecrets)
	} else {
		_, err = repo.FindByIDAndUpdate(ctx, userID, users.ProfileChanges(upd))
	}
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("error updating profile: %w", err)
	}

	return &models.Ack{Status: ackStatus, Message: "Updated profile"}, nil
}

// UpdateAvatar uploads data as the new avatar of userID.
//
// The new asset is stored first. The record is then switched to it in the
// same transaction that queues the previous asset for deletion, so the user
// always has an avatar that exists. The previous asset is deleted right
// away when possible; otherwise AssetReconciler retries later. Upload
// failures are returned as *common.AssetError.
func (s *ProfileManager) UpdateAvatar(ctx context.Context, userID string, data []byte) (*models.Ack, error) {
	_, err := s.repomanager.Users(s.db).FindByCondition(ctx, users.Filter{ID: userID}, users.WithoutSecrets)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("error looking up user: %w", err)
	}

	info, err := s.store.UploadImage(ctx, data)
	if err != nil {
		var ae *common.AssetError
		if !errors.As(err, &ae) {
			err = common.NewAssetError(common.ErrUpstreamAssetFailure, "upload image", err)
		}
		return nil, err
	}

	// The replaced asset is read under the row lock, not before the upload:
	// an overlapping replacement may have swapped it in the meantime.
	var previous, pendingID string
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		avatar := models.Avatar{AssetID: info.AssetID, URL: info.URL}
		prev, err := s.repomanager.Users(tx).ReplaceAvatar(ctx, userID, avatar)
		if err != nil {
			return err
		}
		if prev == "" || prev == info.AssetID {
			return nil
		}
		previous = prev
		pendingID, err = s.repomanager.AssetDeletions(tx).Create(ctx, userID, prev)
		return err
	})
	if err != nil {
		if derr := s.store.DestroyImage(ctx, info.AssetID); derr != nil {
			s.logger.Error(ctx, "failed to remove unused avatar", "user_id", userID, "asset_id", info.AssetID, "error", derr)
		}
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("error saving avatar: %w", err)
	}

	if pendingID != "" {
		s.removePrevious(ctx, userID, pendingID, previous)
	}

	s.logger.Info(ctx, "avatar replaced", "user_id", userID, "asset_id", info.AssetID)
	return &models.Ack{Status: ackStatus, Message: "Updated avatar"}, nil
}

// removePrevious deletes a superseded asset and its queue entry. Failures
// leave the entry for the reconciler.
func (s *ProfileManager) removePrevious(ctx context.Context, userID, pendingID, assetID string) {
	if err := s.store.DestroyImage(ctx, assetID); err != nil {
		s.logger.Warn(ctx, "previous avatar not deleted, queued for retry",
			"user_id", userID, "asset_id", assetID, "error", err)
		if err := s.repomanager.AssetDeletions(s.db).MarkFailed(ctx, pendingID, err.Error()); err != nil {
			s.logger.Error(ctx, "failed to record deletion attempt", "pending_id", pendingID, "error", err)
		}
		return
	}
	if err := s.repomanager.AssetDeletions(s.db).Delete(ctx, pendingID); err != nil {
		s.logger.Warn(ctx, "failed to clear pending deletion", "pending_id", pendingID, "error", err)
	}
}

// GetProfile returns the public projection of userID.
func (s *ProfileManager) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	u, err := s.repomanager.Users(s.db).FindByCondition(ctx, users.Filter{ID: userID}, users.WithoutSecrets)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("error looking up user: %w", err)
	}
	return u.Profile(), nil
}
