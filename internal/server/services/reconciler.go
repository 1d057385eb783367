package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/chatauth/internal/logging"
	"github.com/dmitrijs2005/chatauth/internal/server/assets"
	"github.com/dmitrijs2005/chatauth/internal/server/config"
	"github.com/dmitrijs2005/chatauth/internal/server/repositories/repomanager"
)

// AssetReconciler retries deletions of superseded avatars that failed when
// the avatar was replaced.
type AssetReconciler struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       assets.Store
	logger      logging.Logger
	interval    time.Duration
	batchSize   int
}

func NewAssetReconciler(db *sql.DB, m repomanager.RepositoryManager, store assets.Store, logger logging.Logger, cfg *config.Config) *AssetReconciler {
	return &AssetReconciler{
		db:          db,
		repomanager: m,
		store:       store,
		logger:      logger.With("module", "reconciler"),
		interval:    cfg.ReconcileInterval,
		batchSize:   cfg.ReconcileBatchSize,
	}
}

// RunOnce processes one batch of pending deletions and returns how many
// assets were removed.
func (r *AssetReconciler) RunOnce(ctx context.Context) (int, error) {
	repo := r.repomanager.AssetDeletions(r.db)

	due, err := repo.ListDue(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("error listing pending deletions: %w", err)
	}

	done := 0
	for _, d := range due {
		if err := ctx.Err(); err != nil {
			return done, err
		}

		if err := r.store.DestroyImage(ctx, d.AssetID); err != nil {
			r.logger.Warn(ctx, "asset deletion failed", "asset_id", d.AssetID, "attempts", d.Attempts+1, "error", err)
			if err := repo.MarkFailed(ctx, d.ID, err.Error()); err != nil {
				return done, fmt.Errorf("error recording failed deletion: %w", err)
			}
			continue
		}

		if err := repo.Delete(ctx, d.ID); err != nil {
			return done, fmt.Errorf("error removing pending deletion: %w", err)
		}
		done++
	}

	if done > 0 {
		r.logger.Info(ctx, "pending asset deletions reconciled", "count", done)
	}
	return done, nil
}

// Run calls RunOnce at start and then every interval until ctx is
// cancelled.
func (r *AssetReconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error(ctx, "reconcile failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
