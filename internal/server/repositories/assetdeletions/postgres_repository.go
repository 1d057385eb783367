package assetdeletions

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/chatauth/internal/dbx"
	"github.com/dmitrijs2005/chatauth/internal/server/models"
)

// maxReasonLen bounds the stored failure text.
const maxReasonLen = 512

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, userID, assetID string) (string, error) {
	query := `
		INSERT INTO pending_asset_deletions (user_id, asset_id)
		VALUES ($1, $2)
		RETURNING id
	`
	var id string
	if err := r.db.QueryRowContext(ctx, query, userID, assetID).Scan(&id); err != nil {
		return "", fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) ListDue(ctx context.Context, limit int) ([]*models.PendingAssetDeletion, error) {
	query := `
		SELECT id, user_id, asset_id, attempts, last_error, created_at
		FROM pending_asset_deletions
		ORDER BY updated_at, id
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.PendingAssetDeletion
	for rows.Next() {
		p := &models.PendingAssetDeletion{}
		if err := rows.Scan(&p.ID, &p.UserID, &p.AssetID, &p.Attempts, &p.LastError, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	if len(reason) > maxReasonLen {
		reason = reason[:maxReasonLen]
	}
	// the column is text: drop a rune split by the cut and any invalid bytes
	reason = strings.ToValidUTF8(reason, "")
	query := `
		UPDATE pending_asset_deletions
		SET attempts = attempts + 1, last_error = $2, updated_at = now()
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, reason); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `
		DELETE FROM pending_asset_deletions
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
