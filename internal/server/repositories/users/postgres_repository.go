package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/chatauth/internal/common"
	"github.com/dmitrijs2005/chatauth/internal/dbx"
	"github.com/dmitrijs2005/chatauth/internal/server/models"
	"github.com/google/uuid"
)

// emailConstraint is the unique index that backs one-account-per-email.
const emailConstraint = "users_email_key"

// PostgresRepository implements Repository over dbx.DBTX (satisfied by
// *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner, p Projection) (*models.User, error) {
	u := &models.User{}
	var assetID, url, refresh sql.NullString

	dest := []any{&u.ID, &u.Email, &u.Firstname, &u.Lastname, &assetID, &url, &u.CreatedAt, &u.UpdatedAt}
	if p == WithSecrets {
		dest = append(dest, &u.PasswordHash, &refresh)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if assetID.Valid && assetID.String != "" {
		u.Avatar = &models.Avatar{AssetID: assetID.String, URL: url.String}
	}
	if refresh.Valid {
		h := refresh.String
		u.RefreshTokenHash = &h
	}
	return u, nil
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (email, password_hash, firstname, lastname)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		user.Email, user.PasswordHash, user.Firstname, user.Lastname).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err, emailConstraint) {
			return nil, common.ErrorConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) FindByCondition(ctx context.Context, filter Filter, projection Projection) (*models.User, error) {
	if filter.isEmpty() {
		return nil, ErrEmptyFilter
	}
	where, args, ok := whereClause(filter, 1)
	if !ok {
		return nil, common.ErrorNotFound
	}

	query := "SELECT " + columns(projection) + " FROM users WHERE " + where + " LIMIT 1"

	user, err := scanUser(r.db.QueryRowContext(ctx, query, args...), projection)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByCondition(ctx context.Context, filter Filter, projection Projection) ([]*models.User, error) {
	result := []*models.User{}

	where, args, ok := whereClause(filter, 1)
	if !ok {
		return result, nil
	}

	query := "SELECT " + columns(projection) + " FROM users WHERE " + where + " ORDER BY created_at, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanUser(rows, projection)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) FindByIDAndUpdate(ctx context.Context, id string, changes Changes) (*models.User, error) {
	return r.FindByConditionAndUpdate(ctx, Filter{ID: id}, changes)
}

// FindByConditionAndUpdate applies changes to the single record matched by
// filter and returns it as stored afterwards, secrets included.
func (r *PostgresRepository) FindByConditionAndUpdate(ctx context.Context, filter Filter, changes Changes) (*models.User, error) {
	if !filter.isUnique() {
		return nil, ErrNonUniqueFilter
	}
	if changes.isEmpty() {
		return nil, ErrNoChanges
	}

	set, args := setClause(changes)
	where, whereArgs, ok := whereClause(filter, len(args)+1)
	if !ok {
		return nil, common.ErrorNotFound
	}
	args = append(args, whereArgs...)

	query := "UPDATE users SET " + set + " WHERE " + where + " RETURNING " + secretColumns

	user, err := scanUser(r.db.QueryRowContext(ctx, query, args...), WithSecrets)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

// ReplaceAvatar reads the previous asset id under a row lock in the same
// statement that overwrites it. Concurrent replacements are serialized and
// each one reports the asset the other wrote.
func (r *PostgresRepository) ReplaceAvatar(ctx context.Context, id string, avatar models.Avatar) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", common.ErrorNotFound
	}

	query :=
		`WITH prev AS (
			SELECT id, avatar_asset_id FROM users WHERE id = $3 FOR UPDATE
		)
		UPDATE users AS u
		SET avatar_asset_id = $1, avatar_url = $2, updated_at = now()
		FROM prev
		WHERE u.id = prev.id
		RETURNING prev.avatar_asset_id`

	var prev sql.NullString
	err := r.db.QueryRowContext(ctx, query, avatar.AssetID, avatar.URL, id).Scan(&prev)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}

	return prev.String, nil
}
