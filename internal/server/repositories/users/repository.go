// Package users declares the user repository contract and its PostgreSQL
// implementation.
package users

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/chatauth/internal/server/models"
)

var (
	ErrEmptyFilter     = errors.New("empty user filter")
	ErrNonUniqueFilter = errors.New("update filter must name id or email")
	ErrNoChanges       = errors.New("no changes")
)

// Projection selects which columns a read returns.
type Projection int

const (
	// WithSecrets also loads password and refresh token hashes.
	WithSecrets Projection = iota
	// WithoutSecrets leaves the hash fields of the returned users empty.
	WithoutSecrets
)

// Filter is a condition over user records; set fields are ANDed.
type Filter struct {
	ID    string
	Email string
	// ExcludeID drops the record with this id from the result.
	ExcludeID string
	// Search matches users whose "firstname lastname" or email contains the
	// text, case-insensitively. The text is a literal, not a pattern.
	Search string
}

func (f Filter) isEmpty() bool {
	return f.ID == "" && f.Email == "" && f.ExcludeID == "" && f.Search == ""
}

func (f Filter) isUnique() bool {
	return f.ID != "" || f.Email != ""
}

// Changes is the typed merge set applied by the update operations; nil
// fields are left untouched. ClearRefreshToken takes precedence over
// RefreshTokenHash.
type Changes struct {
	Firstname         *string
	Lastname          *string
	Avatar            *models.Avatar
	PasswordHash      *string
	RefreshTokenHash  *string
	ClearRefreshToken bool
}

// ProfileChanges converts a caller-facing profile update into Changes.
func ProfileChanges(p models.ProfileUpdate) Changes {
	return Changes{Firstname: p.Firstname, Lastname: p.Lastname}
}

func (c Changes) isEmpty() bool {
	return c.Firstname == nil && c.Lastname == nil && c.Avatar == nil &&
		c.PasswordHash == nil && c.RefreshTokenHash == nil && !c.ClearRefreshToken
}

// Repository is the persistence contract for user records. Lookups that
// match nothing return common.ErrorNotFound; Create reports an email
// collision as common.ErrorConflict.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByCondition(ctx context.Context, filter Filter, projection Projection) (*models.User, error)
	// GetByCondition lists matching users; an empty filter matches all.
	GetByCondition(ctx context.Context, filter Filter, projection Projection) ([]*models.User, error)
	FindByIDAndUpdate(ctx context.Context, id string, changes Changes) (*models.User, error)
	FindByConditionAndUpdate(ctx context.Context, filter Filter, changes Changes) (*models.User, error)
	// ReplaceAvatar stores avatar on user id and returns the asset id it
	// replaced, or "" when the user had none.
	ReplaceAvatar(ctx context.Context, id string, avatar models.Avatar) (string, error)
}
