package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/chatauth/internal/common"
	"github.com/dmitrijs2005/chatauth/internal/cryptox"
	"github.com/dmitrijs2005/chatauth/internal/logging"
	"github.com/dmitrijs2005/chatauth/internal/server/models"
	"github.com/dmitrijs2005/chatauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/chatauth/internal/server/repositories/users"
)

// refreshTokenBytes is the entropy of refresh tokens minted by Issue.
const refreshTokenBytes = 32

// SessionTokenManager stores and checks hashed refresh tokens. A user holds
// at most one: every rotation replaces the previous hash.
type SessionTokenManager struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      cryptox.Hasher
	logger      logging.Logger
}

func NewSessionTokenManager(db *sql.DB, m repomanager.RepositoryManager, hasher cryptox.Hasher, logger logging.Logger) *SessionTokenManager {
	return &SessionTokenManager{
		db:          db,
		repomanager: m,
		hasher:      hasher,
		logger:      logger.With("module", "sessions"),
	}
}

// Rotate hashes token and stores it on the user matched by filter, which must
// name an id or an email. extra profile fields, if any, are written in the
// same update.
func (s *SessionTokenManager) Rotate(ctx context.Context, filter users.Filter, token string, extra *models.ProfileUpdate) (*models.User, error) {
	hash, err := s.hasher.Hash(token)
	if err != nil {
		return nil, fmt.Errorf("error hashing refresh token: %w", err)
	}

	changes := users.Changes{RefreshTokenHash: &hash}
	if extra != nil {
		changes.Firstname = extra.Firstname
		changes.Lastname = extra.Lastname
	}

	u, err := s.repomanager.Users(s.db).FindByConditionAndUpdate(ctx, filter, changes)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("error storing refresh token: %w", err)
	}

	s.logger.Debug(ctx, "refresh token rotated", "user_id", u.ID)
	return u, nil
}

// Verify returns the user owning email if token matches the stored hash.
// Unknown users, users without a token and mismatches are all ErrInvalidToken.
func (s *SessionTokenManager) Verify(ctx context.Context, token, email string) (*models.User, error) {
	u, err := s.repomanager.Users(s.db).FindByCondition(ctx, users.Filter{Email: email}, users.WithSecrets)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, fmt.Errorf("error looking up user: %w", err)
	}

	if u.RefreshTokenHash == nil || !s.hasher.Compare(*u.RefreshTokenHash, token) {
		return nil, common.ErrInvalidToken
	}
	return u, nil
}

// Issue mints a fresh refresh token for userID, rotates it in and returns the
// plaintext. The plaintext is not kept anywhere.
func (s *SessionTokenManager) Issue(ctx context.Context, userID string) (string, *models.User, error) {
	token, err := common.MakeRandHexString(refreshTokenBytes)
	if err != nil {
		return "", nil, common.ErrorInternal
	}

	u, err := s.Rotate(ctx, users.Filter{ID: userID}, token, nil)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

// Revoke clears the stored refresh token of userID.
func (s *SessionTokenManager) Revoke(ctx context.Context, userID string) error {
	_, err := s.repomanager.Users(s.db).FindByIDAndUpdate(ctx, userID, users.Changes{ClearRefreshToken: true})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrUserNotFound
		}
		return fmt.Errorf("error revoking refresh token: %w", err)
	}

	s.logger.Debug(ctx, "refresh token revoked", "user_id", userID)
	return nil
}
