// Package services contains the identity core's business logic. This file
// implements CredentialStore, which creates accounts and checks passwords.
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

// CredentialStore owns account creation and password verification. Plaintext
// passwords are hashed before they reach the repository and are never logged.
type CredentialStore struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      cryptox.Hasher
	logger      logging.Logger
}

func NewCredentialStore(db *sql.DB, m repomanager.RepositoryManager, hasher cryptox.Hasher, logger logging.Logger) *CredentialStore {
	return &CredentialStore{
		db:          db,
		repomanager: m,
		hasher:      hasher,
		logger:      logger.With("module", "credentials"),
	}
}

// Create registers a new account. The email pre-check only gives an early
// answer; a concurrent signup that slips past it is rejected by the unique
// index and reported as ErrDuplicateUser as well.
func (s *CredentialStore) Create(ctx context.Context, c models.SignupCandidate) (*models.User, error) {
	if c.Password != c.ConfirmPassword {
		return nil, common.ErrPasswordMismatch
	}

	repo := s.repomanager.Users(s.db)

	_, err := repo.FindByCondition(ctx, users.Filter{Email: c.Email}, users.WithoutSecrets)
	switch {
	case err == nil:
		return nil, common.ErrDuplicateUser
	case !errors.Is(err, common.ErrorNotFound):
		return nil, fmt.Errorf("error looking up user: %w", err)
	}

	hash, err := s.hashPassword(c.Password)
	if err != nil {
		return nil, err
	}

	u, err := repo.Create(ctx, &models.User{
		Email:        c.Email,
		PasswordHash: hash,
		Firstname:    c.Firstname,
		Lastname:     c.Lastname,
	})
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			return nil, common.ErrDuplicateUser
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.logger.Info(ctx, "user created", "user_id", u.ID)
	return u, nil
}

// Verify returns the account for email if password matches its stored hash.
func (s *CredentialStore) Verify(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.repomanager.Users(s.db).FindByCondition(ctx, users.Filter{Email: email}, users.WithSecrets)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("error looking up user: %w", err)
	}

	if !s.hasher.Compare(u.PasswordHash, password) {
		return nil, common.ErrInvalidCredential
	}
	return u, nil
}

// ChangePassword replaces the password of userID after checking the current
// one. The stored refresh token is cleared, so every session has to log in
// again.
func (s *CredentialStore) ChangePassword(ctx context.Context, userID, current, next, confirm string) error {
	if next != confirm {
		return common.ErrPasswordMismatch
	}

	repo := s.repomanager.Users(s.db)

	u, err := repo.FindByCondition(ctx, users.Filter{ID: userID}, users.WithSecrets)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrUserNotFound
		}
		return fmt.Errorf("error looking up user: %w", err)
	}
	if !s.hasher.Compare(u.PasswordHash, current) {
		return common.ErrInvalidCredential
	}

	hash, err := s.hashPassword(next)
	if err != nil {
		return err
	}

	_, err = repo.FindByIDAndUpdate(ctx, userID, users.Changes{PasswordHash: &hash, ClearRefreshToken: true})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrUserNotFound
		}
		return fmt.Errorf("error updating password: %w", err)
	}

	s.logger.Info(ctx, "password changed", "user_id", userID)
	return nil
}

func (s *CredentialStore) hashPassword(plain string) (string, error) {
	hash, err := s.hasher.Hash(plain)
	if err != nil {
		if errors.Is(err, cryptox.ErrInputTooLong) {
			return "", common.ErrPasswordTooLong
		}
		return "", fmt.Errorf("error hashing password: %w", err)
	}
	return hash, nil
}
