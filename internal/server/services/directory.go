package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/chatauth/internal/logging"
	"github.com/dmitrijs2005/chatauth/internal/server/models"
	"github.com/dmitrijs2005/chatauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/chatauth/internal/server/repositories/users"
)

// UserDirectory finds other users to start a conversation with.
type UserDirectory struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewUserDirectory(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *UserDirectory {
	return &UserDirectory{
		db:          db,
		repomanager: m,
		logger:      logger.With("module", "directory"),
	}
}

// Search returns every user except requesterID whose "firstname lastname"
// or email contains query, ignoring case. query is literal text; an empty
// query matches everyone.
func (s *UserDirectory) Search(ctx context.Context, requesterID, query string) ([]*models.Profile, error) {
	found, err := s.repomanager.Users(s.db).GetByCondition(ctx,
		users.Filter{Search: query, ExcludeID: requesterID}, users.WithoutSecrets)
	if err != nil {
		return nil, fmt.Errorf("error searching users: %w", err)
	}

	result := make([]*models.Profile, 0, len(found))
	for _, u := range found {
		result = append(result, u.Profile())
	}

	s.logger.Debug(ctx, "user search", "requester_id", requesterID, "matches", len(result))
	return result, nil
}
