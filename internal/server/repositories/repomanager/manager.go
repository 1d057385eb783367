// Package repomanager vends repositories bound to a database handle or an
// open transaction, and owns schema migrations.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/chatauth/internal/dbx"
	"github.com/dmitrijs2005/chatauth/internal/server/repositories/assetdeletions"
	"github.com/dmitrijs2005/chatauth/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	AssetDeletions(db dbx.DBTX) assetdeletions.Repository
}
