// Package repomanager wires repositories to a shared database handle and
// lets services rebind them to a transaction when needed.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/mvolkovs/passvault/internal/dbx"
	"github.com/mvolkovs/passvault/internal/server/repositories/refreshtokens"
	"github.com/mvolkovs/passvault/internal/server/repositories/users"
	"github.com/mvolkovs/passvault/internal/server/repositories/vaultentries"
)

// RepositoryManager builds repositories over an arbitrary DBTX, so the same
// repository code runs against the shared pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	VaultEntries(db dbx.DBTX) vaultentries.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}
