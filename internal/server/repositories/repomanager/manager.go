package repomanager

import (
	"context"
	"database/sql"

	"github.com/todovault/todovault/internal/dbx"
	"github.com/todovault/todovault/internal/server/repositories/keys"
	"github.com/todovault/todovault/internal/server/repositories/sessions"
	"github.com/todovault/todovault/internal/server/repositories/tokenrecords"
	"github.com/todovault/todovault/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	TokenRecords(db dbx.DBTX) tokenrecords.Repository
	Keys(db dbx.DBTX) keys.Repository
	Sessions(db dbx.DBTX) sessions.Repository
}
