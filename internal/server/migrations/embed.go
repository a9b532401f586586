// Package migrations embeds the goose SQL migration files for the
// PostgreSQL schema.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
