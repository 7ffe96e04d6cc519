package migrations

import "embed"

// FS holds the goose SQL migrations applied by app.Migrator.
//
//go:embed *.sql
var FS embed.FS
