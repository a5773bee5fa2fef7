// Package migrations embeds the schema files applied by postgres.Migrate.
package migrations

import "embed"

// FS holds every *.sql file in this directory. Files apply in lexical order.
//
//go:embed *.sql
var FS embed.FS
