// Package migrations embeds the SQL schema migrations for the inventory
// service. Files are applied in lexical order by the postgres.Migrator.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
