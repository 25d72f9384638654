// Package migrations embeds the SQL schema migrations into the binary.
package migrations

import "embed"

// FS holds the up and down migrations applied by storage.Migrate.
//
//go:embed *.sql
var FS embed.FS
