// Package migrations embeds the SQLite schema.
package migrations

import "embed"

// FS holds the versioned schema files
//
//go:embed *.sql
var FS embed.FS
