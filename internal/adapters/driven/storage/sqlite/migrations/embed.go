// Package migrations holds the numbered SQL files for the history database.
package migrations

import "embed"

// FS holds every NNN_name.{up,down}.sql file.
//
//go:embed *.sql
var FS embed.FS
