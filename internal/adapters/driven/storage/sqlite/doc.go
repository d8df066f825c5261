// Package sqlite records flash history in a SQLite database.
//
// The driver is modernc.org/sqlite, which is pure Go, so history works in
// CGO_ENABLED=0 builds too. Store.HistoryStore exposes the
// driven.HistoryStore view.
//
// Schema changes are numbered migrations under migrations/. Each up file
// runs in its own transaction and is recorded in schema_migrations, so a
// failed migration leaves the previous version intact.
//
// The CLI keeps history.db next to config.toml. NewStore("") falls back to
// ~/.idfflash/data. The database is opened in WAL mode with a single
// connection.
package sqlite
