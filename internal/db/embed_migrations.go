package db

import "embed"

// MigrationFS embeds the SQL migrations of every supported driver, one directory per driver.
// Used by the migrate runner (cmd/migrate and sqlite startup) to apply migrations.
//
//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var MigrationFS embed.FS

// MigrationDir returns the directory in MigrationFS holding the migrations for driver.
func MigrationDir(driver string) string {
	return "migrations/" + driver
}
