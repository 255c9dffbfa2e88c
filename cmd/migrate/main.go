// migrate runs DB migrations from embedded SQL for the configured storage driver; use go run ./cmd/migrate.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"seller-onboarding/internal/config"
	"seller-onboarding/internal/db"
	"seller-onboarding/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	var dsn string
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		dsn = cfg.DatabaseURL
	case config.StorageSQLite:
		dsn = db.SQLiteMigrateURL(cfg.SQLitePath)
	default:
		fmt.Fprintln(os.Stderr, "STORAGE_DRIVER=memory has nothing to migrate; set STORAGE_DRIVER to postgres or sqlite")
		os.Exit(1)
	}

	if err := migrate.Run(dsn, *direction); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			// Already at target version; success.
			return
		}
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
