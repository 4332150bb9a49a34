// Command sync_sequences moves postgres id sequences past the highest copied id after a data migration.
package main

import (
	"log/slog"
	"os"

	"whatsapp-inbox/internal/config"
	"whatsapp-inbox/internal/database"
)

// Only tables with serial ids need syncing; contacts and conversations use uuids.
var tables = []string{
	"messages",
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	log := cfg.NewLogger(os.Stdout)

	cfg.DBDriver = "postgres"
	db, err := database.Open(cfg, log)
	if err != nil {
		log.Error("connect", "error", err)
		os.Exit(1)
	}

	log.Info("syncing postgres sequences")

	failed := false
	for _, table := range tables {
		query := "SELECT setval(pg_get_serial_sequence('" + table + "', 'id'), coalesce(max(id), 0) + 1, false) FROM " + table
		if err := db.Exec(query).Error; err != nil {
			log.Error("error syncing sequence", "table", table, "error", err)
			failed = true
		} else {
			log.Info("successfully synced sequence", "table", table)
		}
	}

	if failed {
		os.Exit(1)
	}
	log.Info("done")
}
