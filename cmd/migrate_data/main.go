// Command migrate_data copies the inbox tables from a local sqlite file into the configured
// postgres database. Rows already present in postgres are kept.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"whatsapp-inbox/internal/config"
	"whatsapp-inbox/internal/database"
	"whatsapp-inbox/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const batchSize = 500

func main() {
	source := flag.String("source", "", "sqlite file to read from (defaults to DB_PATH)")
	flag.Parse()

	if err := run(*source); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func run(source string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	log := cfg.NewLogger(os.Stdout)
	if source == "" {
		source = cfg.DBPath
	}

	// 1. Connect to SQLite (Source)
	sqliteDB, err := database.OpenSQLite(source)
	if err != nil {
		return err
	}
	log.Info("connected to sqlite", "path", source)

	// 2. Connect to PostgreSQL (Destination)
	cfg.DBDriver = "postgres"
	pgDB, err := database.Open(cfg, log)
	if err != nil {
		return err
	}

	log.Info("starting data migration")

	// Messages point at conversations, so they go last.
	if err := migrateTable[models.Contact](log, sqliteDB, pgDB); err != nil {
		return err
	}
	if err := migrateTable[models.Conversation](log, sqliteDB, pgDB); err != nil {
		return err
	}
	if err := migrateTable[models.Message](log, sqliteDB, pgDB); err != nil {
		return err
	}

	log.Info("migration completed, run sync_sequences next")
	return nil
}

type tabler interface {
	TableName() string
}

func migrateTable[T tabler](log *slog.Logger, src, dst *gorm.DB) error {
	var model T
	table := model.TableName()
	log.Info("migrating table", "table", table)

	copied := 0
	var rows []T
	err := src.FindInBatches(&rows, batchSize, func(_ *gorm.DB, _ int) error {
		// Using transaction for safety
		err := dst.Transaction(func(tx *gorm.DB) error {
			return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
		})
		if err != nil {
			return err
		}
		copied += len(rows)
		return nil
	}).Error
	if err != nil {
		return fmt.Errorf("migrate %s: %w", table, err)
	}

	log.Info("successfully migrated table", "table", table, "rows", copied)
	return nil
}
