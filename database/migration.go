package database

import (
	"database/sql"
	"embed"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/mbolis/surveyer/log"
)

//go:embed migrations
var storageMigrations embed.FS

const migrationsTable = "storage_migrations"

// migrateDB brings the storage schema to the latest embedded version.
func migrateDB(db *sql.DB) error {
	src, err := iofs.New(storageMigrations, "migrations")
	if err != nil {
		return err
	}

	dst, err := sqlite3.WithInstance(db, &sqlite3.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return err
	}

	migrator, err := migrate.NewWithInstance("iofs", src, "sqlite3", dst)
	if err != nil {
		return err
	}

	err = migrator.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Debug("database.migrate: storage schema up to date")
	case err != nil:
		return err
	default:
		version, dirty, _ := migrator.Version()
		log.WithFields(log.Fields{"version": version, "dirty": dirty}).Info("database.migrate: storage schema migrated")
	}
	return nil
}
