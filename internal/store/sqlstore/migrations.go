package sqlstore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*/*.sql
var migrationFS embed.FS

// Migrate runs all pending migrations for the dialect.
// Each script is applied once, in order, and recorded in schema_migrations.
func Migrate(db *sql.DB, d Dialect) error {
	return migrateTo(db, d, 0)
}

// migrateTo migrates up to version, or all the way when version is 0.
func migrateTo(db *sql.DB, d Dialect, version uint) error {
	// Create source from embedded filesystem
	source, err := iofs.New(migrationFS, "migrations/"+d.Name)
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	// Create database driver
	driver, err := d.migrateDriver(db)
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Create migrator
	m, err := migrate.NewWithInstance("iofs", source, d.Name, driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	// Run migrations
	if version == 0 {
		err = m.Up()
	} else {
		err = m.Migrate(version)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}
