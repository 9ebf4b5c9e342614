// Package sqlstore implements store.AlarmStore on top of database/sql.
// SQLite is the default backend; PostgreSQL is available for shared hosts.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"helios/internal/store"
)

// Store provides SQL-backed persistence for alarms.
type Store struct {
	db      *sql.DB
	dialect Dialect
	feed    *store.Feed
	logger  *slog.Logger
}

var _ store.AlarmStore = (*Store)(nil)

// Open connects to the database, applies pending migrations and returns a
// ready store. The store is never handed out before migrations complete.
func Open(ctx context.Context, driver, dsn string, logger *slog.Logger) (*Store, error) {
	d, err := LookupDialect(driver)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	memory := strings.Contains(dsn, ":memory:")
	if d.Name == SQLite.Name && !memory {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open(d.driverName, d.dsn(dsn))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if memory {
		// Every connection to :memory: is a distinct database.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := Migrate(db, d); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("alarm store ready", "driver", d.Name)
	return New(db, d, logger), nil
}

// New wraps an already migrated database handle.
func New(db *sql.DB, d Dialect, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{db: db, dialect: d, logger: logger}
	s.feed = store.NewFeed(s.GetAll)
	return s
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes observers and the database connection.
func (s *Store) Close() error {
	s.feed.Close()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
