package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4/database"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect bundles everything that differs between SQL backends: the
// database/sql driver, the migration scripts and the query placeholders.
type Dialect struct {
	Name string

	driverName    string
	dsn           func(string) string
	migrateDriver func(*sql.DB) (database.Driver, error)

	insertAlarm     string
	selectAlarms    string
	selectAlarmByID string
	deleteAlarm     string
}

// SQLite stores alarms in a local file through the pure-Go modernc driver.
// WAL with synchronous(FULL) makes a committed insert survive a crash.
var SQLite = Dialect{
	Name:       "sqlite",
	driverName: "sqlite",
	dsn: func(path string) string {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)"
	},
	migrateDriver: func(db *sql.DB) (database.Driver, error) {
		return migratesqlite.WithInstance(db, &migratesqlite.Config{})
	},
	insertAlarm: `
		INSERT INTO alarms (id, hour, minute, label, triggerTimeMillis, date)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			hour = excluded.hour,
			minute = excluded.minute,
			label = excluded.label,
			triggerTimeMillis = excluded.triggerTimeMillis,
			date = excluded.date
	`,
	selectAlarms:    `SELECT id, hour, minute, label, triggerTimeMillis, date FROM alarms ORDER BY hour, minute, id`,
	selectAlarmByID: `SELECT id, hour, minute, label, triggerTimeMillis, date FROM alarms WHERE id = ?`,
	deleteAlarm:     `DELETE FROM alarms WHERE id = ?`,
}

// Postgres stores alarms in a PostgreSQL database through lib/pq.
var Postgres = Dialect{
	Name:       "postgres",
	driverName: "postgres",
	dsn:        func(url string) string { return url },
	migrateDriver: func(db *sql.DB) (database.Driver, error) {
		return migratepg.WithInstance(db, &migratepg.Config{})
	},
	insertAlarm: `
		INSERT INTO alarms (id, hour, minute, label, triggerTimeMillis, date)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			hour = excluded.hour,
			minute = excluded.minute,
			label = excluded.label,
			triggerTimeMillis = excluded.triggerTimeMillis,
			date = excluded.date
	`,
	selectAlarms:    `SELECT id, hour, minute, label, triggerTimeMillis, date FROM alarms ORDER BY hour, minute, id`,
	selectAlarmByID: `SELECT id, hour, minute, label, triggerTimeMillis, date FROM alarms WHERE id = $1`,
	deleteAlarm:     `DELETE FROM alarms WHERE id = $1`,
}

// LookupDialect returns the dialect registered under name.
func LookupDialect(name string) (Dialect, error) {
	switch name {
	case SQLite.Name, "":
		return SQLite, nil
	case Postgres.Name:
		return Postgres, nil
	}
	return Dialect{}, fmt.Errorf("unknown database driver %q", name)
}
