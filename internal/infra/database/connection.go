package database

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq" // Postgres driver
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open connects to the configured backend and pings it.
func Open(driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverPostgres:
		return NewDBConnection(dsn)
	case DriverSQLite:
		return NewSQLiteConnection(dsn)
	default:
		return nil, eris.Errorf("database: unsupported driver %q", driver)
	}
}

// NewDBConnection opens the Postgres pool and checks it with a ping.
func NewDBConnection(connString string) (*sql.DB, error) {
	db, err := sql.Open(DriverPostgres, connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: open")
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	return db, nil
}

// NewSQLiteConnection opens a SQLite file in WAL mode. The pool is capped at a
// single connection so the pragmas hold for every statement.
func NewSQLiteConnection(dsn string) (*sql.DB, error) {
	db, err := sql.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return db, nil
}
