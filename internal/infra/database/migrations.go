package database

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS leads (
	id            UUID PRIMARY KEY,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL,
	phone         TEXT NOT NULL DEFAULT '',
	message       TEXT NOT NULL,
	product_name  TEXT NOT NULL DEFAULT '',
	source        TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'pending',
	external_id   TEXT,
	error_message TEXT,
	retry_count   INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	processed_at  TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_leads_status_created_at ON leads(status, created_at);

CREATE TABLE IF NOT EXISTS oauth_tokens (
	id                      TEXT PRIMARY KEY,
	access_token            TEXT NOT NULL DEFAULT '',
	refresh_token           TEXT NOT NULL DEFAULT '',
	access_token_expires_at TIMESTAMPTZ NOT NULL,
	api_domain              TEXT NOT NULL DEFAULT '',
	updated_at              TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS leads (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL,
	phone         TEXT NOT NULL DEFAULT '',
	message       TEXT NOT NULL,
	product_name  TEXT NOT NULL DEFAULT '',
	source        TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'pending',
	external_id   TEXT,
	error_message TEXT,
	retry_count   INTEGER NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL,
	processed_at  DATETIME
);

CREATE INDEX IF NOT EXISTS idx_leads_status_created_at ON leads(status, created_at);

CREATE TABLE IF NOT EXISTS oauth_tokens (
	id                      TEXT PRIMARY KEY,
	access_token            TEXT NOT NULL DEFAULT '',
	refresh_token           TEXT NOT NULL DEFAULT '',
	access_token_expires_at DATETIME NOT NULL,
	api_domain              TEXT NOT NULL DEFAULT '',
	updated_at              DATETIME NOT NULL
);
`

// Migrate creates the leads and oauth_tokens tables when missing.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	var schema string
	switch driver {
	case DriverPostgres:
		schema = postgresSchema
	case DriverSQLite:
		schema = sqliteSchema
	default:
		return eris.Errorf("database: unsupported driver %q", driver)
	}
	_, err := db.ExecContext(ctx, schema)
	return eris.Wrapf(err, "%s: migrate", driver)
}
