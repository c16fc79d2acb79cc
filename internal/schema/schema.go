// Package schema owns the relational layout shared by every store.
// It is the single source of truth for tables; tests build their databases from it too.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Hons90/CRM/pkg/utils"
)

// Migration is one ordered, forward-only schema step.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

var migrations = []Migration{
	{Version: 1, Name: "users_pools_numbers_call_logs", SQL: v1},
	{Version: 2, Name: "audit_events", SQL: v2},
}

const v1 = `
CREATE TABLE IF NOT EXISTS users (
	id            {{pk}},
	name          TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL DEFAULT 'employee',
	is_deleted    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at    {{ts}} NOT NULL
);

CREATE TABLE IF NOT EXISTS dialer_pools (
	id          {{pk}},
	pool_name   TEXT NOT NULL,
	uploaded_by {{bigint}} REFERENCES users(id),
	is_deleted  BOOLEAN NOT NULL DEFAULT FALSE,
	created_at  {{ts}} NOT NULL
);

CREATE TABLE IF NOT EXISTS dialer_numbers (
	id           {{pk}},
	pool_id      {{bigint}} NOT NULL REFERENCES dialer_pools(id),
	phone_number TEXT NOT NULL,
	is_called    BOOLEAN NOT NULL DEFAULT FALSE,
	is_deleted   BOOLEAN NOT NULL DEFAULT FALSE,
	created_at   {{ts}} NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_dialer_numbers_pool_phone ON dialer_numbers (pool_id, phone_number);

CREATE TABLE IF NOT EXISTS call_logs (
	id               {{pk}},
	user_id          {{bigint}} NOT NULL REFERENCES users(id),
	pool_id          {{bigint}} REFERENCES dialer_pools(id),
	phone_number     TEXT NOT NULL,
	status           TEXT NOT NULL,
	outcome          TEXT,
	notes            TEXT,
	duration         INTEGER NOT NULL DEFAULT 0,
	call_time        {{ts}} NOT NULL,
	provider_call_id TEXT,
	updated_at       {{ts}} NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_call_logs_user_time ON call_logs (user_id, call_time);
CREATE UNIQUE INDEX IF NOT EXISTS idx_call_logs_provider_call_id ON call_logs (provider_call_id) WHERE provider_call_id IS NOT NULL;
`

const v2 = `
CREATE TABLE IF NOT EXISTS audit_events (
	id            TEXT PRIMARY KEY,
	type          TEXT NOT NULL,
	actor_user_id {{bigint}},
	actor_role    TEXT NOT NULL DEFAULT '',
	ip_address    TEXT NOT NULL DEFAULT '',
	target_type   TEXT NOT NULL DEFAULT '',
	target_id     TEXT NOT NULL DEFAULT '',
	message       TEXT NOT NULL DEFAULT '',
	metadata      TEXT NOT NULL DEFAULT '',
	created_at    {{ts}} NOT NULL
);
`

const versionTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version    INTEGER PRIMARY KEY,
	name       TEXT NOT NULL,
	applied_at {{ts}} NOT NULL
)`

// Render substitutes dialect-specific column types.
func Render(driverName, ddl string) string {
	pk, ts, bigint := "BIGSERIAL PRIMARY KEY", "TIMESTAMPTZ", "BIGINT"
	if driverName == utils.DriverSQLite {
		pk, ts, bigint = "INTEGER PRIMARY KEY AUTOINCREMENT", "TIMESTAMP", "INTEGER"
	}
	r := strings.NewReplacer("{{pk}}", pk, "{{ts}}", ts, "{{bigint}}", bigint)
	return r.Replace(ddl)
}

// Migrate applies every migration newer than the recorded version.
// It returns the versions applied in this run.
func Migrate(ctx context.Context, db *sql.DB, driverName string) ([]int, error) {
	if _, err := db.ExecContext(ctx, Render(driverName, versionTable)); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return nil, fmt.Errorf("read schema version: %w", err)
	}

	var applied []int
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		err := utils.WithTx(ctx, db, nil, func(ctx context.Context, tx *sql.Tx) error {
			for _, stmt := range statements(Render(driverName, m.SQL)) {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
				}
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, name, applied_at) VALUES ($1, $2, CURRENT_TIMESTAMP)`,
				m.Version, m.Name)
			return err
		})
		if err != nil {
			return applied, err
		}
		applied = append(applied, m.Version)
	}
	return applied, nil
}

// Latest is the newest known schema version.
func Latest() int {
	return migrations[len(migrations)-1].Version
}

func statements(sqlText string) []string {
	var out []string
	for _, s := range strings.Split(sqlText, ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
