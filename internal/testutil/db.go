// Package testutil builds throwaway stores for package tests.
package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/Hons90/CRM/internal/schema"
	"github.com/Hons90/CRM/pkg/utils"

	_ "github.com/mattn/go-sqlite3"
)

// NewDB returns a migrated in-memory sqlite database closed at test cleanup.
func NewDB(t testing.TB) *sql.DB {
	t.Helper()

	ctx := context.Background()
	db, err := utils.OpenDB(ctx, utils.DriverSQLite, ":memory:", utils.PoolConfig{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := schema.Migrate(ctx, db, utils.DriverSQLite); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	return db
}

// InsertUser seeds a user row and returns its id.
func InsertUser(t testing.TB, db *sql.DB, email, role string) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(
		`INSERT INTO users (name, email, password_hash, role, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		email, email, "x", role, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		t.Fatalf("failed to insert user: %v", err)
	}
	return id
}

// InsertPool seeds a dialer pool row and returns its id.
func InsertPool(t testing.TB, db *sql.DB, name string) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(
		`INSERT INTO dialer_pools (pool_name, created_at) VALUES ($1, $2) RETURNING id`,
		name, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		t.Fatalf("failed to insert pool: %v", err)
	}
	return id
}
