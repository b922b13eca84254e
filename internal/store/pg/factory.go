// Package pg persists channel bindings and known remote threads in Postgres,
// for deployments that run more than one bot process against a shared store.
package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver

	"github.com/nextlevelbuilder/chefbot/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS chefbot_channel_bindings (
	surface_id  TEXT PRIMARY KEY,
	channel_id  TEXT NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS chefbot_remote_threads (
	thread_id   UUID PRIMARY KEY,
	scope_key   TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

// OpenDB opens a pooled connection and verifies it with a ping.
func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}

// NewPGStores opens Postgres at dsn, applies the schema, and returns the
// binding and thread stores backed by it.
func NewPGStores(dsn string) (*store.Stores, error) {
	db, err := OpenDB(dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &store.Stores{
		Bindings: NewPGBindingStore(db),
		Threads:  NewPGThreadStore(db),
		Close:    db.Close,
	}, nil
}
