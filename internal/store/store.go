package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const defaultTimeout = 5 * time.Second

// Open connects to Postgres and verifies the connection.
func Open(databaseURL string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS kimchi_snapshots (
		id TEXT PRIMARY KEY,
		coin TEXT NOT NULL,
		bithumb_krw DOUBLE PRECISION NOT NULL,
		binance_usd DOUBLE PRECISION NOT NULL,
		premium_pct DOUBLE PRECISION NOT NULL,
		krw_usd_rate DOUBLE PRECISION NOT NULL,
		volume_24h_usd DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_kimchi_snapshots_coin_created
		ON kimchi_snapshots (coin, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS services (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		endpoint TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		price_usdc DOUBLE PRECISION NOT NULL DEFAULT 0,
		paid BOOLEAN NOT NULL DEFAULT false,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS service_calls (
		id TEXT PRIMARY KEY,
		service_id TEXT NOT NULL,
		agent_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT '',
		response_time_ms INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_service_calls_agent_created
		ON service_calls (agent_id, created_at DESC)`,
}

// Migrate creates the schema when it does not exist yet.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
