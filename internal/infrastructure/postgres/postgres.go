// Package postgres connects to the shared Postgres database used when
// several backend replicas serve the same device set.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nadavnv/smart-home-core/internal/infrastructure/config"
)

const (
	defaultMaxConns = 10
	connectTimeout  = 10 * time.Second
)

// schema is applied idempotently at startup.
const schema = `
CREATE TABLE IF NOT EXISTS devices (
    id         TEXT PRIMARY KEY,
    type       TEXT NOT NULL CHECK (type IN ('light', 'water_heater', 'air_conditioner', 'door_lock', 'curtain')),
    name       TEXT NOT NULL,
    room       TEXT NOT NULL,
    status     TEXT NOT NULL,
    parameters JSONB NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_devices_room ON devices (room);

CREATE TABLE IF NOT EXISTS users (
    username      TEXT PRIMARY KEY,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'user',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS audit_logs (
    id          TEXT PRIMARY KEY,
    action      TEXT NOT NULL,
    device_id   TEXT NOT NULL,
    device_type TEXT NOT NULL DEFAULT '',
    origin      TEXT NOT NULL,
    actor       TEXT,
    details     JSONB,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_audit_logs_device ON audit_logs (device_id);
`

// Connect opens a connection pool and verifies it with a ping.
//
// Parameters:
//   - ctx: bounds the initial ping
//   - cfg: DSN and pool size
//
// Returns:
//   - *pgxpool.Pool: ready pool; caller must Close it
//   - error: if the DSN is invalid or the server is unreachable
func Connect(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn: %w", err)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}
	poolConfig.MaxConns = int32(maxConns) //nolint:gosec // Bounded by config validation

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	return pool, nil
}

// EnsureSchema creates the devices and users tables if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("creating postgres schema: %w", err)
	}
	return nil
}

// HealthCheck pings the pool.
func HealthCheck(ctx context.Context, pool *pgxpool.Pool) error {
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres health check failed: %w", err)
	}
	return nil
}
