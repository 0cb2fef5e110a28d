// Package store implements the harness's single-table composite-key Store
// (spec §3, §6) on top of PostgreSQL: one table keyed by (partition_key,
// sort_key), holding RunMeta, Observation, and MissingRecord rows for every
// run. A range scan on partition_key fetches a run's entire state.
package store

import (
	"context"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	stdsql "database/sql"

	_ "github.com/jackc/pgx/v5/stdlib" // register the pgx driver for database/sql (migrate needs it)
)

//go:embed migrations
var migrationsFS embed.FS

// Client wraps a pgx connection pool and exposes the Store operations used
// by every worker (Seeder, Collector, Verifier, Report producer).
type Client struct {
	pool *pgxpool.Pool
}

// Pool returns the underlying pool for health checks and tests.
func (c *Client) Pool() *pgxpool.Pool { return c.pool }

// Close releases the pool's connections.
func (c *Client) Close() { c.pool.Close() }

// NewClient connects to Postgres, runs pending migrations, and returns a
// ready Client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse store DSN: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open store pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping store: %w", err)
	}

	if err := runMigrations(cfg.DSN); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run store migrations: %w", err)
	}

	return &Client{pool: pool}, nil
}

// runMigrations applies embedded migrations with golang-migrate. It opens a
// short-lived database/sql connection of its own — migrate owns the
// connection lifecycle for the duration of Up(), independent of the pgx pool
// used for regular Store traffic.
func runMigrations(dsn string) error {
	db, err := stdsql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres migrate driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}
	defer sourceDriver.Close()

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "store", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}
