// Package store is the PostGIS-backed persistence layer (spec.md
// §4.1, C1): the aed, country, and state tables, their GiST/GIN
// indexes, and the read/write session split the ingestion services
// run under.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store owns the connection pool shared by every repository.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn and verifies reachability.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 16

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() { s.pool.Close() }

// Migrate creates the aed/country/state tables and their indexes if
// they do not already exist. Idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// withTx runs fn inside a transaction, committing on success and
// rolling back on error or panic. Mirrors the write-session contract
// of the original db_write() context manager: callers get a
// single-commit unit of work.
func (s *Store) withTx(ctx context.Context, fn func(ctx context.Context, tx pgxTx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS aed (
		id BIGINT PRIMARY KEY,
		version BIGINT NOT NULL,
		tags JSONB NOT NULL,
		position GEOMETRY(Point, 4326) NOT NULL,
		country_codes VARCHAR(8)[]
	)`,
	`CREATE INDEX IF NOT EXISTS aed_position_idx ON aed USING gist (position)`,
	`CREATE INDEX IF NOT EXISTS aed_country_codes_idx ON aed USING gin (country_codes)`,
	`CREATE TABLE IF NOT EXISTS country (
		code VARCHAR(8) PRIMARY KEY,
		names JSONB NOT NULL,
		geometry GEOMETRY(Geometry, 4326) NOT NULL,
		label_position GEOMETRY(Point, 4326) NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS country_geometry_idx ON country USING gist (geometry)`,
	`CREATE TABLE IF NOT EXISTS state (
		key VARCHAR PRIMARY KEY,
		data JSONB NOT NULL
	)`,
}
