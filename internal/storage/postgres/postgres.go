// Package postgres implements opportunity persistence on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool wraps pgxpool.Pool for dependency injection.
type Pool struct {
	*pgxpool.Pool
}

// NewPool creates a new Postgres connection pool.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() {
	p.Pool.Close()
}

// PostgreSQL error codes
const (
	pgErrUniqueViolation = "23505" // unique_violation
)

// isDuplicateKeyError checks if error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrUniqueViolation
	}
	return false
}

// Schema is the DDL for the opportunity history table. EnsureSchema applies
// it idempotently at startup.
const Schema = `
CREATE TABLE IF NOT EXISTS opportunities (
	block_number    BIGINT          NOT NULL,
	path_signature  TEXT            NOT NULL,
	token_route     TEXT            NOT NULL,
	hops            SMALLINT        NOT NULL,
	optimal_input   NUMERIC(78, 0)  NOT NULL,
	expected_output NUMERIC(78, 0)  NOT NULL,
	gross_profit    NUMERIC(78, 0)  NOT NULL,
	gas_cost        NUMERIC(78, 0)  NOT NULL,
	net_profit      NUMERIC(78, 0)  NOT NULL,
	profit_margin   DOUBLE PRECISION NOT NULL,
	discovered_at   BIGINT          NOT NULL,
	PRIMARY KEY (block_number, path_signature)
);

CREATE INDEX IF NOT EXISTS idx_opportunities_net_profit
	ON opportunities (net_profit DESC);
`

// EnsureSchema creates the opportunity tables if they do not exist.
func (p *Pool) EnsureSchema(ctx context.Context) error {
	if _, err := p.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply opportunities schema: %w", err)
	}
	return nil
}
