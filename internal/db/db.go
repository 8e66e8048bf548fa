// Package db is the PostgreSQL storage layer for workflows and executions.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// ErrNoRows is wrapped by lookups that find nothing.
var ErrNoRows = sql.ErrNoRows

// DB wraps a database/sql connection pool for PostgreSQL.
type DB struct {
	Pool *sql.DB
}

// New opens and pings a PostgreSQL connection pool.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	connector, err := pq.NewConnector(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	pool := sql.OpenDB(connector)

	pool.SetMaxOpenConns(25)
	pool.SetMaxIdleConns(5)

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the connection pool.
func (d *DB) Close() error {
	return d.Pool.Close()
}

// EnsureSchema creates the tables if they do not exist. It is idempotent
// and does not migrate existing tables.
func (d *DB) EnsureSchema(ctx context.Context) error {
	if _, err := d.Pool.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err is a PostgreSQL unique_violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS workflows (
    id                    TEXT PRIMARY KEY,
    name                  TEXT NOT NULL,
    description           TEXT NOT NULL DEFAULT '',
    target_url            TEXT NOT NULL DEFAULT '',
    headers               JSONB NOT NULL DEFAULT '{}',
    requires_input        BOOLEAN NOT NULL DEFAULT FALSE,
    input_schema          JSONB NOT NULL DEFAULT '[]',
    execution_count       INTEGER NOT NULL DEFAULT 0,
    success_rate          INTEGER NOT NULL DEFAULT 100,
    avg_execution_time_ms BIGINT NOT NULL DEFAULT 0,
    last_run_at           TIMESTAMPTZ,
    created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS workflow_executions (
    id            TEXT PRIMARY KEY,
    seq           BIGSERIAL,
    workflow_id   TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
    workflow_name TEXT NOT NULL,
    status        TEXT NOT NULL DEFAULT 'running',
    params        JSONB,
    start_time    TIMESTAMPTZ NOT NULL,
    end_time      TIMESTAMPTZ,
    duration_ms   BIGINT,
    result        JSONB,
    error         TEXT,
    error_kind    TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_workflow_executions_workflow_id ON workflow_executions(workflow_id, start_time DESC);
CREATE INDEX IF NOT EXISTS idx_workflow_executions_status ON workflow_executions(status);
`
