package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

type DB struct {
	Pool *pgxpool.Pool
}

func NewDB(ctx context.Context, dsn string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &DB{Pool: pool}, nil
}

// EnsureSchema creates the tables if they do not exist yet.
func (d *DB) EnsureSchema(ctx context.Context) error {
	if _, err := d.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (d *DB) Close() {
	if d != nil && d.Pool != nil {
		d.Pool.Close()
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS reports (
  report_id     UUID PRIMARY KEY,
  source        TEXT NOT NULL,
  sha256        TEXT NOT NULL,
  kinds         TEXT[] NOT NULL,
  page_count    INT NOT NULL,
  error_count   INT NOT NULL,
  warning_count INT NOT NULL,
  summary       JSONB,
  errors        JSONB NOT NULL DEFAULT '[]',
  warnings      JSONB NOT NULL DEFAULT '[]',
  created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS report_pages (
  report_id UUID NOT NULL REFERENCES reports(report_id) ON DELETE CASCADE,
  kind      TEXT NOT NULL,
  page_id   INT NOT NULL,
  position  INT NOT NULL,
  record    JSONB NOT NULL,
  PRIMARY KEY (report_id, kind, page_id)
);

CREATE TABLE IF NOT EXISTS convergence_steps (
  sweep_id   TEXT NOT NULL,
  case_name  TEXT NOT NULL,
  iteration  INT NOT NULL,
  parameter  DOUBLE PRECISION NOT NULL,
  value      DOUBLE PRECISION NOT NULL,
  rel_error  DOUBLE PRECISION NOT NULL,
  continue   BOOLEAN NOT NULL,
  report_id  UUID REFERENCES reports(report_id) ON DELETE SET NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  PRIMARY KEY (sweep_id, case_name, iteration)
);
`
