package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Schema holds the archive DDL, applied in order. Every statement is
// idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS book_snapshots (
		symbol      TEXT        NOT NULL,
		nonce       BIGINT      NOT NULL,
		exchange_ts TIMESTAMPTZ,
		recorded_at TIMESTAMPTZ NOT NULL,
		reconciled  BOOLEAN     NOT NULL DEFAULT FALSE,
		bids        JSONB       NOT NULL,
		asks        JSONB       NOT NULL,
		best_bid    NUMERIC,
		best_ask    NUMERIC,
		spread      NUMERIC,
		PRIMARY KEY (symbol, nonce)
	)`,
	`CREATE INDEX IF NOT EXISTS book_snapshots_recorded_at_idx ON book_snapshots (recorded_at)`,
	`CREATE TABLE IF NOT EXISTS trades (
		symbol      TEXT        NOT NULL,
		trade_id    TEXT        NOT NULL,
		price       NUMERIC     NOT NULL,
		size        NUMERIC     NOT NULL,
		side        TEXT        NOT NULL,
		exchange_ts TIMESTAMPTZ,
		received_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (symbol, trade_id)
	)`,
	`CREATE TABLE IF NOT EXISTS tickers (
		symbol      TEXT        NOT NULL,
		kind        TEXT        NOT NULL,
		exchange_ts TIMESTAMPTZ NOT NULL,
		received_at TIMESTAMPTZ NOT NULL,
		bid         NUMERIC,
		bid_size    NUMERIC,
		ask         NUMERIC,
		ask_size    NUMERIC,
		last        NUMERIC,
		volume      NUMERIC,
		PRIMARY KEY (symbol, kind, exchange_ts)
	)`,
}

// EnsureSchema creates the archive tables if they do not exist.
func EnsureSchema(ctx context.Context, db Execer) error {
	for i, stmt := range Schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
