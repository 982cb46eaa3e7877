package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

// schema mirrors cmd/migrate/migrations so a fresh database works without
// running the migrate tool first.
const schema = `
CREATE TABLE IF NOT EXISTS trading_actions (
    id                BIGSERIAL        PRIMARY KEY,
    signal_id         TEXT             NOT NULL,
    asset_id          TEXT             NOT NULL,
    asset_symbol      TEXT             NOT NULL,
    action            TEXT             NOT NULL CHECK (action IN ('buy', 'sell', 'hold')),
    price             DOUBLE PRECISION NOT NULL,
    confidence        INTEGER          NOT NULL CHECK (confidence BETWEEN 0 AND 100),
    reason            TEXT             NOT NULL,
    market_cap        DOUBLE PRECISION NOT NULL,
    volume_24h        DOUBLE PRECISION NOT NULL,
    price_change_24h  DOUBLE PRECISION NOT NULL,
    volume_spike      BOOLEAN          NOT NULL DEFAULT FALSE,
    emitted_at        TIMESTAMPTZ      NOT NULL,
    created_at        TIMESTAMPTZ      NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_trading_actions_emitted_at
    ON trading_actions (emitted_at DESC);

CREATE INDEX IF NOT EXISTS idx_trading_actions_asset_emitted_at
    ON trading_actions (asset_id, emitted_at DESC);

CREATE TABLE IF NOT EXISTS trading_performance (
    id                      BIGSERIAL        PRIMARY KEY,
    asset_id                TEXT             NOT NULL,
    asset_symbol            TEXT             NOT NULL,
    buy_price               DOUBLE PRECISION NOT NULL,
    buy_at                  TIMESTAMPTZ      NOT NULL,
    sell_price              DOUBLE PRECISION,
    sell_at                 TIMESTAMPTZ,
    profit_loss             DOUBLE PRECISION,
    profit_loss_percentage  DOUBLE PRECISION,
    duration_minutes        INTEGER,
    status                  TEXT             NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'closed')),
    created_at              TIMESTAMPTZ      NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_trading_performance_open_asset
    ON trading_performance (asset_id) WHERE status = 'open';

CREATE INDEX IF NOT EXISTS idx_trading_performance_buy_at
    ON trading_performance (buy_at DESC);
`

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// RunMigrations creates both tables if they do not exist yet.
func RunMigrations(ctx context.Context, pool PgxPool, tracer trace.Tracer) error {
	ctx, span := tracer.Start(ctx, "repository.run-migrations")
	defer span.End()

	_, err := pool.Exec(ctx, schema)
	return err
}
