package repository

import (
	"context"
	"fmt"
	"time"

	"memebot/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const actionColumns = `id, signal_id, asset_id, asset_symbol, action, price, confidence, reason,
       market_cap, volume_24h, price_change_24h, volume_spike, emitted_at`

type ActionRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewActionRepository(pool PgxPool, tracer trace.Tracer) *ActionRepository {
	return &ActionRepository{pool: pool, tracer: tracer}
}

// InsertActions writes the whole batch in one transaction and fills in the
// generated ids. Either every row is stored or none is.
func (r *ActionRepository) InsertActions(ctx context.Context, actions []domain.PersistedAction) error {
	if len(actions) == 0 {
		return nil
	}

	ctx, span := r.tracer.Start(ctx, "action-repo.insert-actions")
	defer span.End()
	span.SetAttributes(attribute.Int("actions", len(actions)))

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, a := range actions {
		batch.Queue(
			`INSERT INTO trading_actions
			     (signal_id, asset_id, asset_symbol, action, price, confidence, reason,
			      market_cap, volume_24h, price_change_24h, volume_spike, emitted_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			 RETURNING id`,
			a.SignalID, a.AssetID, a.AssetSymbol, string(a.Kind), a.Price, a.Confidence, a.Reason,
			a.MarketCap, a.Volume24h, a.PriceChangePct24h, a.VolumeSpike, a.EmittedAt,
		)
	}

	br := tx.SendBatch(ctx, batch)
	ids := make([]int64, len(actions))
	for i := range actions {
		if err := br.QueryRow().Scan(&ids[i]); err != nil {
			br.Close()
			return fmt.Errorf("insert action %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	for i := range actions {
		actions[i].ID = ids[i]
	}
	return nil
}

// ActionsSince returns every action emitted at or after since, oldest first.
func (r *ActionRepository) ActionsSince(ctx context.Context, since time.Time) ([]domain.PersistedAction, error) {
	ctx, span := r.tracer.Start(ctx, "action-repo.actions-since")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT `+actionColumns+`
		 FROM trading_actions
		 WHERE emitted_at >= $1
		 ORDER BY emitted_at ASC, id ASC`,
		since,
	)
	if err != nil {
		return nil, err
	}
	return scanActions(rows)
}

// RecentActions returns up to limit actions emitted at or after since, newest first.
func (r *ActionRepository) RecentActions(ctx context.Context, since time.Time, limit int) ([]domain.PersistedAction, error) {
	ctx, span := r.tracer.Start(ctx, "action-repo.recent-actions")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT `+actionColumns+`
		 FROM trading_actions
		 WHERE emitted_at >= $1
		 ORDER BY emitted_at DESC, id DESC
		 LIMIT $2`,
		since, limit,
	)
	if err != nil {
		return nil, err
	}
	return scanActions(rows)
}

func scanActions(rows pgx.Rows) ([]domain.PersistedAction, error) {
	defer rows.Close()

	var actions []domain.PersistedAction
	for rows.Next() {
		var a domain.PersistedAction
		var kind string
		if err := rows.Scan(
			&a.ID, &a.SignalID, &a.AssetID, &a.AssetSymbol, &kind, &a.Price, &a.Confidence, &a.Reason,
			&a.MarketCap, &a.Volume24h, &a.PriceChangePct24h, &a.VolumeSpike, &a.EmittedAt,
		); err != nil {
			return nil, err
		}
		a.Kind = domain.SignalKind(kind)
		a.EmittedAt = a.EmittedAt.UTC()
		actions = append(actions, a)
	}
	return actions, rows.Err()
}
