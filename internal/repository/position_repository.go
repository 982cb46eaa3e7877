package repository

import (
	"context"
	"errors"

	"memebot/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
)

// ErrPositionNotOpen is returned when closing a position that is already closed
// or does not exist.
var ErrPositionNotOpen = errors.New("position is not open")

const positionColumns = `id, asset_id, asset_symbol, buy_price, buy_at, sell_price, sell_at,
       COALESCE(profit_loss, 0), COALESCE(profit_loss_percentage, 0), COALESCE(duration_minutes, 0), status`

type PositionRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewPositionRepository(pool PgxPool, tracer trace.Tracer) *PositionRepository {
	return &PositionRepository{pool: pool, tracer: tracer}
}

// OpenPosition inserts an open position unless the asset already has one.
// It reports whether a row was created and sets p.ID when it was.
func (r *PositionRepository) OpenPosition(ctx context.Context, p *domain.Position) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "position-repo.open-position")
	defer span.End()

	err := r.pool.QueryRow(ctx,
		`INSERT INTO trading_performance (asset_id, asset_symbol, buy_price, buy_at, status)
		 VALUES ($1, $2, $3, $4, 'open')
		 ON CONFLICT (asset_id) WHERE status = 'open' DO NOTHING
		 RETURNING id`,
		p.AssetID, p.AssetSymbol, p.BuyPrice, p.BuyAt,
	).Scan(&p.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	p.Status = domain.PositionOpen
	return true, nil
}

// LatestOpenPosition returns the most recently opened open position for the
// asset, or nil when there is none.
func (r *PositionRepository) LatestOpenPosition(ctx context.Context, assetID string) (*domain.Position, error) {
	ctx, span := r.tracer.Start(ctx, "position-repo.latest-open-position")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT `+positionColumns+`
		 FROM trading_performance
		 WHERE asset_id = $1 AND status = 'open'
		 ORDER BY buy_at DESC, id DESC
		 LIMIT 1`,
		assetID,
	)
	if err != nil {
		return nil, err
	}
	positions, err := scanPositions(rows)
	if err != nil || len(positions) == 0 {
		return nil, err
	}
	return &positions[0], nil
}

// ClosePosition records the sell side of an open position.
func (r *PositionRepository) ClosePosition(ctx context.Context, p domain.Position) error {
	ctx, span := r.tracer.Start(ctx, "position-repo.close-position")
	defer span.End()

	tag, err := r.pool.Exec(ctx,
		`UPDATE trading_performance
		 SET sell_price = $2,
		     sell_at = $3,
		     profit_loss = $4,
		     profit_loss_percentage = $5,
		     duration_minutes = $6,
		     status = 'closed'
		 WHERE id = $1 AND status = 'open'`,
		p.ID, p.SellPrice, p.SellAt, p.ProfitLoss, p.ProfitLossPercentage, p.DurationMinutes,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPositionNotOpen
	}
	return nil
}

// ListPositions returns up to limit positions, newest first.
func (r *PositionRepository) ListPositions(ctx context.Context, limit int) ([]domain.Position, error) {
	ctx, span := r.tracer.Start(ctx, "position-repo.list-positions")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT `+positionColumns+`
		 FROM trading_performance
		 ORDER BY buy_at DESC, id DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	return scanPositions(rows)
}

func scanPositions(rows pgx.Rows) ([]domain.Position, error) {
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		var status string
		if err := rows.Scan(
			&p.ID, &p.AssetID, &p.AssetSymbol, &p.BuyPrice, &p.BuyAt, &p.SellPrice, &p.SellAt,
			&p.ProfitLoss, &p.ProfitLossPercentage, &p.DurationMinutes, &status,
		); err != nil {
			return nil, err
		}
		p.Status = domain.PositionStatus(status)
		p.BuyAt = p.BuyAt.UTC()
		if p.SellAt != nil {
			t := p.SellAt.UTC()
			p.SellAt = &t
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}
