package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"memebot/internal/analysis"
	"memebot/internal/domain"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type ActionStore interface {
	InsertActions(ctx context.Context, actions []domain.PersistedAction) error
	ActionsSince(ctx context.Context, since time.Time) ([]domain.PersistedAction, error)
	RecentActions(ctx context.Context, since time.Time, limit int) ([]domain.PersistedAction, error)
}

type PositionStore interface {
	OpenPosition(ctx context.Context, p *domain.Position) (bool, error)
	LatestOpenPosition(ctx context.Context, assetID string) (*domain.Position, error)
	ClosePosition(ctx context.Context, p domain.Position) error
	ListPositions(ctx context.Context, limit int) ([]domain.Position, error)
}

// PersistError means a signal batch was not stored. Nothing from the batch
// was written and nothing is retried.
type PersistError struct {
	Signals int
	Err     error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %d signals: %v", e.Signals, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// SignalSink stores every emitted signal as an action and keeps positions in
// step: a Buy opens one when the asset has none, a Sell closes the latest.
type SignalSink struct {
	actions   ActionStore
	positions PositionStore
	tracer    trace.Tracer
	logger    zerolog.Logger
}

func NewSignalSink(actions ActionStore, positions PositionStore, tracer trace.Tracer, logger zerolog.Logger) *SignalSink {
	return &SignalSink{
		actions:   actions,
		positions: positions,
		tracer:    tracer,
		logger:    logger.With().Str("component", "sink").Logger(),
	}
}

// Persist writes one action per signal. snapshots is keyed by asset id and
// supplies market context for each row. Position bookkeeping failures are
// logged and do not fail the call.
func (s *SignalSink) Persist(ctx context.Context, signals []domain.Signal, snapshots map[string]domain.AssetSnapshot) error {
	if len(signals) == 0 {
		return nil
	}

	ctx, span := s.tracer.Start(ctx, "sink.persist")
	defer span.End()
	span.SetAttributes(attribute.Int("signals", len(signals)))

	actions := make([]domain.PersistedAction, 0, len(signals))
	for _, sig := range signals {
		snap := snapshots[sig.AssetID]
		actions = append(actions, domain.PersistedAction{
			SignalID:          sig.ID,
			AssetID:           sig.AssetID,
			AssetSymbol:       sig.AssetSymbol,
			Kind:              sig.Kind,
			Price:             sig.Price,
			Confidence:        sig.Confidence,
			Reason:            sig.Reason,
			MarketCap:         snap.MarketCap,
			Volume24h:         snap.Volume24h,
			PriceChangePct24h: snap.PriceChangePct24h,
			VolumeSpike:       analysis.VolumeSpike(snap),
			EmittedAt:         sig.EmittedAt,
		})
	}

	if err := s.actions.InsertActions(ctx, actions); err != nil {
		span.RecordError(err)
		return &PersistError{Signals: len(signals), Err: err}
	}
	s.logger.Info().Int("actions", len(actions)).Msg("actions stored")

	if s.positions == nil {
		return nil
	}
	for _, sig := range signals {
		var err error
		switch sig.Kind {
		case domain.SignalBuy:
			err = s.openPosition(ctx, sig)
		case domain.SignalSell:
			err = s.closePosition(ctx, sig)
		}
		if err != nil {
			s.logger.Error().Err(err).Str("asset", sig.AssetID).Str("kind", string(sig.Kind)).Msg("position update failed")
		}
	}
	return nil
}

func (s *SignalSink) openPosition(ctx context.Context, sig domain.Signal) error {
	open, err := s.positions.LatestOpenPosition(ctx, sig.AssetID)
	if err != nil {
		return err
	}
	if open != nil {
		return nil
	}

	p := &domain.Position{
		AssetID:     sig.AssetID,
		AssetSymbol: sig.AssetSymbol,
		BuyPrice:    sig.Price,
		BuyAt:       sig.EmittedAt,
		Status:      domain.PositionOpen,
	}
	created, err := s.positions.OpenPosition(ctx, p)
	if err != nil {
		return err
	}
	if created {
		s.logger.Info().Str("symbol", sig.AssetSymbol).Float64("buy_price", sig.Price).Msg("position opened")
	}
	return nil
}

func (s *SignalSink) closePosition(ctx context.Context, sig domain.Signal) error {
	open, err := s.positions.LatestOpenPosition(ctx, sig.AssetID)
	if err != nil || open == nil {
		return err
	}

	closed := ClosePosition(*open, sig.Price, sig.EmittedAt)
	if err := s.positions.ClosePosition(ctx, closed); err != nil {
		return err
	}
	s.logger.Info().
		Str("symbol", sig.AssetSymbol).
		Float64("profit_loss_pct", closed.ProfitLossPercentage).
		Int("duration_minutes", closed.DurationMinutes).
		Msg("position closed")
	return nil
}

// ClosePosition returns p settled at sellPrice. Duration is floored to whole
// minutes and never negative.
func ClosePosition(p domain.Position, sellPrice float64, sellAt time.Time) domain.Position {
	p.SellPrice = &sellPrice
	p.SellAt = &sellAt
	p.ProfitLoss = sellPrice - p.BuyPrice
	if p.BuyPrice != 0 {
		p.ProfitLossPercentage = (sellPrice - p.BuyPrice) / p.BuyPrice * 100
	}
	minutes := math.Floor(sellAt.Sub(p.BuyAt).Minutes())
	if minutes < 0 {
		minutes = 0
	}
	p.DurationMinutes = int(minutes)
	p.Status = domain.PositionClosed
	return p
}

// Window returns every action emitted in the trailing d before now.
func (s *SignalSink) Window(ctx context.Context, now time.Time, d time.Duration) ([]domain.PersistedAction, error) {
	ctx, span := s.tracer.Start(ctx, "sink.window")
	defer span.End()

	return s.actions.ActionsSince(ctx, now.Add(-d))
}
