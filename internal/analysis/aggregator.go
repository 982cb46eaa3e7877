package analysis

import (
	"context"
	"strings"
	"time"

	"memebot/internal/domain"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Aggregator classifies a whole snapshot batch and logs the reasoning per asset.
type Aggregator struct {
	tracer trace.Tracer
	logger zerolog.Logger
	now    func() time.Time
}

func NewAggregator(tracer trace.Tracer, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		tracer: tracer,
		logger: logger.With().Str("component", "aggregator").Logger(),
		now:    time.Now,
	}
}

// Aggregate returns every signal for the batch in snapshot order. All signals
// of one batch share the same emission time.
func (a *Aggregator) Aggregate(ctx context.Context, snapshots []domain.AssetSnapshot) []domain.Signal {
	_, span := a.tracer.Start(ctx, "aggregator.aggregate")
	defer span.End()

	now := a.now().UTC()
	var out []domain.Signal
	skipped := 0

	for _, snap := range snapshots {
		ratio, ok := snap.VolumeRatio()
		if !ok {
			skipped++
			a.logger.Debug().Str("asset", snap.ID).Msg("skipped: no market cap")
			continue
		}

		signals, matched := classify(snap, now)
		rules := "none"
		if len(matched) > 0 {
			rules = strings.Join(matched, ",")
		}
		a.logger.Debug().
			Str("asset", snap.ID).
			Str("symbol", snap.DisplaySymbol()).
			Float64("change_24h_pct", snap.PriceChangePct24h).
			Float64("volume_ratio_pct", ratio*100).
			Float64("ath_change_pct", snap.ATHChangePct).
			Str("rules", rules).
			Msg("classified asset")

		for _, s := range signals {
			a.logger.Info().
				Str("symbol", s.AssetSymbol).
				Str("kind", string(s.Kind)).
				Float64("price", s.Price).
				Int("confidence", s.Confidence).
				Str("reason", s.Reason).
				Msg("signal")
		}
		out = append(out, signals...)
	}

	span.SetAttributes(
		attribute.Int("assets", len(snapshots)),
		attribute.Int("skipped", skipped),
		attribute.Int("signals", len(out)),
	)
	a.logger.Info().
		Int("assets", len(snapshots)).
		Int("skipped", skipped).
		Int("signals", len(out)).
		Msg("aggregation complete")

	return out
}
