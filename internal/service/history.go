package service

import (
	"context"
	"math"
	"time"

	"memebot/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const (
	defaultHistoryHours   = 24
	maxHistoryHours       = 24 * 30
	defaultActionsLimit   = 100
	maxActionsLimit       = 1000
	defaultPositionsLimit = 50
	maxPositionsLimit     = 500
)

// HistoryService serves stored actions and positions.
type HistoryService struct {
	tracer    trace.Tracer
	actions   ActionStore
	positions PositionStore
	now       func() time.Time
}

func NewHistoryService(tracer trace.Tracer, actions ActionStore, positions PositionStore) *HistoryService {
	return &HistoryService{tracer: tracer, actions: actions, positions: positions, now: time.Now}
}

// RecentActions returns actions from the last hours hours, newest first.
func (s *HistoryService) RecentActions(ctx context.Context, hours, limit int) ([]domain.PersistedAction, error) {
	ctx, span := s.tracer.Start(ctx, "history-service.recent-actions")
	defer span.End()

	hours = clampInt(hours, defaultHistoryHours, maxHistoryHours)
	limit = clampInt(limit, defaultActionsLimit, maxActionsLimit)
	since := s.now().UTC().Add(-time.Duration(hours) * time.Hour)
	return s.actions.RecentActions(ctx, since, limit)
}

// Performance returns the latest positions and stats over the closed ones.
func (s *HistoryService) Performance(ctx context.Context, limit int) ([]domain.Position, domain.PerformanceStats, error) {
	ctx, span := s.tracer.Start(ctx, "history-service.performance")
	defer span.End()

	limit = clampInt(limit, defaultPositionsLimit, maxPositionsLimit)
	positions, err := s.positions.ListPositions(ctx, limit)
	if err != nil {
		return nil, domain.PerformanceStats{}, err
	}
	return positions, Stats(positions), nil
}

// Stats summarizes closed positions; open ones are ignored. A trade wins when
// its profit is strictly positive.
func Stats(positions []domain.Position) domain.PerformanceStats {
	var stats domain.PerformanceStats
	var wins int
	var duration float64

	for _, p := range positions {
		if p.Status != domain.PositionClosed {
			continue
		}
		if stats.TotalTrades == 0 {
			stats.BestTrade = p.ProfitLossPercentage
			stats.WorstTrade = p.ProfitLossPercentage
		}
		stats.TotalTrades++
		if p.ProfitLoss > 0 {
			wins++
		}
		stats.TotalProfit += p.ProfitLoss
		duration += float64(p.DurationMinutes)
		stats.BestTrade = math.Max(stats.BestTrade, p.ProfitLossPercentage)
		stats.WorstTrade = math.Min(stats.WorstTrade, p.ProfitLossPercentage)
	}

	if stats.TotalTrades == 0 {
		return domain.PerformanceStats{}
	}
	stats.WinRate = float64(wins) / float64(stats.TotalTrades) * 100
	stats.AvgDuration = duration / float64(stats.TotalTrades)
	return stats
}

func clampInt(v, def, upper int) int {
	if v <= 0 {
		return def
	}
	if v > upper {
		return upper
	}
	return v
}
