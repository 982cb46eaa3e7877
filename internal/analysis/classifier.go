package analysis

import (
	"fmt"
	"math"
	"time"

	"memebot/internal/domain"
)

// Reason labels attached to emitted signals.
const (
	ReasonStrongBullish  = "strong bullish momentum"
	ReasonPositiveVolume = "positive move with volume"
	ReasonRecovery       = "recovery from recent lows"
	ReasonOversoldBounce = "oversold bounce candidate"
	ReasonHeavyDecline   = "heavy decline with volume"
	ReasonDecline        = "decline without volume support"
	ReasonOverbought     = "overbought, take profit"
	ReasonConsolidation  = "consolidation, awaiting breakout"
)

const (
	volumeSpikeRatio = 0.01
	minConfidence    = 0
	maxConfidence    = 100
)

// metrics are the ratios every rule reads.
type metrics struct {
	change      float64
	volumeRatio float64
	athChange   float64
}

type rule struct {
	name       string
	kind       domain.SignalKind
	match      func(m metrics) bool
	confidence func(m metrics) float64
	reason     func(m metrics) string
}

func fixed(reason string) func(metrics) string {
	return func(metrics) string { return reason }
}

// Each family is an ordered cascade: the first matching rule wins. Families
// are evaluated independently of each other.
var (
	buyRules = []rule{
		{
			name: "buy-momentum",
			kind: domain.SignalBuy,
			match: func(m metrics) bool {
				return m.change > 2 && m.volumeRatio > 0.02
			},
			confidence: func(m metrics) float64 {
				return math.Min(95, 50+math.Abs(m.change)*2+m.volumeRatio*200)
			},
			reason: func(m metrics) string {
				if m.change > 10 {
					return ReasonStrongBullish
				}
				return ReasonPositiveVolume
			},
		},
		{
			name: "buy-recovery",
			kind: domain.SignalBuy,
			match: func(m metrics) bool {
				return m.change > 1 && m.athChange > -50
			},
			confidence: func(m metrics) float64 {
				return math.Min(85, 45+math.Abs(m.change)*3)
			},
			reason: fixed(ReasonRecovery),
		},
		{
			name: "buy-oversold",
			kind: domain.SignalBuy,
			match: func(m metrics) bool {
				return m.change > -15 && m.change < -5 && m.volumeRatio > 0.03
			},
			confidence: func(m metrics) float64 {
				return math.Min(90, 60+math.Abs(m.change))
			},
			reason: fixed(ReasonOversoldBounce),
		},
	}

	sellRules = []rule{
		{
			name: "sell-decline",
			kind: domain.SignalSell,
			match: func(m metrics) bool {
				return m.change < -3 && m.volumeRatio > 0.02
			},
			confidence: func(m metrics) float64 {
				return math.Min(90, 50+math.Abs(m.change)*2+m.volumeRatio*100)
			},
			reason: func(m metrics) string {
				if m.change < -10 {
					return ReasonHeavyDecline
				}
				return ReasonDecline
			},
		},
		{
			name: "sell-overbought",
			kind: domain.SignalSell,
			match: func(m metrics) bool {
				return m.change > 15 && m.athChange > -20
			},
			confidence: func(m metrics) float64 {
				return math.Min(85, 55+(m.change-15))
			},
			reason: fixed(ReasonOverbought),
		},
	}

	holdRules = []rule{
		{
			name: "hold-consolidation",
			kind: domain.SignalHold,
			match: func(m metrics) bool {
				return math.Abs(m.change) < 2 && m.volumeRatio > 0.01
			},
			confidence: func(m metrics) float64 {
				return math.Min(75, 40+m.volumeRatio*200)
			},
			reason: fixed(ReasonConsolidation),
		},
	}

	families = [][]rule{buyRules, sellRules, holdRules}
)

// Classify turns one snapshot into zero or more signals, at most one per kind.
// Snapshots without a positive market cap yield no signals.
func Classify(snapshot domain.AssetSnapshot, now time.Time) []domain.Signal {
	signals, _ := classify(snapshot, now)
	return signals
}

func classify(snapshot domain.AssetSnapshot, now time.Time) ([]domain.Signal, []string) {
	ratio, ok := snapshot.VolumeRatio()
	if !ok {
		return nil, nil
	}
	m := metrics{
		change:      snapshot.PriceChangePct24h,
		volumeRatio: ratio,
		athChange:   snapshot.ATHChangePct,
	}

	var signals []domain.Signal
	var matched []string
	for _, family := range families {
		for _, r := range family {
			if !r.match(m) {
				continue
			}
			signals = append(signals, domain.Signal{
				ID:          fmt.Sprintf("%s-%s-%d", snapshot.ID, r.name, now.UnixMilli()),
				AssetID:     snapshot.ID,
				AssetSymbol: snapshot.DisplaySymbol(),
				Kind:        r.kind,
				Price:       snapshot.CurrentPrice,
				Confidence:  clampConfidence(r.confidence(m)),
				Reason:      r.reason(m),
				EmittedAt:   now,
			})
			matched = append(matched, r.name)
			break
		}
	}
	return signals, matched
}

// VolumeSpike reports whether more than 1% of the market cap traded in 24h.
func VolumeSpike(snapshot domain.AssetSnapshot) bool {
	ratio, ok := snapshot.VolumeRatio()
	return ok && ratio > volumeSpikeRatio
}

func clampConfidence(v float64) int {
	if math.IsNaN(v) {
		return minConfidence
	}
	v = math.Round(v)
	if v < minConfidence {
		return minConfidence
	}
	if v > maxConfidence {
		return maxConfidence
	}
	return int(v)
}
