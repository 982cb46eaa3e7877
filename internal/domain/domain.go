package domain

import (
	"strings"
	"time"
)

// AssetSnapshot is one asset's market data for a single poll cycle.
type AssetSnapshot struct {
	ID                string  `json:"id"`
	Symbol            string  `json:"symbol"`
	Name              string  `json:"name"`
	CurrentPrice      float64 `json:"current_price"`
	PriceChangePct24h float64 `json:"price_change_percentage_24h"`
	MarketCap         float64 `json:"market_cap"`
	Volume24h         float64 `json:"total_volume"`
	ATHChangePct      float64 `json:"ath_change_percentage"`
}

// VolumeRatio returns volume24h / marketCap. ok is false when market cap is
// not positive and the ratio is undefined.
func (a AssetSnapshot) VolumeRatio() (ratio float64, ok bool) {
	if a.MarketCap <= 0 {
		return 0, false
	}
	return a.Volume24h / a.MarketCap, true
}

// DisplaySymbol is the upper-cased ticker used in signals and messages.
func (a AssetSnapshot) DisplaySymbol() string {
	return strings.ToUpper(a.Symbol)
}

type SignalKind string

const (
	SignalBuy  SignalKind = "buy"
	SignalSell SignalKind = "sell"
	SignalHold SignalKind = "hold"
)

func (k SignalKind) IsValid() bool {
	return k == SignalBuy || k == SignalSell || k == SignalHold
}

// Signal is an immutable classification result for one asset and one rule.
type Signal struct {
	ID          string     `json:"id"`
	AssetID     string     `json:"asset_id"`
	AssetSymbol string     `json:"asset_symbol"`
	Kind        SignalKind `json:"kind"`
	Price       float64    `json:"price"`
	Confidence  int        `json:"confidence"`
	Reason      string     `json:"reason"`
	EmittedAt   time.Time  `json:"emitted_at"`
}

// PersistedAction is the write-once audit row for an emitted signal.
type PersistedAction struct {
	ID                int64      `json:"id"`
	SignalID          string     `json:"signal_id"`
	AssetID           string     `json:"asset_id"`
	AssetSymbol       string     `json:"asset_symbol"`
	Kind              SignalKind `json:"kind"`
	Price             float64    `json:"price"`
	Confidence        int        `json:"confidence"`
	Reason            string     `json:"reason"`
	MarketCap         float64    `json:"market_cap"`
	Volume24h         float64    `json:"volume_24h"`
	PriceChangePct24h float64    `json:"price_change_24h"`
	VolumeSpike       bool       `json:"volume_spike"`
	EmittedAt         time.Time  `json:"emitted_at"`
}

type PositionStatus string

const (
	PositionOpen   PositionStatus = "open"
	PositionClosed PositionStatus = "closed"
)

// Position tracks a Buy signal until the next Sell signal for the same asset.
type Position struct {
	ID                   int64          `json:"id"`
	AssetID              string         `json:"asset_id"`
	AssetSymbol          string         `json:"asset_symbol"`
	BuyPrice             float64        `json:"buy_price"`
	BuyAt                time.Time      `json:"buy_at"`
	SellPrice            *float64       `json:"sell_price,omitempty"`
	SellAt               *time.Time     `json:"sell_at,omitempty"`
	ProfitLoss           float64        `json:"profit_loss"`
	ProfitLossPercentage float64        `json:"profit_loss_percentage"`
	DurationMinutes      int            `json:"duration_minutes"`
	Status               PositionStatus `json:"status"`
}

// PerformanceStats summarizes closed positions.
type PerformanceStats struct {
	TotalTrades int     `json:"total_trades"`
	WinRate     float64 `json:"win_rate"`
	TotalProfit float64 `json:"total_profit"`
	AvgDuration float64 `json:"avg_duration_minutes"`
	BestTrade   float64 `json:"best_trade_pct"`
	WorstTrade  float64 `json:"worst_trade_pct"`
}

// CycleResult is what one analysis cycle produced.
type CycleResult struct {
	CycleID      string          `json:"cycle_id"`
	StartedAt    time.Time       `json:"started_at"`
	Snapshots    []AssetSnapshot `json:"snapshots"`
	Signals      []Signal        `json:"signals"`
	UsedFallback bool            `json:"used_fallback"`
	Persisted    bool            `json:"persisted"`
}
