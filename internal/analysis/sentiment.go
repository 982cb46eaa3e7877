package analysis

import (
	"math"
	"sort"

	"memebot/internal/domain"
)

type SentimentScore struct {
	Score    float64                `json:"score"`
	Label    string                 `json:"label"`
	Gainers  int                    `json:"gainers"`
	Losers   int                    `json:"losers"`
	Assets   int                    `json:"assets"`
	TopMover []domain.AssetSnapshot `json:"top_movers"`
}

// Sentiment scores the breadth of the batch on a 0-100 scale, 50 being neutral.
func Sentiment(snapshots []domain.AssetSnapshot) SentimentScore {
	valid := make([]domain.AssetSnapshot, 0, len(snapshots))
	for _, s := range snapshots {
		if math.IsNaN(s.PriceChangePct24h) || math.IsInf(s.PriceChangePct24h, 0) {
			continue
		}
		valid = append(valid, s)
	}
	if len(valid) == 0 {
		return SentimentScore{Score: 50, Label: "Neutral"}
	}

	var gainers, losers, strongUp, strongDown, extremeUp, extremeDown int
	for _, s := range valid {
		c := s.PriceChangePct24h
		switch {
		case c > 0:
			gainers++
		case c < 0:
			losers++
		}
		if c > 5 {
			strongUp++
		}
		if c < -5 {
			strongDown++
		}
		if c > 15 {
			extremeUp++
		}
		if c < -15 {
			extremeDown++
		}
	}

	score := 50.0
	score += (float64(gainers)/float64(len(valid)) - 0.5) * 40
	score += float64(strongUp-strongDown) * 3
	score += float64(extremeUp-extremeDown) * 8
	score = math.Max(0, math.Min(100, score))

	return SentimentScore{
		Score:    score,
		Label:    sentimentLabel(score),
		Gainers:  gainers,
		Losers:   losers,
		Assets:   len(valid),
		TopMover: topMovers(valid, 3),
	}
}

func sentimentLabel(score float64) string {
	switch {
	case score >= 75:
		return "Extremely Bullish"
	case score >= 60:
		return "Bullish"
	case score >= 40:
		return "Neutral"
	case score >= 25:
		return "Bearish"
	default:
		return "Extremely Bearish"
	}
}

func topMovers(snapshots []domain.AssetSnapshot, n int) []domain.AssetSnapshot {
	sorted := make([]domain.AssetSnapshot, len(snapshots))
	copy(sorted, snapshots)
	sort.SliceStable(sorted, func(i, j int) bool {
		return math.Abs(sorted[i].PriceChangePct24h) > math.Abs(sorted[j].PriceChangePct24h)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
