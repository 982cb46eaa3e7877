package provider

import "memebot/internal/domain"

// FallbackSnapshots returns the static sample set used when the market feed is
// unavailable. A fresh slice is returned on every call.
func FallbackSnapshots() []domain.AssetSnapshot {
	return []domain.AssetSnapshot{
		{ID: "dogecoin", Symbol: "doge", Name: "Dogecoin", CurrentPrice: 0.08234, PriceChangePct24h: 5.87, MarketCap: 11234567890, Volume24h: 1456789012, ATHChangePct: -88.7},
		{ID: "shiba-inu", Symbol: "shib", Name: "Shiba Inu", CurrentPrice: 0.000008234, PriceChangePct24h: -5.25, MarketCap: 4567890123, Volume24h: 523456789, ATHChangePct: -90.6},
		{ID: "pepe", Symbol: "pepe", Name: "Pepe", CurrentPrice: 0.000001234, PriceChangePct24h: 12.45, MarketCap: 2345678901, Volume24h: 834567890, ATHChangePct: -71.6},
		{ID: "dogwifcoin", Symbol: "wif", Name: "dogwifhat", CurrentPrice: 2.34, PriceChangePct24h: 10.87, MarketCap: 1234567890, Volume24h: 445678901, ATHChangePct: -51.6},
		{ID: "bonk", Symbol: "bonk", Name: "Bonk", CurrentPrice: 0.00001234, PriceChangePct24h: -8.76, MarketCap: 987654321, Volume24h: 223456789, ATHChangePct: -63.9},
		{ID: "floki", Symbol: "floki", Name: "FLOKI", CurrentPrice: 0.00012345, PriceChangePct24h: 15.67, MarketCap: 1876543210, Volume24h: 334567890, ATHChangePct: -63.8},
		{ID: "brett-based", Symbol: "brett", Name: "Brett (Based)", CurrentPrice: 0.087654, PriceChangePct24h: 16.42, MarketCap: 876543210, Volume24h: 187654321, ATHChangePct: -55.9},
		{ID: "popcat", Symbol: "popcat", Name: "Popcat (SOL)", CurrentPrice: 0.54321, PriceChangePct24h: -9.12, MarketCap: 543210987, Volume24h: 154321098, ATHChangePct: -56.0},
		{ID: "mog-coin", Symbol: "mog", Name: "Mog Coin", CurrentPrice: 0.00000123, PriceChangePct24h: 10.81, MarketCap: 321098765, Volume24h: 98765432, ATHChangePct: -73.0},
		{ID: "book-of-meme", Symbol: "bome", Name: "BOOK OF MEME", CurrentPrice: 0.009876, PriceChangePct24h: 14.29, MarketCap: 987654321, Volume24h: 298765432, ATHChangePct: -65.7},
	}
}
