package notify

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf16"

	"memebot/internal/analysis"
	"memebot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cet = time.FixedZone("CET", 3600)

func testEntries(base time.Time) []Entry {
	pepeChange := 12.45
	wifChange := -9.0
	return []Entry{
		{AssetID: "pepe", AssetSymbol: "PEPE", Kind: domain.SignalBuy, Price: 0.0000123, Confidence: 84, Reason: "strong bullish momentum", ChangePct24h: &pepeChange, EmittedAt: base},
		{AssetID: "dogwifcoin", AssetSymbol: "WIF", Kind: domain.SignalBuy, Price: 2.5, Confidence: 69, Reason: "oversold bounce candidate", ChangePct24h: &wifChange, EmittedAt: base},
		{AssetID: "dogwifcoin", AssetSymbol: "WIF", Kind: domain.SignalSell, Price: 2.4, Confidence: 72, Reason: "decline without volume support", ChangePct24h: &wifChange, EmittedAt: base.Add(30 * time.Second)},
		{AssetID: "pepe", AssetSymbol: "PEPE", Kind: domain.SignalHold, Price: 0.0000125, Confidence: 43, Reason: "consolidation, awaiting breakout", ChangePct24h: &pepeChange, EmittedAt: base.Add(time.Minute)},
	}
}

func TestFormatEmpty(t *testing.T) {
	f := NewFormatter(FormatterConfig{})
	msg := f.Format(nil, time.Now())
	assert.Equal(t, NoSignalsText, msg.Text)
	assert.True(t, msg.Empty())
	assert.NotEmpty(t, msg.Text)
}

func TestFormatGroupsByAsset(t *testing.T) {
	base := time.Date(2025, time.March, 1, 11, 59, 0, 0, time.UTC)
	f := NewFormatter(FormatterConfig{Location: cet, WindowMinutes: 15, NextRunMinutes: 15, DashboardURL: "https://memebot.example/app"})

	msg := f.Format(testEntries(base), time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC))
	require.False(t, msg.Empty())
	assert.Equal(t, 4, msg.Signals)
	assert.Zero(t, msg.OmittedAssets)

	text := msg.Text
	assert.Contains(t, text, `📅 01/03/2025 13:00 CET`)
	assert.Contains(t, text, `📊 *Signals, last 15 min*`)

	// latest PEPE entry supplies price and change; best PEPE entry is the buy
	assert.Contains(t, text, "💎 *PEPE* $0\\.0000125 \\(\\+12\\.45\\%\\)\n🟢 1 BUY \\| 🔴 0 SELL \\| 🟡 1 HOLD\n   ↳ BUY 84\\% strong bullish momentum\n")
	assert.Contains(t, text, "💎 *WIF* $2\\.4000 \\(\\-9\\.00\\%\\)\n🟢 1 BUY \\| 🔴 1 SELL \\| 🟡 0 HOLD\n   ↳ SELL 72\\% decline without volume support\n")
	assert.Less(t, strings.Index(text, "*PEPE*"), strings.Index(text, "*WIF*"), "first-seen order")

	assert.Contains(t, text, "📈 *TOTAL*\n🟢 2 BUY \\| 🔴 1 SELL \\| 🟡 1 HOLD\n")
	assert.Contains(t, text, "🏆 *TOP SIGNAL*\nPEPE BUY 84\\% at $0\\.0000123: strong bullish momentum\n")
	assert.Contains(t, text, "Never risk more than 5\\% per trade")
	assert.Contains(t, text, "🔄 Next analysis in 15 minutes")
	assert.Contains(t, text, "🌐 https://memebot\\.example/app")

	assertEscaped(t, text)
}

func TestFormatTopSignalTieKeepsFirst(t *testing.T) {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	entries := []Entry{
		{AssetID: "bonk", AssetSymbol: "BONK", Kind: domain.SignalSell, Price: 0.00002, Confidence: 90, Reason: "heavy decline with volume", EmittedAt: now},
		{AssetID: "floki", AssetSymbol: "FLOKI", Kind: domain.SignalBuy, Price: 0.0001, Confidence: 90, Reason: "positive move with volume", EmittedAt: now},
	}

	msg := NewFormatter(FormatterConfig{}).Format(entries, now)
	assert.Contains(t, msg.Text, "🏆 *TOP SIGNAL*\nBONK SELL 90\\%")
	assert.Contains(t, msg.Text, "💎 *BONK* $0\\.00002\n", "unknown change is omitted")
	assertEscaped(t, msg.Text)
}

func TestEntriesFromSignalsAndActions(t *testing.T) {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	signals := []domain.Signal{
		{AssetID: "pepe", AssetSymbol: "PEPE", Kind: domain.SignalBuy, Price: 1, Confidence: 60, Reason: "r", EmittedAt: now},
		{AssetID: "ghost", AssetSymbol: "GHO", Kind: domain.SignalHold, Price: 2, Confidence: 50, Reason: "r", EmittedAt: now},
	}
	snaps := map[string]domain.AssetSnapshot{"pepe": {ID: "pepe", PriceChangePct24h: 4.2}}

	entries := EntriesFromSignals(signals, snaps)
	require.Len(t, entries, 2)
	require.NotNil(t, entries[0].ChangePct24h)
	assert.Equal(t, 4.2, *entries[0].ChangePct24h)
	assert.Nil(t, entries[1].ChangePct24h)

	actions := []domain.PersistedAction{{AssetID: "wif", AssetSymbol: "WIF", Kind: domain.SignalSell, Price: 3, Confidence: 70, Reason: "r", PriceChangePct24h: -4, EmittedAt: now}}
	fromActions := EntriesFromActions(actions)
	require.Len(t, fromActions, 1)
	assert.Equal(t, domain.SignalSell, fromActions[0].Kind)
	assert.Equal(t, -4.0, *fromActions[0].ChangePct24h)
}

func TestFormatWholeWatchListFitsTelegramLimit(t *testing.T) {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	changes := []float64{5.3, -7.2, 1.4, 12.8, -4.1, 0.6}

	var signals []domain.Signal
	snaps := make(map[string]domain.AssetSnapshot, len(domain.WatchedAssetIDs))
	for i, id := range domain.WatchedAssetIDs {
		snap := domain.AssetSnapshot{
			ID:                id,
			Symbol:            strings.ToUpper(fmt.Sprintf("%.6s", id)),
			Name:              id,
			CurrentPrice:      0.0000123 * float64(i+1),
			PriceChangePct24h: changes[i%len(changes)],
			MarketCap:         1_000_000_000,
			Volume24h:         50_000_000,
		}
		snaps[id] = snap
		signals = append(signals, analysis.Classify(snap, now)...)
	}
	require.GreaterOrEqual(t, len(signals), len(domain.WatchedAssetIDs))

	f := NewFormatter(FormatterConfig{Location: cet, WindowMinutes: 15, NextRunMinutes: 15, DashboardURL: "https://memebot.example/app"})
	msg := f.Format(EntriesFromSignals(signals, snaps), now)

	units := len(utf16.Encode([]rune(msg.Text)))
	assert.LessOrEqual(t, units, 4096)
	assert.LessOrEqual(t, units, MaxMessageUnits)
	assert.Equal(t, len(signals), msg.Signals)
	require.Positive(t, msg.OmittedAssets)
	assert.Contains(t, msg.Text, fmt.Sprintf("…and %d more assets", msg.OmittedAssets))
	assert.Contains(t, msg.Text, "📈 *TOTAL*")
	assert.Contains(t, msg.Text, "🏆 *TOP SIGNAL*")
	assert.Contains(t, msg.Text, "🔄 Next analysis in 15 minutes")
	assert.Equal(t, len(domain.WatchedAssetIDs)-msg.OmittedAssets, strings.Count(msg.Text, "💎 *"))
	assertEscaped(t, msg.Text)
}

func TestFormatOverflowKeepsHighestConfidence(t *testing.T) {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	long := strings.Repeat("momentum ", 40)

	var entries []Entry
	for i := 0; i < 20; i++ {
		entries = append(entries, Entry{
			AssetID:     fmt.Sprintf("coin-%02d", i),
			AssetSymbol: fmt.Sprintf("C%02d", i),
			Kind:        domain.SignalHold,
			Price:       1,
			Confidence:  40 + i,
			Reason:      long,
			EmittedAt:   now,
		})
	}

	msg := NewFormatter(FormatterConfig{}).Format(entries, now)
	require.Positive(t, msg.OmittedAssets)
	assert.Contains(t, msg.Text, "💎 *C19*", "highest confidence is always listed")
	assert.NotContains(t, msg.Text, "💎 *C00*", "lowest confidence is dropped first")
	assert.Less(t, strings.Index(msg.Text, "*C19*"), strings.Index(msg.Text, "*C18*"), "ranked by confidence")
	assert.Contains(t, msg.Text, "📈 *TOTAL*\n🟢 0 BUY \\| 🔴 0 SELL \\| 🟡 20 HOLD\n")
	assert.LessOrEqual(t, len(utf16.Encode([]rune(msg.Text))), MaxMessageUnits)
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "0.1234", FormatPrice(0.12341))
	assert.Equal(t, "64000.0000", FormatPrice(64000))
	assert.Equal(t, "0.0000123", FormatPrice(0.0000123))
	assert.Equal(t, "0.0000000012", FormatPrice(0.0000000012))
	assert.Equal(t, "0", FormatPrice(0))
}

// assertEscaped fails when a reserved character other than the bold marker
// appears without a preceding backslash.
func assertEscaped(t *testing.T, text string) {
	t.Helper()
	runes := []rune(text)
	for i, r := range runes {
		if r == '*' || r == '\\' || !strings.ContainsRune(markdownV2Reserved, r) {
			continue
		}
		if i == 0 || runes[i-1] != '\\' {
			t.Fatalf("unescaped %q at rune %d in %q", r, i, text)
		}
	}
}
