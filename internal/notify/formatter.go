package notify

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"memebot/internal/domain"
)

// NoSignalsText is sent when a window holds no signals at all.
const NoSignalsText = "🤖 *MEMEBOT TRADING ALERT*\n\n📭 No significant signals right now\\. Next check in a few minutes\\."

// MaxMessageUnits bounds a rendered alert in UTF-16 code units of the escaped
// text. Telegram rejects sendMessage bodies over 4096 characters.
const MaxMessageUnits = 3800

// Entry is the formatter's view of one signal, built either from a freshly
// computed Signal or from a persisted action.
type Entry struct {
	AssetID     string
	AssetSymbol string
	Kind        domain.SignalKind
	Price       float64
	Confidence  int
	Reason      string
	// ChangePct24h is nil when the 24h change is unknown.
	ChangePct24h *float64
	EmittedAt    time.Time
}

// EntriesFromSignals converts an in-memory batch. snapshots is keyed by asset
// id and supplies the 24h change when present.
func EntriesFromSignals(signals []domain.Signal, snapshots map[string]domain.AssetSnapshot) []Entry {
	out := make([]Entry, 0, len(signals))
	for _, s := range signals {
		e := Entry{
			AssetID:     s.AssetID,
			AssetSymbol: s.AssetSymbol,
			Kind:        s.Kind,
			Price:       s.Price,
			Confidence:  s.Confidence,
			Reason:      s.Reason,
			EmittedAt:   s.EmittedAt,
		}
		if snap, ok := snapshots[s.AssetID]; ok {
			change := snap.PriceChangePct24h
			e.ChangePct24h = &change
		}
		out = append(out, e)
	}
	return out
}

// EntriesFromActions converts persisted actions read back from the store.
func EntriesFromActions(actions []domain.PersistedAction) []Entry {
	out := make([]Entry, 0, len(actions))
	for _, a := range actions {
		change := a.PriceChangePct24h
		out = append(out, Entry{
			AssetID:      a.AssetID,
			AssetSymbol:  a.AssetSymbol,
			Kind:         a.Kind,
			Price:        a.Price,
			Confidence:   a.Confidence,
			Reason:       a.Reason,
			ChangePct24h: &change,
			EmittedAt:    a.EmittedAt,
		})
	}
	return out
}

// Message is a rendered MarkdownV2 notification.
type Message struct {
	Text    string
	Signals int
	// OmittedAssets counts asset blocks dropped to stay within MaxMessageUnits.
	OmittedAssets int
}

// Empty reports whether the message is the no-signals text.
func (m Message) Empty() bool {
	return m.Signals == 0
}

type FormatterConfig struct {
	Location       *time.Location
	WindowMinutes  int
	NextRunMinutes int
	DashboardURL   string
}

// Formatter renders signal windows as Telegram MarkdownV2.
type Formatter struct {
	loc          *time.Location
	window       int
	nextRun      int
	dashboardURL string
}

func NewFormatter(cfg FormatterConfig) *Formatter {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.WindowMinutes <= 0 {
		cfg.WindowMinutes = 15
	}
	if cfg.NextRunMinutes <= 0 {
		cfg.NextRunMinutes = cfg.WindowMinutes
	}
	return &Formatter{
		loc:          cfg.Location,
		window:       cfg.WindowMinutes,
		nextRun:      cfg.NextRunMinutes,
		dashboardURL: cfg.DashboardURL,
	}
}

type kindCounts struct {
	buy, sell, hold int
}

func (c *kindCounts) add(k domain.SignalKind) {
	switch k {
	case domain.SignalBuy:
		c.buy++
	case domain.SignalSell:
		c.sell++
	case domain.SignalHold:
		c.hold++
	}
}

func (c kindCounts) String() string {
	return fmt.Sprintf("🟢 %d BUY | 🔴 %d SELL | 🟡 %d HOLD", c.buy, c.sell, c.hold)
}

type assetGroup struct {
	symbol string
	counts kindCounts
	latest Entry
	best   Entry
}

// Format groups entries by asset in first-seen order. The highest-confidence
// entry of the batch is highlighted separately; ties keep the earliest.
// When the asset blocks do not fit MaxMessageUnits, they are ranked by best
// confidence and the remainder is summarized in a single line.
func (f *Formatter) Format(entries []Entry, now time.Time) Message {
	if len(entries) == 0 {
		return Message{Text: NoSignalsText}
	}

	groups := make(map[string]*assetGroup)
	var order []string
	var total kindCounts
	top := entries[0]

	for _, e := range entries {
		g, ok := groups[e.AssetID]
		if !ok {
			g = &assetGroup{symbol: e.AssetSymbol, latest: e, best: e}
			groups[e.AssetID] = g
			order = append(order, e.AssetID)
		} else {
			if !e.EmittedAt.Before(g.latest.EmittedAt) {
				g.latest = e
			}
			if e.Confidence > g.best.Confidence {
				g.best = e
			}
		}
		g.counts.add(e.Kind)
		total.add(e.Kind)
		if e.Confidence > top.Confidence {
			top = e
		}
	}

	var head strings.Builder
	head.WriteString("🤖 *MEMEBOT TRADING ALERT* 🤖\n")
	head.WriteString("📅 " + EscapeMarkdownV2(now.In(f.loc).Format("02/01/2006 15:04 MST")) + "\n")
	head.WriteString("📊 *" + EscapeMarkdownV2(fmt.Sprintf("Signals, last %d min", f.window)) + "*\n")

	var tail strings.Builder
	tail.WriteString("\n📈 *TOTAL*\n")
	tail.WriteString(EscapeMarkdownV2(total.String()) + "\n")

	tail.WriteString("\n🏆 *TOP SIGNAL*\n")
	tail.WriteString(EscapeMarkdownV2(fmt.Sprintf("%s %s %d%% at $%s: %s",
		top.AssetSymbol, kindLabel(top.Kind), top.Confidence, FormatPrice(top.Price), top.Reason)) + "\n")

	tail.WriteString("\n⚠️ *REMINDER*\n")
	tail.WriteString(EscapeMarkdownV2("• Always use a stop-loss\n• Never risk more than 5% per trade\n• DYOR, technical analysis only") + "\n")

	tail.WriteString("\n🔄 " + EscapeMarkdownV2(fmt.Sprintf("Next analysis in %d minutes", f.nextRun)))
	if f.dashboardURL != "" {
		tail.WriteString("\n🌐 " + EscapeMarkdownV2(f.dashboardURL))
	}

	blocks := make(map[string]string, len(order))
	used := textUnits(head.String()) + textUnits(tail.String())
	for _, id := range order {
		blocks[id] = groups[id].block()
		used += textUnits(blocks[id])
	}

	kept, omitted := order, 0
	if used > MaxMessageUnits {
		kept, omitted = fitBlocks(order, groups, blocks, textUnits(head.String())+textUnits(tail.String()))
	}

	var b strings.Builder
	b.WriteString(head.String())
	for _, id := range kept {
		b.WriteString(blocks[id])
	}
	if omitted > 0 {
		b.WriteString(omittedLine(omitted))
	}
	b.WriteString(tail.String())

	return Message{Text: b.String(), Signals: len(entries), OmittedAssets: omitted}
}

// fitBlocks ranks asset ids by best confidence, ties in first-seen order, and keeps
// blocks while they fit next to the fixed sections and the omitted line.
func fitBlocks(order []string, groups map[string]*assetGroup, blocks map[string]string, fixed int) ([]string, int) {
	ranked := make([]string, len(order))
	copy(ranked, order)
	sort.SliceStable(ranked, func(i, j int) bool {
		return groups[ranked[i]].best.Confidence > groups[ranked[j]].best.Confidence
	})

	reserve := textUnits(omittedLine(len(order)))
	used := fixed + reserve
	kept := make([]string, 0, len(ranked))
	for _, id := range ranked {
		n := textUnits(blocks[id])
		if used+n > MaxMessageUnits {
			break
		}
		used += n
		kept = append(kept, id)
	}
	return kept, len(order) - len(kept)
}

func (g *assetGroup) block() string {
	var b strings.Builder
	b.WriteString("\n💎 *" + EscapeMarkdownV2(g.symbol) + "* ")
	b.WriteString(EscapeMarkdownV2(priceWithChange(g.latest)) + "\n")
	b.WriteString(EscapeMarkdownV2(g.counts.String()) + "\n")
	b.WriteString("   ↳ " + EscapeMarkdownV2(fmt.Sprintf("%s %d%% %s", kindLabel(g.best.Kind), g.best.Confidence, g.best.Reason)) + "\n")
	return b.String()
}

func omittedLine(n int) string {
	return "\n" + EscapeMarkdownV2(fmt.Sprintf("…and %d more assets", n)) + "\n"
}

// textUnits counts UTF-16 code units, the unit Telegram measures length in.
func textUnits(s string) int {
	return len(utf16.Encode([]rune(s)))
}

func kindLabel(k domain.SignalKind) string {
	return strings.ToUpper(string(k))
}

func priceWithChange(e Entry) string {
	s := "$" + FormatPrice(e.Price)
	if e.ChangePct24h != nil {
		s += fmt.Sprintf(" (%+.2f%%)", *e.ChangePct24h)
	}
	return s
}

// FormatPrice keeps sub-cent prices readable without scientific notation.
func FormatPrice(p float64) string {
	if p >= 0.01 || p <= -0.01 {
		return strconv.FormatFloat(p, 'f', 4, 64)
	}
	s := strconv.FormatFloat(p, 'f', 10, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}
