package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"memebot/internal/analysis"
	"memebot/internal/domain"
	"memebot/internal/notify"
	"memebot/internal/service"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v3"
)

const (
	defaultMinConfidence = 50
	maxListedSignals     = 10
	statsPositions       = 50
	commandTimeout       = 30 * time.Second
)

// SignalSource exposes the latest cycle and the manual trigger.
type SignalSource interface {
	Latest(ctx context.Context) (*domain.CycleResult, error)
	RunNotify(ctx context.Context, trigger string, force bool) service.NotifyOutcome
}

type PerformanceSource interface {
	Performance(ctx context.Context, limit int) ([]domain.Position, domain.PerformanceStats, error)
}

type Config struct {
	Token  string
	APIURL string
	// Offline skips the getMe handshake; used by tests.
	Offline bool
}

// Bot answers chat commands about the latest signals and past performance.
type Bot struct {
	bot     *tele.Bot
	signals SignalSource
	history PerformanceSource
	logger  zerolog.Logger
}

func New(cfg Config, signals SignalSource, history PerformanceSource, logger zerolog.Logger) (*Bot, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram token is required")
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		URL:     cfg.APIURL,
		Poller:  &tele.LongPoller{Timeout: 10 * time.Second},
		Offline: cfg.Offline,
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	bot := &Bot{
		bot:     b,
		signals: signals,
		history: history,
		logger:  logger.With().Str("component", "telegram-bot").Logger(),
	}
	b.Handle("/ping", bot.handlePing)
	b.Handle("/signals", bot.handleSignals)
	b.Handle("/sentiment", bot.handleSentiment)
	b.Handle("/stats", bot.handleStats)
	b.Handle("/analyze", bot.handleAnalyze)
	return bot, nil
}

// Start polls for updates in the background.
func (b *Bot) Start() {
	b.logger.Info().Msg("telegram bot started")
	go b.bot.Start()
}

func (b *Bot) Stop() {
	b.bot.Stop()
}

func (b *Bot) handlePing(c tele.Context) error {
	return c.Send("pong")
}

func (b *Bot) handleSignals(c tele.Context) error {
	minConfidence := defaultMinConfidence
	if args := c.Args(); len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 || n > 100 {
			return c.Send("Usage: /signals [min confidence 0-100]")
		}
		minConfidence = n
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	latest, err := b.signals.Latest(ctx)
	if err != nil {
		b.logger.Error().Err(err).Msg("load latest cycle")
		return c.Send("Could not load signals, try again shortly.")
	}
	if latest == nil {
		return c.Send("No analysis has run yet.")
	}
	return c.Send(RenderSignals(*latest, minConfidence))
}

func (b *Bot) handleSentiment(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	latest, err := b.signals.Latest(ctx)
	if err != nil || latest == nil {
		return c.Send("No market data yet.")
	}
	return c.Send(RenderSentiment(analysis.Sentiment(latest.Snapshots)))
}

func (b *Bot) handleStats(c tele.Context) error {
	if b.history == nil {
		return c.Send("Performance tracking is disabled (no database configured).")
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	_, stats, err := b.history.Performance(ctx, statsPositions)
	if err != nil {
		b.logger.Error().Err(err).Msg("load performance")
		return c.Send("Could not load performance, try again shortly.")
	}
	return c.Send(RenderStats(stats))
}

func (b *Bot) handleAnalyze(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	outcome := b.signals.RunNotify(ctx, service.TriggerManual, true)
	b.logger.Info().Str("outcome", string(outcome)).Msg("manual analysis from chat")
	switch outcome {
	case service.NotifySent:
		return c.Send("Analysis complete, alert sent.")
	default:
		return c.Send("Analysis ran but the alert could not be sent.")
	}
}

// RenderSignals lists signals above minConfidence, highest first.
func RenderSignals(result domain.CycleResult, minConfidence int) string {
	var picked []domain.Signal
	for _, s := range result.Signals {
		if s.Confidence > minConfidence {
			picked = append(picked, s)
		}
	}
	if len(picked) == 0 {
		return fmt.Sprintf("No signals above %d%% confidence.", minConfidence)
	}
	sort.SliceStable(picked, func(i, j int) bool { return picked[i].Confidence > picked[j].Confidence })

	var b strings.Builder
	fmt.Fprintf(&b, "Signals above %d%% (%d)", minConfidence, len(picked))
	if result.UsedFallback {
		b.WriteString(" [sample data]")
	}
	b.WriteString("\n")
	for i, s := range picked {
		if i == maxListedSignals {
			fmt.Fprintf(&b, "... and %d more\n", len(picked)-maxListedSignals)
			break
		}
		fmt.Fprintf(&b, "%s %s %d%% at $%s - %s\n", strings.ToUpper(string(s.Kind)), s.AssetSymbol, s.Confidence, notify.FormatPrice(s.Price), s.Reason)
	}
	return strings.TrimRight(b.String(), "\n")
}

func RenderSentiment(s analysis.SentimentScore) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Market sentiment: %s (%.0f/100)\n", s.Label, s.Score)
	fmt.Fprintf(&b, "Gainers %d, losers %d of %d", s.Gainers, s.Losers, s.Assets)
	if len(s.TopMover) > 0 {
		b.WriteString("\nTop movers:")
		for _, m := range s.TopMover {
			fmt.Fprintf(&b, "\n%s %+.2f%%", m.DisplaySymbol(), m.PriceChangePct24h)
		}
	}
	return b.String()
}

func RenderStats(s domain.PerformanceStats) string {
	if s.TotalTrades == 0 {
		return "No closed trades yet."
	}
	return fmt.Sprintf(
		"Closed trades: %d\nWin rate: %.1f%%\nTotal P/L: %.6f\nAvg duration: %.0f min\nBest: %+.2f%%\nWorst: %+.2f%%",
		s.TotalTrades, s.WinRate, s.TotalProfit, s.AvgDuration, s.BestTrade, s.WorstTrade,
	)
}
