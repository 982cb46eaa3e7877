package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v3"
)

// Sender delivers a rendered message to the notification transport.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// DispatchError is returned when the transport rejects or never receives a
// message. Description carries the provider's own explanation when available.
type DispatchError struct {
	Description string
	Err         error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("notification dispatch failed: %s", e.Description)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

type TelegramConfig struct {
	Token  string
	ChatID int64
	// APIURL overrides the Bot API endpoint, mostly for tests.
	APIURL string
	Client *http.Client
}

// TelegramSender posts MarkdownV2 messages to one chat through the Bot API.
// The bot is created offline so construction never touches the network.
type TelegramSender struct {
	bot    *tele.Bot
	chat   tele.ChatID
	logger zerolog.Logger
}

func NewTelegramSender(cfg TelegramConfig, logger zerolog.Logger) (*TelegramSender, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram token is required")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat id is required")
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 15 * time.Second}
	}

	bot, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		URL:     cfg.APIURL,
		Client:  cfg.Client,
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &TelegramSender{
		bot:    bot,
		chat:   tele.ChatID(cfg.ChatID),
		logger: logger.With().Str("component", "telegram-sender").Logger(),
	}, nil
}

// Send succeeds only when the Bot API answers with ok=true.
func (s *TelegramSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return &DispatchError{Description: err.Error(), Err: err}
	}

	sent, err := s.bot.Send(s.chat, msg.Text, &tele.SendOptions{
		ParseMode:             tele.ModeMarkdownV2,
		DisableWebPagePreview: true,
	})
	if err != nil {
		de := &DispatchError{Description: err.Error(), Err: err}
		var apiErr *tele.Error
		if errors.As(err, &apiErr) {
			de.Description = apiErr.Description
		}
		s.logger.Error().Err(err).Str("description", de.Description).Msg("telegram rejected message")
		return de
	}

	ev := s.logger.Info().Int("signals", msg.Signals)
	if sent != nil {
		ev = ev.Int("message_id", sent.ID)
	}
	ev.Msg("notification sent")
	return nil
}

// LogSender is used when no chat transport is configured; it only logs.
type LogSender struct {
	Logger zerolog.Logger
}

func (s LogSender) Send(_ context.Context, msg Message) error {
	s.Logger.Info().Int("signals", msg.Signals).Str("text", msg.Text).Msg("notification (no transport configured)")
	return nil
}
