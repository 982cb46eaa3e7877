package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

type Config struct {
	TelegramBotToken string
	TelegramChatID   int64
	TelegramAPIURL   string
	DatabaseURL      string
	DatabaseMaxConns int32
	RedisURL         string
	HTTPAddr         string
	APIKey           string

	MarketBaseURL  string
	MarketRelayURL string
	MarketRelayKey string
	MarketPerPage  int
	MarketTimeout  time.Duration

	PollInterval       time.Duration
	NotifyInterval     time.Duration
	NotifyCadenceMins  int
	NotifyWindow       time.Duration
	NotifyInitialDelay time.Duration
	NotifyLocation     *time.Location
	DashboardURL       string
	CycleCacheTTL      time.Duration

	LogLevel       string
	LogFormat      string
	TracingEnabled bool
	OTLPEndpoint   string
}

// NotificationsEnabled reports whether alerts can be delivered to a chat.
func (c *Config) NotificationsEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != 0
}

func Load() *Config {
	cfg := &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramAPIURL:   strings.TrimSpace(os.Getenv("TELEGRAM_API_URL")),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		APIKey:           strings.TrimSpace(os.Getenv("API_KEY")),
		MarketRelayURL:   strings.TrimSpace(os.Getenv("MARKET_RELAY_URL")),
		MarketRelayKey:   os.Getenv("MARKET_RELAY_KEY"),
		DashboardURL:     strings.TrimSpace(os.Getenv("DASHBOARD_URL")),
		OTLPEndpoint:     strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
	}

	if cfg.TelegramBotToken == "" {
		log.Println("Warning: TELEGRAM_BOT_TOKEN not set, alerts will only be logged")
	}
	if v := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.TelegramChatID = n
		} else {
			log.Printf("Warning: invalid TELEGRAM_CHAT_ID=%q", v)
		}
	} else if cfg.TelegramBotToken != "" {
		log.Println("Warning: TELEGRAM_CHAT_ID not set, alerts will only be logged")
	}
	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set, signals will not be persisted")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}

	cfg.DatabaseMaxConns = int32(positiveInt("DATABASE_MAX_CONNS", 5))

	cfg.HTTPAddr = strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	cfg.MarketBaseURL = strings.TrimSpace(os.Getenv("MARKET_BASE_URL"))
	if cfg.MarketBaseURL == "" {
		cfg.MarketBaseURL = "https://api.coingecko.com/api/v3"
	}
	cfg.MarketPerPage = positiveInt("MARKET_PER_PAGE", 50)
	cfg.MarketTimeout = time.Duration(positiveInt("MARKET_TIMEOUT_SECS", 10)) * time.Second

	cfg.PollInterval = time.Duration(positiveInt("POLL_SECS", 30)) * time.Second
	cfg.NotifyInterval = time.Duration(positiveInt("NOTIFY_INTERVAL_MINS", 15)) * time.Minute
	cfg.NotifyCadenceMins = positiveInt("NOTIFY_CADENCE_MINS", 15)
	cfg.NotifyWindow = time.Duration(positiveInt("NOTIFY_WINDOW_MINS", 15)) * time.Minute
	cfg.CycleCacheTTL = time.Duration(positiveInt("CYCLE_CACHE_TTL_MINS", 10)) * time.Minute
	for _, w := range scheduleWarnings(cfg) {
		log.Printf("Warning: %s", w)
	}

	cfg.NotifyInitialDelay = 5 * time.Second
	if v := strings.TrimSpace(os.Getenv("NOTIFY_INITIAL_DELAY_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.NotifyInitialDelay = time.Duration(n) * time.Second
		}
	}

	tz := strings.TrimSpace(os.Getenv("NOTIFY_TIMEZONE"))
	if tz == "" {
		tz = "Europe/Madrid"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("Warning: unknown NOTIFY_TIMEZONE=%q, defaulting to UTC", tz)
		loc = time.UTC
	}
	cfg.NotifyLocation = loc

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.LogFormat = strings.ToLower(strings.TrimSpace(os.Getenv("LOG_FORMAT")))
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		log.Printf("Warning: unsupported LOG_FORMAT=%q, defaulting to json", cfg.LogFormat)
		cfg.LogFormat = "json"
	}

	cfg.TracingEnabled = strings.EqualFold(strings.TrimSpace(os.Getenv("TRACING_ENABLED")), "true")

	return cfg
}

func positiveInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		log.Printf("Warning: invalid %s=%q, using %d", key, v, def)
	}
	return def
}

// scheduleWarnings flags notify settings that silently skip sends or drop
// signals between sends.
func scheduleWarnings(cfg *Config) []string {
	var out []string
	intervalMins := int(cfg.NotifyInterval / time.Minute)
	if intervalMins > 0 && cfg.NotifyCadenceMins%intervalMins != 0 {
		out = append(out, fmt.Sprintf(
			"NOTIFY_CADENCE_MINS=%d is not a multiple of NOTIFY_INTERVAL_MINS=%d, some cadence slots are never checked",
			cfg.NotifyCadenceMins, intervalMins))
	}
	windowMins := int(cfg.NotifyWindow / time.Minute)
	if windowMins < cfg.NotifyCadenceMins {
		out = append(out, fmt.Sprintf(
			"NOTIFY_WINDOW_MINS=%d is shorter than NOTIFY_CADENCE_MINS=%d, signals between sends are dropped",
			windowMins, cfg.NotifyCadenceMins))
	}
	return out
}
