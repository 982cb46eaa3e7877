package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"memebot/internal/analysis"
	"memebot/internal/bot"
	"memebot/internal/cache"
	"memebot/internal/config"
	"memebot/internal/db"
	"memebot/internal/handler"
	"memebot/internal/job"
	"memebot/internal/logging"
	"memebot/internal/metrics"
	"memebot/internal/notify"
	"memebot/internal/provider"
	"memebot/internal/repository"
	"memebot/internal/service"
	"memebot/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	_ "memebot/docs"
)

var (
	loadEnvFunc       = godotenv.Load
	loadConfigFunc    = config.Load
	newLoggerFunc     = logging.New
	initPostgresFunc  = db.InitPostgres
	runMigrationsFunc = func(ctx context.Context, pool *pgxpool.Pool, tracer trace.Tracer) error {
		return repository.RunMigrations(ctx, pool, tracer)
	}
	initRedisFunc   = cache.InitRedis
	initTracerFunc  = tracing.InitTracer
	newRegistryFunc = func() *prometheus.Registry {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		return reg
	}
	newFetcherFunc = func(cfg provider.Config, tracer trace.Tracer, logger zerolog.Logger) service.SnapshotFetcher {
		return provider.NewCoinGeckoProvider(cfg, tracer, logger)
	}
	newSenderFunc          = newSender
	newBotFunc             = bot.New
	startSchedulerFunc     = func(s *job.Scheduler, ctx context.Context) { go s.Start(ctx) }
	startTelegramBotFunc   = func(b *bot.Bot) { b.Start() }
	newRouterFunc          = gin.New
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           Memebot API
// @version         1.0
// @description     Memecoin signal pipeline: market snapshots, signals, history and performance.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey  ApiKeyAuth
// @in                          header
// @name                        X-API-Key
func main() {
	_ = loadEnvFunc()

	cfg := loadConfigFunc()

	logger, err := newLoggerFunc(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init tracing
	tp, tracer, err := initTracerFunc(ctx, cfg.TracingEnabled, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("error shutting down tracer provider")
		}
	}()

	reg := newRegistryFunc()
	m := metrics.New(reg)

	// Postgres is optional; without it signals are neither stored nor windowed.
	var sink service.Persister
	var history *service.HistoryService
	if cfg.DatabaseURL != "" {
		pool, err := initPostgresFunc(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
		if err != nil {
			logger.Warn().Err(err).Msg("postgres unavailable, running without persistence")
		} else {
			defer pool.Close()
			if err := runMigrationsFunc(ctx, pool, tracer); err != nil {
				log.Fatalf("failed to run migrations: %v", err)
			}
			actions := repository.NewActionRepository(pool, tracer)
			positions := repository.NewPositionRepository(pool, tracer)
			sink = service.NewSignalSink(actions, positions, tracer, logger)
			history = service.NewHistoryService(tracer, actions, positions)
		}
	}

	// Redis is optional; it only mirrors the latest cycle.
	var cycleCache service.CycleStore
	rdb, err := initRedisFunc(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, latest cycle kept in memory only")
	} else {
		defer func(c *redis.Client) { _ = c.Close() }(rdb)
		cycleCache = cache.NewCycleCache(rdb, cfg.CycleCacheTTL, tracer)
	}

	fetcher := newFetcherFunc(provider.Config{
		BaseURL:  cfg.MarketBaseURL,
		RelayURL: cfg.MarketRelayURL,
		RelayKey: cfg.MarketRelayKey,
		PerPage:  cfg.MarketPerPage,
		Timeout:  cfg.MarketTimeout,
	}, tracer, logger)

	pipeline := service.NewPipeline(service.PipelineDeps{
		Fetcher:    fetcher,
		Aggregator: analysis.NewAggregator(tracer, logger),
		Sink:       sink,
		Cache:      cycleCache,
		Gate:       notify.NewGate(cfg.NotifyCadenceMins, logger),
		Formatter: notify.NewFormatter(notify.FormatterConfig{
			Location:       cfg.NotifyLocation,
			WindowMinutes:  int(cfg.NotifyWindow / time.Minute),
			NextRunMinutes: int(cfg.NotifyInterval / time.Minute),
			DashboardURL:   cfg.DashboardURL,
		}),
		Sender:       newSenderFunc(cfg, logger),
		Metrics:      m,
		Tracer:       tracer,
		Logger:       logger,
		NotifyWindow: cfg.NotifyWindow,
	})

	scheduler := job.NewScheduler(job.Config{
		PollInterval:   cfg.PollInterval,
		NotifyInterval: cfg.NotifyInterval,
		InitialDelay:   cfg.NotifyInitialDelay,
		Location:       cfg.NotifyLocation,
	}, pipeline, logger)
	startSchedulerFunc(scheduler, ctx)

	// Start Telegram command bot
	if cfg.TelegramBotToken != "" {
		var perf bot.PerformanceSource
		if history != nil {
			perf = history
		}
		b, err := newBotFunc(bot.Config{Token: cfg.TelegramBotToken, APIURL: cfg.TelegramAPIURL}, pipeline, perf, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram bot disabled")
		} else {
			startTelegramBotFunc(b)
			defer b.Stop()
		}
	}

	// Create handlers and routes
	h := handler.New(tracer, pipeline, m)
	if history != nil {
		h.SetHistorySource(history)
	}

	r := newRouterFunc()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("memebot"))
	h.RegisterRoutes(r, cfg.APIKey, reg)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	logger.Info().Msg("shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server exiting")
}

// newSender picks the Telegram transport when a token and chat are configured
// and falls back to logging the rendered alert.
func newSender(cfg *config.Config, logger zerolog.Logger) notify.Sender {
	if !cfg.NotificationsEnabled() {
		return notify.LogSender{Logger: logger.With().Str("component", "notifier").Logger()}
	}
	sender, err := notify.NewTelegramSender(notify.TelegramConfig{
		Token:  cfg.TelegramBotToken,
		ChatID: cfg.TelegramChatID,
		APIURL: cfg.TelegramAPIURL,
	}, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram sender disabled, alerts will be logged")
		return notify.LogSender{Logger: logger.With().Str("component", "notifier").Logger()}
	}
	return sender
}
