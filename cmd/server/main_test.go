package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"memebot/internal/bot"
	"memebot/internal/config"
	"memebot/internal/domain"
	"memebot/internal/job"
	"memebot/internal/notify"
	"memebot/internal/provider"
	"memebot/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestMainBootstrap(t *testing.T) {
	gin.SetMode(gin.TestMode)
	restore := stubServerDeps(&config.Config{})
	defer restore()

	runMainWithTimeout(t)
}

func TestMainContinuesWithoutPostgres(t *testing.T) {
	gin.SetMode(gin.TestMode)
	restore := stubServerDeps(&config.Config{DatabaseURL: "postgres://unreachable"})
	defer restore()

	called := false
	initPostgresFunc = func(context.Context, string, int32) (*pgxpool.Pool, error) {
		called = true
		return nil, errors.New("connection refused")
	}
	runMigrationsFunc = func(context.Context, *pgxpool.Pool, trace.Tracer) error {
		t.Fatal("migrations must not run without a pool")
		return nil
	}

	runMainWithTimeout(t)
	if !called {
		t.Fatal("expected postgres init to be attempted")
	}
}

func TestMainServesSwagger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	restore := stubServerDeps(&config.Config{})
	defer restore()

	handlers := make(chan http.Handler, 1)
	startHTTPServerFunc = func(srv *http.Server) error {
		handlers <- srv.Handler
		return http.ErrServerClosed
	}

	runMainWithTimeout(t)

	var h http.Handler
	select {
	case h = <-handlers:
	case <-time.After(time.Second):
		t.Fatal("http server was not started")
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for swagger doc, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"/api/signals"`) {
		t.Fatalf("swagger doc missing signals route: %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for swagger ui, got %d", w.Code)
	}
}

func TestNewSenderFallsBackToLog(t *testing.T) {
	s := newSender(&config.Config{TelegramBotToken: "token"}, zerolog.Nop())
	if _, ok := s.(notify.LogSender); !ok {
		t.Fatalf("expected LogSender without chat id, got %T", s)
	}

	s = newSender(&config.Config{TelegramBotToken: "token", TelegramChatID: 42}, zerolog.Nop())
	if _, ok := s.(*notify.TelegramSender); !ok {
		t.Fatalf("expected TelegramSender, got %T", s)
	}
}

func runMainWithTimeout(t *testing.T) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		main()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("main did not exit")
	}
}

func stubServerDeps(cfg *config.Config) func() {
	origLoadEnv := loadEnvFunc
	origLoadConfig := loadConfigFunc
	origNewLogger := newLoggerFunc
	origInitPostgres := initPostgresFunc
	origRunMigrations := runMigrationsFunc
	origInitRedis := initRedisFunc
	origInitTracer := initTracerFunc
	origNewFetcher := newFetcherFunc
	origStartScheduler := startSchedulerFunc
	origStartTelegram := startTelegramBotFunc
	origNewRouter := newRouterFunc
	origSetupSignal := setupSignalNotify
	origWait := waitForSignalFunc
	origStartHTTP := startHTTPServerFunc
	origShutdownHTTP := shutdownHTTPServerFunc

	loadEnvFunc = func(...string) error { return nil }
	loadConfigFunc = func() *config.Config { return cfg }
	newLoggerFunc = func(string, string) (zerolog.Logger, error) { return zerolog.Nop(), nil }
	initPostgresFunc = func(context.Context, string, int32) (*pgxpool.Pool, error) {
		return nil, errors.New("not configured")
	}
	runMigrationsFunc = func(context.Context, *pgxpool.Pool, trace.Tracer) error { return nil }
	initRedisFunc = func(context.Context, string) (*redis.Client, error) {
		return nil, errors.New("redis unavailable")
	}
	initTracerFunc = func(context.Context, bool, string) (*sdktrace.TracerProvider, trace.Tracer, error) {
		tp := sdktrace.NewTracerProvider()
		return tp, tp.Tracer("test"), nil
	}
	newFetcherFunc = func(provider.Config, trace.Tracer, zerolog.Logger) service.SnapshotFetcher {
		return stubFetcher{}
	}
	startSchedulerFunc = func(*job.Scheduler, context.Context) {}
	startTelegramBotFunc = func(*bot.Bot) {}
	newRouterFunc = func(...gin.OptionFunc) *gin.Engine { return gin.New() }
	setupSignalNotify = func(c chan<- os.Signal, sig ...os.Signal) {}
	waitForSignalFunc = func(<-chan os.Signal) {}
	startHTTPServerFunc = func(*http.Server) error { return http.ErrServerClosed }
	shutdownHTTPServerFunc = func(*http.Server, context.Context) error { return nil }

	return func() {
		loadEnvFunc = origLoadEnv
		loadConfigFunc = origLoadConfig
		newLoggerFunc = origNewLogger
		initPostgresFunc = origInitPostgres
		runMigrationsFunc = origRunMigrations
		initRedisFunc = origInitRedis
		initTracerFunc = origInitTracer
		newFetcherFunc = origNewFetcher
		startSchedulerFunc = origStartScheduler
		startTelegramBotFunc = origStartTelegram
		newRouterFunc = origNewRouter
		setupSignalNotify = origSetupSignal
		waitForSignalFunc = origWait
		startHTTPServerFunc = origStartHTTP
		shutdownHTTPServerFunc = origShutdownHTTP
	}
}

type stubFetcher struct{}

func (stubFetcher) FetchSnapshots(context.Context) ([]domain.AssetSnapshot, error) {
	return provider.FallbackSnapshots(), nil
}
