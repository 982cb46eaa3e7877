package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"memebot/internal/domain"
	"memebot/internal/service"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// CycleRunner is the pipeline as seen by the scheduler.
type CycleRunner interface {
	RunCycle(ctx context.Context, trigger string) domain.CycleResult
	RunNotify(ctx context.Context, trigger string, force bool) service.NotifyOutcome
}

type Config struct {
	PollInterval   time.Duration
	NotifyInterval time.Duration
	InitialDelay   time.Duration
	Location       *time.Location
}

// Scheduler drives two independent timers: a ticker for analysis polls and a
// cron schedule for the notify path. Neither waits for the other.
type Scheduler struct {
	runner         CycleRunner
	pollInterval   time.Duration
	notifyInterval time.Duration
	initialDelay   time.Duration
	logger         zerolog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

func NewScheduler(cfg Config, runner CycleRunner, logger zerolog.Logger) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.NotifyInterval <= 0 {
		cfg.NotifyInterval = 15 * time.Minute
	}
	if cfg.InitialDelay < 0 {
		cfg.InitialDelay = 0
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	logger = logger.With().Str("component", "scheduler").Logger()
	cronLog := cronLogger{logger: logger}
	return &Scheduler{
		runner:         runner,
		pollInterval:   cfg.PollInterval,
		notifyInterval: cfg.NotifyInterval,
		initialDelay:   cfg.InitialDelay,
		logger:         logger,
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog)),
		),
	}
}

// Start launches both loops and blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info().
		Dur("poll_interval", s.pollInterval).
		Dur("notify_interval", s.notifyInterval).
		Dur("initial_delay", s.initialDelay).
		Msg("scheduler starting")

	go s.pollLoop(ctx, service.TriggerPoll, s.pollInterval, func(ctx context.Context) {
		s.runner.RunCycle(ctx, service.TriggerPoll)
	})
	go s.startNotify(ctx)

	<-ctx.Done()
	s.mu.Lock()
	stopped := s.cron.Stop()
	s.mu.Unlock()
	<-stopped.Done()
	s.logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) pollLoop(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) {
	// Run immediately on start
	fn(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug().Str("loop", name).Msg("loop stopped")
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// startNotify gives the first poll time to load data, runs the notify path
// once, then hands over to the cron schedule.
func (s *Scheduler) startNotify(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(s.initialDelay):
	}

	s.notify(ctx)

	schedule, err := NotifySchedule(s.notifyInterval)
	if err != nil {
		s.logger.Error().Err(err).Msg("invalid notify schedule")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	s.cron.Schedule(schedule, cron.FuncJob(func() { s.notify(ctx) }))
	s.cron.Start()
	s.logger.Info().Time("next", schedule.Next(time.Now())).Msg("notify scheduled")
}

func (s *Scheduler) notify(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	outcome := s.runner.RunNotify(ctx, service.TriggerNotify, false)
	s.logger.Debug().Str("outcome", string(outcome)).Msg("notify run finished")
}

// NotifySchedule aligns intervals that divide an hour to the clock (every 15m
// fires at :00, :15, :30, :45) so runs coincide with the minute gate. Other
// intervals run at a fixed period from start.
func NotifySchedule(interval time.Duration) (cron.Schedule, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("notify interval must be positive, got %s", interval)
	}
	mins := int(interval / time.Minute)
	if interval%time.Minute == 0 && mins > 0 && 60%mins == 0 {
		return cron.ParseStandard(fmt.Sprintf("*/%d * * * *", mins))
	}
	return cron.Every(interval), nil
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
