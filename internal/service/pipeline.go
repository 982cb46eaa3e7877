package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"memebot/internal/analysis"
	"memebot/internal/domain"
	"memebot/internal/metrics"
	"memebot/internal/notify"
	"memebot/internal/provider"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Stage is one state of the per-cycle state machine.
type Stage string

const (
	StageIdle        Stage = "idle"
	StageFetching    Stage = "fetching"
	StageClassifying Stage = "classifying"
	StagePersisting  Stage = "persisting"
	StageGateCheck   Stage = "gate-check"
	StageNotifying   Stage = "notifying"
	StageSkipped     Stage = "skipped"
)

type NotifyOutcome string

const (
	NotifySent    NotifyOutcome = "sent"
	NotifySkipped NotifyOutcome = "skipped"
	NotifyFailed  NotifyOutcome = "failed"
)

const (
	TriggerPoll   = "poll"
	TriggerNotify = "notify"
	TriggerManual = "manual"

	defaultNotifyWindow = 15 * time.Minute
)

type SnapshotFetcher interface {
	FetchSnapshots(ctx context.Context) ([]domain.AssetSnapshot, error)
}

type Persister interface {
	Persist(ctx context.Context, signals []domain.Signal, snapshots map[string]domain.AssetSnapshot) error
	Window(ctx context.Context, now time.Time, d time.Duration) ([]domain.PersistedAction, error)
}

type CycleStore interface {
	Store(ctx context.Context, result domain.CycleResult) error
	Latest(ctx context.Context) (*domain.CycleResult, error)
}

// PipelineDeps wires a Pipeline. Sink and Cache are optional.
type PipelineDeps struct {
	Fetcher      SnapshotFetcher
	Aggregator   *analysis.Aggregator
	Sink         Persister
	Cache        CycleStore
	Gate         *notify.Gate
	Formatter    *notify.Formatter
	Sender       notify.Sender
	Metrics      *metrics.Metrics
	Tracer       trace.Tracer
	Logger       zerolog.Logger
	NotifyWindow time.Duration
}

// Pipeline runs Fetch, Classify and Persist, and on the notify path the gate,
// formatter and dispatch. No step lets an error or panic escape.
type Pipeline struct {
	fetcher    SnapshotFetcher
	aggregator *analysis.Aggregator
	sink       Persister
	cache      CycleStore
	gate       *notify.Gate
	formatter  *notify.Formatter
	sender     notify.Sender
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	logger     zerolog.Logger
	window     time.Duration
	now        func() time.Time

	mu     sync.RWMutex
	latest *domain.CycleResult
}

func NewPipeline(deps PipelineDeps) *Pipeline {
	if deps.NotifyWindow <= 0 {
		deps.NotifyWindow = defaultNotifyWindow
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New(nil)
	}
	return &Pipeline{
		fetcher:    deps.Fetcher,
		aggregator: deps.Aggregator,
		sink:       deps.Sink,
		cache:      deps.Cache,
		gate:       deps.Gate,
		formatter:  deps.Formatter,
		sender:     deps.Sender,
		metrics:    deps.Metrics,
		tracer:     deps.Tracer,
		logger:     deps.Logger.With().Str("component", "pipeline").Logger(),
		window:     deps.NotifyWindow,
		now:        time.Now,
	}
}

type cycle struct {
	id     string
	logger zerolog.Logger
	stage  Stage
}

func (c *cycle) enter(s Stage) {
	c.logger.Debug().Str("from", string(c.stage)).Str("to", string(s)).Msg("stage")
	c.stage = s
}

func (p *Pipeline) newCycle(trigger string) *cycle {
	id := uuid.NewString()
	p.metrics.Cycles.WithLabelValues(trigger).Inc()
	return &cycle{
		id:     id,
		logger: p.logger.With().Str("cycle", id).Str("trigger", trigger).Logger(),
		stage:  StageIdle,
	}
}

// RunCycle fetches, classifies and persists once. Fetch failures are replaced
// with the static sample set and persistence failures are only logged.
func (p *Pipeline) RunCycle(ctx context.Context, trigger string) (result domain.CycleResult) {
	c := p.newCycle(trigger)
	defer p.recoverCycle(c, nil)

	result, _ = p.analyze(ctx, c, p.now())
	c.enter(StageIdle)
	return result
}

// RunNotify runs a full cycle and then, if the gate is open for the trigger
// time or force is set, sends the trailing window as one message.
func (p *Pipeline) RunNotify(ctx context.Context, trigger string, force bool) (outcome NotifyOutcome) {
	at := p.now()
	c := p.newCycle(trigger)
	defer p.recoverCycle(c, &outcome)

	ctx, span := p.tracer.Start(ctx, "pipeline.notify")
	defer span.End()

	result, ok := p.analyze(ctx, c, at)
	if !ok {
		c.enter(StageIdle)
		return NotifyFailed
	}

	c.enter(StageGateCheck)
	if !force && (p.gate == nil || !p.gate.ShouldNotify(at)) {
		c.enter(StageSkipped)
		p.metrics.Notifications.WithLabelValues(string(NotifySkipped)).Inc()
		c.logger.Info().Time("at", at).Msg("notification skipped by gate")
		c.enter(StageIdle)
		return NotifySkipped
	}

	c.enter(StageNotifying)
	entries := p.windowEntries(ctx, c, result, at)
	msg := p.formatter.Format(entries, at)
	span.SetAttributes(attribute.Int("signals", msg.Signals), attribute.Int("omitted_assets", msg.OmittedAssets))
	if msg.OmittedAssets > 0 {
		c.logger.Warn().Int("omitted_assets", msg.OmittedAssets).Msg("alert truncated to fit telegram limit")
	}

	if err := p.sender.Send(ctx, msg); err != nil {
		span.RecordError(err)
		p.metrics.Notifications.WithLabelValues(string(NotifyFailed)).Inc()
		ev := c.logger.Error().Err(err)
		var de *notify.DispatchError
		if errors.As(err, &de) {
			ev = ev.Str("description", de.Description)
		}
		ev.Msg("notification dispatch failed")
		c.enter(StageIdle)
		return NotifyFailed
	}

	p.metrics.Notifications.WithLabelValues(string(NotifySent)).Inc()
	c.logger.Info().Int("signals", msg.Signals).Msg("notification sent")
	c.enter(StageIdle)
	return NotifySent
}

func (p *Pipeline) recoverCycle(c *cycle, outcome *NotifyOutcome) {
	if r := recover(); r != nil {
		c.logger.Error().Interface("panic", r).Str("stage", string(c.stage)).Msg("cycle panicked")
		c.enter(StageIdle)
		if outcome != nil {
			*outcome = NotifyFailed
		}
	}
}

// analyze returns false only when the context was canceled before any work.
func (p *Pipeline) analyze(ctx context.Context, c *cycle, at time.Time) (domain.CycleResult, bool) {
	result := domain.CycleResult{CycleID: c.id, StartedAt: at.UTC()}
	if err := ctx.Err(); err != nil {
		c.logger.Warn().Err(err).Msg("cycle canceled")
		return result, false
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.cycle")
	defer span.End()
	span.SetAttributes(attribute.String("cycle.id", c.id))

	c.enter(StageFetching)
	snapshots, err := p.fetcher.FetchSnapshots(ctx)
	if err != nil {
		kind := "unknown"
		var fe *provider.FetchError
		if errors.As(err, &fe) {
			kind = string(fe.Kind)
		}
		p.metrics.FetchFallbacks.WithLabelValues(kind).Inc()
		c.logger.Warn().Err(err).Str("kind", kind).Msg("market fetch failed, using fallback data")
		snapshots = provider.FallbackSnapshots()
		result.UsedFallback = true
	}
	result.Snapshots = snapshots

	c.enter(StageClassifying)
	result.Signals = p.aggregator.Aggregate(ctx, snapshots)
	for _, s := range result.Signals {
		p.metrics.Signals.WithLabelValues(string(s.Kind)).Inc()
	}

	c.enter(StagePersisting)
	if p.sink != nil {
		if err := p.sink.Persist(ctx, result.Signals, IndexSnapshots(snapshots)); err != nil {
			p.metrics.PersistErrors.Inc()
			c.logger.Error().Err(err).Msg("persist failed, continuing with in-memory signals")
		} else {
			result.Persisted = true
		}
	}

	p.storeLatest(ctx, c, result)
	p.metrics.CycleDuration.Observe(p.now().Sub(at).Seconds())
	c.logger.Info().
		Int("snapshots", len(snapshots)).
		Int("signals", len(result.Signals)).
		Bool("fallback", result.UsedFallback).
		Bool("persisted", result.Persisted).
		Msg("cycle complete")
	return result, true
}

// windowEntries prefers the stored trailing window so the message covers every
// poll since the last send. It falls back to this cycle's batch when the batch
// was not stored or the store cannot be read.
func (p *Pipeline) windowEntries(ctx context.Context, c *cycle, result domain.CycleResult, at time.Time) []notify.Entry {
	if p.sink != nil && result.Persisted {
		actions, err := p.sink.Window(ctx, at, p.window)
		if err == nil {
			return notify.EntriesFromActions(actions)
		}
		c.logger.Warn().Err(err).Msg("window query failed, formatting in-memory batch")
	}
	return notify.EntriesFromSignals(result.Signals, IndexSnapshots(result.Snapshots))
}

func (p *Pipeline) storeLatest(ctx context.Context, c *cycle, result domain.CycleResult) {
	p.mu.Lock()
	p.latest = &result
	p.mu.Unlock()

	if p.cache != nil {
		if err := p.cache.Store(ctx, result); err != nil {
			c.logger.Warn().Err(err).Msg("cycle cache write failed")
		}
	}
}

// Latest returns the most recent cycle from memory, or from the cache after a
// restart. It returns nil when no cycle has run yet.
func (p *Pipeline) Latest(ctx context.Context) (*domain.CycleResult, error) {
	p.mu.RLock()
	latest := p.latest
	p.mu.RUnlock()
	if latest != nil {
		out := *latest
		return &out, nil
	}
	if p.cache == nil {
		return nil, nil
	}
	return p.cache.Latest(ctx)
}

// IndexSnapshots keys snapshots by asset id.
func IndexSnapshots(snapshots []domain.AssetSnapshot) map[string]domain.AssetSnapshot {
	out := make(map[string]domain.AssetSnapshot, len(snapshots))
	for _, s := range snapshots {
		out[s.ID] = s
	}
	return out
}
