package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"memebot/internal/domain"
	"memebot/internal/notify"

	"go.opentelemetry.io/otel/trace/noop"
)

var testTracer = noop.NewTracerProvider().Tracer("test")

// memActionStore is an in-memory trading_actions table.
type memActionStore struct {
	mu        sync.Mutex
	rows      []domain.PersistedAction
	nextID    int64
	insertErr error
	queryErr  error
}

func (m *memActionStore) InsertActions(ctx context.Context, actions []domain.PersistedAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	for i := range actions {
		m.nextID++
		actions[i].ID = m.nextID
		m.rows = append(m.rows, actions[i])
	}
	return nil
}

func (m *memActionStore) ActionsSince(ctx context.Context, since time.Time) ([]domain.PersistedAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	var out []domain.PersistedAction
	for _, r := range m.rows {
		if !r.EmittedAt.Before(since) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EmittedAt.Before(out[j].EmittedAt) })
	return out, nil
}

func (m *memActionStore) RecentActions(ctx context.Context, since time.Time, limit int) ([]domain.PersistedAction, error) {
	all, err := m.ActionsSince(ctx, since)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *memActionStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// memPositionStore enforces one open position per asset like the partial
// unique index does.
type memPositionStore struct {
	mu      sync.Mutex
	rows    []domain.Position
	nextID  int64
	openErr error
}

func (m *memPositionStore) OpenPosition(ctx context.Context, p *domain.Position) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return false, m.openErr
	}
	for _, r := range m.rows {
		if r.AssetID == p.AssetID && r.Status == domain.PositionOpen {
			return false, nil
		}
	}
	m.nextID++
	p.ID = m.nextID
	p.Status = domain.PositionOpen
	m.rows = append(m.rows, *p)
	return true, nil
}

func (m *memPositionStore) LatestOpenPosition(ctx context.Context, assetID string) (*domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *domain.Position
	for i := range m.rows {
		r := m.rows[i]
		if r.AssetID != assetID || r.Status != domain.PositionOpen {
			continue
		}
		if latest == nil || !r.BuyAt.Before(latest.BuyAt) {
			latest = &r
		}
	}
	return latest, nil
}

func (m *memPositionStore) ClosePosition(ctx context.Context, p domain.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == p.ID && m.rows[i].Status == domain.PositionOpen {
			m.rows[i] = p
			return nil
		}
	}
	return errors.New("position is not open")
}

func (m *memPositionStore) ListPositions(ctx context.Context, limit int) ([]domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Position, len(m.rows))
	copy(out, m.rows)
	sort.SliceStable(out, func(i, j int) bool { return out[i].BuyAt.After(out[j].BuyAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeFetcher struct {
	snapshots []domain.AssetSnapshot
	err       error
	calls     int
}

func (f *fakeFetcher) FetchSnapshots(ctx context.Context) ([]domain.AssetSnapshot, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.snapshots, nil
}

type recordingSender struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (s *recordingSender) Send(ctx context.Context, msg notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

type memCycleStore struct {
	stored []domain.CycleResult
	err    error
}

func (c *memCycleStore) Store(ctx context.Context, result domain.CycleResult) error {
	if c.err != nil {
		return c.err
	}
	c.stored = append(c.stored, result)
	return nil
}

func (c *memCycleStore) Latest(ctx context.Context) (*domain.CycleResult, error) {
	if len(c.stored) == 0 {
		return nil, nil
	}
	r := c.stored[len(c.stored)-1]
	return &r, nil
}
