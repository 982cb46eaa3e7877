package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"memebot/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

const (
	latestCycleKey  = "memebot:cycle:latest"
	defaultCycleTTL = 10 * time.Minute
)

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// CycleCache keeps the latest analysis cycle in Redis so the HTTP API and bot
// can serve it without recomputing.
type CycleCache struct {
	client RedisClient
	ttl    time.Duration
	tracer trace.Tracer
}

func NewCycleCache(client RedisClient, ttl time.Duration, tracer trace.Tracer) *CycleCache {
	if ttl <= 0 {
		ttl = defaultCycleTTL
	}
	return &CycleCache{client: client, ttl: ttl, tracer: tracer}
}

func (c *CycleCache) Store(ctx context.Context, result domain.CycleResult) error {
	ctx, span := c.tracer.Start(ctx, "cycle-cache.store")
	defer span.End()

	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, latestCycleKey, data, c.ttl).Err()
}

// Latest returns nil without an error when nothing is cached.
func (c *CycleCache) Latest(ctx context.Context) (*domain.CycleResult, error) {
	ctx, span := c.tracer.Start(ctx, "cycle-cache.latest")
	defer span.End()

	data, err := c.client.Get(ctx, latestCycleKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var result domain.CycleResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
