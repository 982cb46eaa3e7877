package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
)

func stubRedis(t *testing.T, pingErr error) *string {
	t.Helper()
	origNewClient := newRedisClient
	origPing := pingRedis
	t.Cleanup(func() {
		newRedisClient = origNewClient
		pingRedis = origPing
	})

	var capturedAddr string
	newRedisClient = func(opts *redis.Options) *redis.Client {
		capturedAddr = opts.Addr
		return redis.NewClient(opts)
	}
	pingRedis = func(ctx context.Context, client *redis.Client) error {
		return pingErr
	}
	return &capturedAddr
}

func TestInitRedisWithCustomAddr(t *testing.T) {
	addr := stubRedis(t, nil)

	client, err := InitRedis(context.Background(), "redis:9999")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer client.Close()
	if *addr != "redis:9999" {
		t.Fatalf("expected custom addr, got %s", *addr)
	}
}

func TestInitRedisDefaults(t *testing.T) {
	addr := stubRedis(t, nil)

	client, err := InitRedis(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer client.Close()
	if *addr != defaultRedisAddr {
		t.Fatalf("expected default addr, got %s", *addr)
	}
}

func TestInitRedisParsesURL(t *testing.T) {
	addr := stubRedis(t, nil)

	client, err := InitRedis(context.Background(), "redis://:secret@cache.internal:6380/2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer client.Close()
	if *addr != "cache.internal:6380" {
		t.Fatalf("expected parsed addr, got %s", *addr)
	}
}

func TestInitRedisPingFailure(t *testing.T) {
	stubRedis(t, errors.New("connection refused"))

	client, err := InitRedis(context.Background(), "localhost:1")
	if err == nil {
		t.Fatal("expected error")
	}
	if client != nil {
		t.Fatal("expected nil client on ping failure")
	}
}
