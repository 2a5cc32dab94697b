// Package cache provides byte caches shared by the analysis and assist
// clients: an in-process LRU, Redis, and a layered combination of both.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// Store is a key/value cache. A miss and a backend failure both report
// ok=false; failures are logged by the implementation.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}

// Memory is an in-process LRU with per-entry expiry.
type Memory struct {
	lru *expirable.LRU[string, []byte]
}

func NewMemory(size int, ttl time.Duration) *Memory {
	if size <= 0 {
		size = 512
	}
	return &Memory{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	return m.lru.Get(key)
}

func (m *Memory) Set(_ context.Context, key string, value []byte) {
	m.lru.Add(key, value)
}

// Redis stores entries under a key prefix with a fixed TTL.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.SugaredLogger
}

// NewRedis connects to redisURL and verifies the connection.
func NewRedis(redisURL, prefix string, ttl time.Duration, logger *zap.SugaredLogger) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisWithClient(client, prefix, ttl, logger), nil
}

// NewRedisWithClient creates a store from an existing Redis client.
func NewRedisWithClient(client *redis.Client, prefix string, ttl time.Duration, logger *zap.SugaredLogger) *Redis {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

func (r *Redis) key(k string) string {
	return r.prefix + k
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		r.logger.Warnw("cache get failed", "key", r.key(key), "error", err)
		return nil, false
	}
	return raw, true
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) {
	if err := r.client.Set(ctx, r.key(key), value, r.ttl).Err(); err != nil {
		r.logger.Warnw("cache set failed", "key", r.key(key), "error", err)
	}
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// Layered reads through stores in order and fills the faster layers on a
// hit in a slower one.
type Layered []Store

func (l Layered) Get(ctx context.Context, key string) ([]byte, bool) {
	for i, s := range l {
		if value, ok := s.Get(ctx, key); ok {
			for _, faster := range l[:i] {
				faster.Set(ctx, key, value)
			}
			return value, true
		}
	}
	return nil, false
}

func (l Layered) Set(ctx context.Context, key string, value []byte) {
	for _, s := range l {
		s.Set(ctx, key, value)
	}
}

// Load decodes a msgpack value stored under key. Undecodable entries are
// treated as misses.
func Load[T any](ctx context.Context, s Store, key string) (T, bool) {
	var v T
	raw, ok := s.Get(ctx, key)
	if !ok {
		return v, false
	}
	if err := msgpack.Unmarshal(raw, &v); err != nil {
		var zero T
		return zero, false
	}
	return v, true
}

// Save msgpack-encodes v under key.
func Save[T any](ctx context.Context, s Store, key string, v T) error {
	raw, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache value: %w", err)
	}
	s.Set(ctx, key, raw)
	return nil
}
