// Package cache keeps short-lived snapshots of planning sessions in Redis so
// clients polling a session do not hit Postgres on every refresh.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"storyscape/api/internal/planning"
)

// ErrMiss is returned when no usable snapshot is cached.
var ErrMiss = errors.New("cache miss")

const defaultTTL = 30 * time.Second

// RedisCache stores session snapshots keyed by join code.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to redisURL and verifies the connection.
func NewRedisCache(redisURL string, ttl time.Duration) (*RedisCache, error) {
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

	return NewRedisCacheWithClient(client, ttl), nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisCache{
		client: client,
		prefix: "storyscape:session:",
		ttl:    ttl,
	}
}

func (c *RedisCache) key(code string) string {
	return c.prefix + code
}

// Get returns the cached snapshot for code. Snapshots that fail
// planning.Validate are evicted and reported as a miss.
func (c *RedisCache) Get(ctx context.Context, code string) (planning.Session, error) {
	raw, err := c.client.Get(ctx, c.key(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return planning.Session{}, ErrMiss
	}
	if err != nil {
		return planning.Session{}, fmt.Errorf("read session snapshot: %w", err)
	}

	var session planning.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		_ = c.Invalidate(ctx, code)
		return planning.Session{}, ErrMiss
	}
	if err := planning.Validate(session); err != nil || session.Code != code {
		_ = c.Invalidate(ctx, code)
		return planning.Session{}, ErrMiss
	}
	return session, nil
}

// Set caches a snapshot of session under its code.
func (c *RedisCache) Set(ctx context.Context, session planning.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session snapshot: %w", err)
	}
	if err := c.client.Set(ctx, c.key(session.Code), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("save session snapshot: %w", err)
	}
	return nil
}

// Invalidate drops the snapshot for code.
func (c *RedisCache) Invalidate(ctx context.Context, code string) error {
	if err := c.client.Del(ctx, c.key(code)).Err(); err != nil {
		return fmt.Errorf("invalidate session snapshot: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
