// Package cache backs the HTTP idempotency layer with Redis so retried
// requests replay the original response across instances.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis configuration
type Config struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// Redis is a Redis-backed idempotency store.
type Redis struct {
	client *redis.Client
	logger *slog.Logger
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	logger.Info("redis connection established", "addr", cfg.Addr)
	return &Redis{client: client, logger: logger}, nil
}

// NewFromClient wraps an existing client, used by tests.
func NewFromClient(client *redis.Client, logger *slog.Logger) *Redis {
	return &Redis{client: client, logger: logger}
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

func idempotencyKey(key string) string {
	return "idempotency:" + key
}

// Get returns the cached response for an idempotency key.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, idempotencyKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading idempotency key: %w", err)
	}
	return val, true, nil
}

// Set caches a response under an idempotency key.
func (r *Redis) Set(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, idempotencyKey(key), response, ttl).Err(); err != nil {
		return fmt.Errorf("caching idempotency response: %w", err)
	}
	return nil
}

// HealthCheck verifies the Redis connection.
func (r *Redis) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
