package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cffa-as/WealthTimeMachine/internal/domain"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "wtm:"

// RedisCache implements Cache using Redis.
// Used as the Pro tier cache and as L2 in two-phase caching.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis, retrying the initial ping with exponential backoff.
func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 15 * time.Second

	err := backoff.RetryNotify(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return client.Ping(ctx).Err()
	}, policy, func(err error, wait time.Duration) {
		slog.Warn("redis ping failed, retrying", "addr", addr, "wait", wait, "error", err)
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Get retrieves a value from Redis.
func (c *RedisCache) Get(ctx context.Context, namespace string, key string) ([]byte, error) {
	fullKey, err := makeKey(namespace, key)
	if err != nil {
		return nil, err
	}

	val, err := c.client.Get(ctx, keyPrefix+fullKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Set stores a value in Redis with TTL.
func (c *RedisCache) Set(ctx context.Context, namespace string, key string, value []byte, ttl time.Duration) error {
	fullKey, err := makeKey(namespace, key)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyPrefix+fullKey, value, ttl).Err()
}

// Delete removes a value from Redis.
func (c *RedisCache) Delete(ctx context.Context, namespace string, key string) error {
	fullKey, err := makeKey(namespace, key)
	if err != nil {
		return err
	}
	return c.client.Del(ctx, keyPrefix+fullKey).Err()
}

// GetPlan retrieves a cached plan entry.
func (c *RedisCache) GetPlan(ctx context.Context, planID string) (*domain.PlanEntry, error) {
	return decodePlan(c.Get(ctx, domain.NamespacePlan, planID))
}

// SetPlan caches a plan entry.
func (c *RedisCache) SetPlan(ctx context.Context, planID string, entry *domain.PlanEntry, ttl time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	return c.Set(ctx, domain.NamespacePlan, planID, data, ttl)
}

// Ping checks Redis connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
