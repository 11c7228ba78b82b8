package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching computed plans.
// Supports two-phase caching: local LRU (Community) + Redis (Pro).
// Keys are scoped by namespace so plan ids and profile digests never collide.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, namespace string, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, namespace string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, namespace string, key string) error

	// GetPlan retrieves a stored plan entry by plan id.
	GetPlan(ctx context.Context, planID string) (*PlanEntry, error)

	// SetPlan stores a plan entry under its id.
	SetPlan(ctx context.Context, planID string, entry *PlanEntry, ttl time.Duration) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// Cache namespaces.
const (
	NamespacePlan    = "plan"
	NamespaceProfile = "profile"
)

// PlanStatus tracks an asynchronously computed plan.
type PlanStatus string

const (
	PlanPending PlanStatus = "pending"
	PlanReady   PlanStatus = "ready"
	PlanFailed  PlanStatus = "failed"
)

// PlanEntry is what the cache holds for a plan id.
type PlanEntry struct {
	ID     string             `json:"id"`
	Status PlanStatus         `json:"status"`
	Result *RecommendationSet `json:"result,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string `json:"type" yaml:"type"`

	// Local LRU cache settings (Community tier)
	LocalMaxSize int           `json:"localMaxSize" yaml:"local_max_size"`
	LocalTTL     time.Duration `json:"localTTL" yaml:"local_ttl"`

	// Redis settings (Pro tier)
	RedisAddr     string `json:"redisAddr" yaml:"redis_addr"`
	RedisPassword string `json:"-" yaml:"redis_password"`
	RedisDB       int    `json:"redisDB" yaml:"redis_db"`

	// Two-phase settings
	EnableTwoPhase bool `json:"enableTwoPhase" yaml:"enable_two_phase"` // If true, check local first, then Redis

	// PlanTTL is how long computed plans stay retrievable.
	PlanTTL time.Duration `json:"planTTL" yaml:"plan_ttl"`
}
