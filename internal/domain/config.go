package domain

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete service configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server" yaml:"server"`

	// Tier determines which infrastructure backs the service
	Tier Tier `json:"tier" yaml:"tier"`

	// Component configurations
	Repository RepositoryConfig `json:"repository" yaml:"repository"`
	Cache      CacheConfig      `json:"cache" yaml:"cache"`
	EventBus   EventBusConfig   `json:"eventBus" yaml:"event_bus"`

	// Decision engine
	Engine EngineConfig `json:"engine" yaml:"engine"`
	Goals  GoalsConfig  `json:"goals" yaml:"goals"`

	Scheduler SchedulerConfig `json:"scheduler" yaml:"scheduler"`
	RateLimit RateLimitConfig `json:"rateLimit" yaml:"rate_limit"`

	// Observability
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host" yaml:"host"`
	Port         int    `json:"port" yaml:"port"`
	ReadTimeout  int    `json:"readTimeout" yaml:"read_timeout"`   // seconds
	WriteTimeout int    `json:"writeTimeout" yaml:"write_timeout"` // seconds

	// RequestTimeout bounds a single synchronous recommendation.
	RequestTimeout int `json:"requestTimeout" yaml:"request_timeout"` // seconds

	CORSOrigin string `json:"corsOrigin" yaml:"cors_origin"`
}

// EngineConfig tunes the decision engine.
type EngineConfig struct {
	MonteCarloTrials int `json:"monteCarloTrials" yaml:"monte_carlo_trials"`

	LearnedScorer LearnedScorerConfig `json:"learnedScorer" yaml:"learned_scorer"`

	// TiersFile optionally overrides the built-in risk tier table.
	TiersFile string `json:"tiersFile" yaml:"tiers_file"`
}

// LearnedScorerConfig controls the tree ensemble trained at startup.
type LearnedScorerConfig struct {
	Enabled         bool   `json:"enabled" yaml:"enabled"`
	Trees           int    `json:"trees" yaml:"trees"`
	MaxDepth        int    `json:"maxDepth" yaml:"max_depth"`
	MinSamplesSplit int    `json:"minSamplesSplit" yaml:"min_samples_split"`
	Samples         int    `json:"samples" yaml:"samples"`
	Seed            uint64 `json:"seed" yaml:"seed"`
}

// GoalBucket maps goal keywords to a target amount.
type GoalBucket struct {
	Type     GoalType `json:"type" yaml:"type"`
	Amount   float64  `json:"amount" yaml:"amount"`
	Keywords []string `json:"keywords" yaml:"keywords"`
}

// GoalsConfig lists buckets in match order plus the fallback amount.
type GoalsConfig struct {
	Buckets       []GoalBucket `json:"buckets" yaml:"buckets"`
	GenericAmount float64      `json:"genericAmount" yaml:"generic_amount"`
}

// SchedulerConfig controls background jobs.
type SchedulerConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	AuditCron string `json:"auditCron" yaml:"audit_cron"`

	// ReloadCron refreshes rationale clauses from the repository.
	ReloadCron string `json:"reloadCron" yaml:"reload_cron"`
}

// RateLimitConfig is a per-client token bucket.
type RateLimitConfig struct {
	Enabled           bool    `json:"enabled" yaml:"enabled"`
	RequestsPerSecond float64 `json:"requestsPerSecond" yaml:"requests_per_second"`
	Burst             int     `json:"burst" yaml:"burst"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	ServiceName string `json:"serviceName" yaml:"service_name"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity runs on SQLite + channels + in-process cache
	TierCommunity Tier = "community"

	// TierPro runs on PostgreSQL + NATS + Redis
	TierPro Tier = "pro"
)

// DefaultGoals returns the built-in goal buckets.
// Amounts descend house > freedom > education > car > generic.
func DefaultGoals() GoalsConfig {
	return GoalsConfig{
		Buckets: []GoalBucket{
			{Type: GoalHouse, Amount: 1_000_000, Keywords: []string{"房", "house", "home", "apartment", "flat", "property"}},
			{Type: GoalCar, Amount: 300_000, Keywords: []string{"车", "car", "vehicle", "auto"}},
			{Type: GoalEducation, Amount: 500_000, Keywords: []string{"教育", "学", "education", "school", "college", "tuition", "university"}},
			{Type: GoalFreedom, Amount: 800_000, Keywords: []string{"自由", "退休", "freedom", "retire", "independen"}},
		},
		GenericAmount: 200_000,
	}
}

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    30,
			WriteTimeout:   30,
			RequestTimeout: 20,
			CORSOrigin:     "*",
		},
		Tier: TierCommunity,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./wealthtm.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
			PlanTTL:      time.Hour,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Engine: EngineConfig{
			MonteCarloTrials: 10000,
			LearnedScorer: LearnedScorerConfig{
				Enabled:         true,
				Trees:           100,
				MaxDepth:        10,
				MinSamplesSplit: 5,
				Samples:         5000,
				Seed:            42,
			},
		},
		Goals: DefaultGoals(),
		Scheduler: SchedulerConfig{
			Enabled:    true,
			AuditCron:  "@every 1h",
			ReloadCron: "@every 5m",
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 5,
			Burst:             10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "wealthtm",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "wealthtm",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
		LocalTTL:       time.Minute,
		PlanTTL:        24 * time.Hour,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
		NATSQueue:         "wtm-workers",
	}
	cfg.Tracing.Enabled = true
	return cfg
}

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Tier != TierCommunity && c.Tier != TierPro {
		errs = append(errs, fmt.Errorf("unknown tier %q", c.Tier))
	}
	switch c.Repository.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unsupported repository driver %q", c.Repository.Driver))
	}
	switch c.Cache.Type {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("unsupported cache type %q", c.Cache.Type))
	}
	switch c.EventBus.Type {
	case "channel", "nats":
	default:
		errs = append(errs, fmt.Errorf("unsupported event bus type %q", c.EventBus.Type))
	}
	if c.Engine.MonteCarloTrials < 100 {
		errs = append(errs, fmt.Errorf("engine.monte_carlo_trials must be >= 100, got %d", c.Engine.MonteCarloTrials))
	}
	if ls := c.Engine.LearnedScorer; ls.Enabled && (ls.Trees <= 0 || ls.MaxDepth <= 0 || ls.Samples <= 0) {
		errs = append(errs, errors.New("engine.learned_scorer requires trees, max_depth and samples > 0"))
	}
	for _, b := range c.Goals.Buckets {
		if b.Amount <= 0 {
			errs = append(errs, fmt.Errorf("goal bucket %q amount must be > 0", b.Type))
		}
	}
	if c.Goals.GenericAmount <= 0 {
		errs = append(errs, errors.New("goals.generic_amount must be > 0"))
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		errs = append(errs, errors.New("rate_limit requires requests_per_second and burst > 0"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
