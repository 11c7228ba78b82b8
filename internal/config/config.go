// Package config assembles the service configuration from defaults, an
// optional YAML file, a .env file and WTM_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/cffa-as/WealthTimeMachine/internal/domain"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "WTM_"

// Load builds the configuration. Precedence, lowest first: tier defaults,
// the YAML file at path, environment variables. A missing .env or config
// file is not an error; an unreadable or malformed one is.
func Load(path string) (*domain.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := domain.DefaultConfig()
	if os.Getenv(EnvPrefix+"TIER") == string(domain.TierPro) {
		cfg = domain.ProConfig()
	}

	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			slog.Warn("config file not found, using defaults", "path", path)
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type override struct {
	key string
	set func(cfg *domain.Config, v string) error
}

func str(dst func(*domain.Config) *string) func(*domain.Config, string) error {
	return func(cfg *domain.Config, v string) error {
		*dst(cfg) = v
		return nil
	}
}

func integer(dst func(*domain.Config) *int) func(*domain.Config, string) error {
	return func(cfg *domain.Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst(cfg) = n
		return nil
	}
}

func float(dst func(*domain.Config) *float64) func(*domain.Config, string) error {
	return func(cfg *domain.Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*dst(cfg) = f
		return nil
	}
}

func boolean(dst func(*domain.Config) *bool) func(*domain.Config, string) error {
	return func(cfg *domain.Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst(cfg) = b
		return nil
	}
}

func duration(dst func(*domain.Config) *time.Duration) func(*domain.Config, string) error {
	return func(cfg *domain.Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*dst(cfg) = d
		return nil
	}
}

var overrides = []override{
	{"HOST", str(func(c *domain.Config) *string { return &c.Server.Host })},
	{"PORT", integer(func(c *domain.Config) *int { return &c.Server.Port })},
	{"REQUEST_TIMEOUT", integer(func(c *domain.Config) *int { return &c.Server.RequestTimeout })},
	{"CORS_ORIGIN", str(func(c *domain.Config) *string { return &c.Server.CORSOrigin })},

	{"DB_DRIVER", str(func(c *domain.Config) *string { return &c.Repository.Driver })},
	{"SQLITE_PATH", str(func(c *domain.Config) *string { return &c.Repository.SQLitePath })},
	{"POSTGRES_HOST", str(func(c *domain.Config) *string { return &c.Repository.PostgresHost })},
	{"POSTGRES_PORT", integer(func(c *domain.Config) *int { return &c.Repository.PostgresPort })},
	{"POSTGRES_USER", str(func(c *domain.Config) *string { return &c.Repository.PostgresUser })},
	{"POSTGRES_PASSWORD", str(func(c *domain.Config) *string { return &c.Repository.PostgresPassword })},
	{"POSTGRES_DB", str(func(c *domain.Config) *string { return &c.Repository.PostgresDB })},
	{"POSTGRES_SSLMODE", str(func(c *domain.Config) *string { return &c.Repository.PostgresSSLMode })},

	{"CACHE_TYPE", str(func(c *domain.Config) *string { return &c.Cache.Type })},
	{"REDIS_ADDR", str(func(c *domain.Config) *string { return &c.Cache.RedisAddr })},
	{"REDIS_PASSWORD", str(func(c *domain.Config) *string { return &c.Cache.RedisPassword })},
	{"REDIS_DB", integer(func(c *domain.Config) *int { return &c.Cache.RedisDB })},
	{"PLAN_TTL", duration(func(c *domain.Config) *time.Duration { return &c.Cache.PlanTTL })},

	{"BUS_TYPE", str(func(c *domain.Config) *string { return &c.EventBus.Type })},
	{"NATS_URL", str(func(c *domain.Config) *string { return &c.EventBus.NATSUrl })},
	{"NATS_TOKEN", str(func(c *domain.Config) *string { return &c.EventBus.NATSToken })},
	{"NATS_QUEUE", str(func(c *domain.Config) *string { return &c.EventBus.NATSQueue })},

	{"MC_TRIALS", integer(func(c *domain.Config) *int { return &c.Engine.MonteCarloTrials })},
	{"LEARNED_SCORER", boolean(func(c *domain.Config) *bool { return &c.Engine.LearnedScorer.Enabled })},
	{"TIERS_FILE", str(func(c *domain.Config) *string { return &c.Engine.TiersFile })},

	{"SCHEDULER", boolean(func(c *domain.Config) *bool { return &c.Scheduler.Enabled })},
	{"AUDIT_CRON", str(func(c *domain.Config) *string { return &c.Scheduler.AuditCron })},

	{"RATE_LIMIT", boolean(func(c *domain.Config) *bool { return &c.RateLimit.Enabled })},
	{"RATE_LIMIT_RPS", float(func(c *domain.Config) *float64 { return &c.RateLimit.RequestsPerSecond })},
	{"RATE_LIMIT_BURST", integer(func(c *domain.Config) *int { return &c.RateLimit.Burst })},

	{"LOG_LEVEL", str(func(c *domain.Config) *string { return &c.Logging.Level })},
	{"LOG_FORMAT", str(func(c *domain.Config) *string { return &c.Logging.Format })},
	{"TRACING", boolean(func(c *domain.Config) *bool { return &c.Tracing.Enabled })},
}

func applyEnv(cfg *domain.Config) error {
	var errs []error
	for _, o := range overrides {
		v, ok := os.LookupEnv(EnvPrefix + o.key)
		if !ok || v == "" {
			continue
		}
		if err := o.set(cfg, v); err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, o.key, err))
		}
	}
	if os.Getenv(EnvPrefix+"DEBUG") == "true" {
		cfg.Logging.Level = "debug"
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
