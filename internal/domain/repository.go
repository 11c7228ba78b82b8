// Package domain defines the core interfaces and types for the wealth planner.
package domain

import (
	"context"
	"time"
)

// Repository persists engine configuration: the risk tier table and the
// rationale clauses. It never stores user profiles or results.
type Repository interface {
	// Risk tier operations
	SaveRiskTier(ctx context.Context, tier *RiskTierConfig) error
	GetRiskTier(ctx context.Context, tier RiskTier) (*RiskTierConfig, error)
	ListRiskTiers(ctx context.Context) ([]*RiskTierConfig, error)

	// Rationale clause operations
	SaveClause(ctx context.Context, clause *RationaleClause) error
	GetClause(ctx context.Context, clauseID string) (*RationaleClause, error)
	ListClauses(ctx context.Context) ([]*RationaleClause, error)
	DeleteClause(ctx context.Context, clauseID string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `json:"driver" yaml:"driver"`

	// SQLite specific
	SQLitePath string `json:"sqlitePath" yaml:"sqlite_path"`

	// PostgreSQL specific
	PostgresHost     string `json:"postgresHost" yaml:"postgres_host"`
	PostgresPort     int    `json:"postgresPort" yaml:"postgres_port"`
	PostgresUser     string `json:"postgresUser" yaml:"postgres_user"`
	PostgresPassword string `json:"-" yaml:"postgres_password"`
	PostgresDB       string `json:"postgresDB" yaml:"postgres_db"`
	PostgresSSLMode  string `json:"postgresSSLMode" yaml:"postgres_sslmode"`

	// Connection pool settings
	MaxOpenConns    int           `json:"maxOpenConns" yaml:"max_open_conns"`
	MaxIdleConns    int           `json:"maxIdleConns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime" yaml:"conn_max_lifetime"`
}
