// Package repository persists engine configuration in SQLite or PostgreSQL.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cffa-as/WealthTimeMachine/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (*SQLRepository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// pingWithRetry verifies a fresh connection, backing off while the server starts.
func pingWithRetry(db *sql.DB, driver string) error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 30 * time.Second

	return backoff.RetryNotify(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return db.PingContext(ctx)
	}, policy, func(err error, wait time.Duration) {
		slog.Warn("database ping failed, retrying", "driver", driver, "wait", wait, "error", err)
	})
}

// SaveRiskTier inserts or replaces a tier's assumptions.
func (r *SQLRepository) SaveRiskTier(ctx context.Context, t *domain.RiskTierConfig) error {
	if t == nil {
		return fmt.Errorf("%w: tier is required", ErrInvalidInput)
	}
	if _, err := domain.ParseRiskTier(string(t.Tier)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	query := `
		INSERT INTO risk_tiers (
			tier, expected_return, volatility, max_drawdown,
			alloc_stocks, alloc_bonds, alloc_cash, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tier) DO UPDATE SET
			expected_return = excluded.expected_return,
			volatility = excluded.volatility,
			max_drawdown = excluded.max_drawdown,
			alloc_stocks = excluded.alloc_stocks,
			alloc_bonds = excluded.alloc_bonds,
			alloc_cash = excluded.alloc_cash,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		string(t.Tier), t.ExpectedReturn, t.Volatility, t.MaxDrawdown,
		t.BaseAllocation.Stocks, t.BaseAllocation.Bonds, t.BaseAllocation.Cash,
		time.Now().UTC(),
	)
	return err
}

// GetRiskTier retrieves a tier's assumptions.
func (r *SQLRepository) GetRiskTier(ctx context.Context, tier domain.RiskTier) (*domain.RiskTierConfig, error) {
	query := `
		SELECT tier, expected_return, volatility, max_drawdown,
			   alloc_stocks, alloc_bonds, alloc_cash
		FROM risk_tiers
		WHERE tier = ?
	`

	t, err := scanTier(r.db.QueryRowContext(ctx, r.rebind(query), string(tier)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// ListRiskTiers returns every stored tier.
func (r *SQLRepository) ListRiskTiers(ctx context.Context) ([]*domain.RiskTierConfig, error) {
	query := `
		SELECT tier, expected_return, volatility, max_drawdown,
			   alloc_stocks, alloc_bonds, alloc_cash
		FROM risk_tiers
		ORDER BY expected_return
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.RiskTierConfig
	for rows.Next() {
		t, err := scanTier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTier(s scanner) (*domain.RiskTierConfig, error) {
	var t domain.RiskTierConfig
	var tier string
	if err := s.Scan(
		&tier, &t.ExpectedReturn, &t.Volatility, &t.MaxDrawdown,
		&t.BaseAllocation.Stocks, &t.BaseAllocation.Bonds, &t.BaseAllocation.Cash,
	); err != nil {
		return nil, err
	}
	t.Tier = domain.RiskTier(tier)
	return &t, nil
}

// SaveClause inserts or replaces a rationale clause.
func (r *SQLRepository) SaveClause(ctx context.Context, c *domain.RationaleClause) error {
	if c == nil || c.ID == "" || c.Group == "" {
		return fmt.Errorf("%w: clause id and group are required", ErrInvalidInput)
	}

	enabled := 0
	if c.Enabled {
		enabled = 1
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO rationale_clauses (
			id, clause_group, priority, condition, template, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			clause_group = excluded.clause_group,
			priority = excluded.priority,
			condition = excluded.condition,
			template = excluded.template,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		c.ID, c.Group, c.Priority, c.Condition, c.Template, enabled, now, now,
	)
	return err
}

// GetClause retrieves a clause by ID, enabled or not.
func (r *SQLRepository) GetClause(ctx context.Context, clauseID string) (*domain.RationaleClause, error) {
	query := `
		SELECT id, clause_group, priority, condition, template, enabled
		FROM rationale_clauses
		WHERE id = ?
	`

	c, err := scanClause(r.db.QueryRowContext(ctx, r.rebind(query), clauseID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// ListClauses returns all enabled clauses ordered by group and priority.
func (r *SQLRepository) ListClauses(ctx context.Context) ([]*domain.RationaleClause, error) {
	query := `
		SELECT id, clause_group, priority, condition, template, enabled
		FROM rationale_clauses
		WHERE enabled = 1
		ORDER BY clause_group, priority, id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.RationaleClause
	for rows.Next() {
		c, err := scanClause(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteClause soft-deletes a clause by setting enabled = 0.
func (r *SQLRepository) DeleteClause(ctx context.Context, clauseID string) error {
	query := `
		UPDATE rationale_clauses
		SET enabled = 0, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), clauseID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func scanClause(s scanner) (*domain.RationaleClause, error) {
	var c domain.RationaleClause
	var enabled int
	if err := s.Scan(&c.ID, &c.Group, &c.Priority, &c.Condition, &c.Template, &enabled); err != nil {
		return nil, err
	}
	c.Enabled = enabled == 1
	return &c, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var sb strings.Builder
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			n++
		} else {
			sb.WriteByte(query[i])
		}
	}
	return sb.String()
}
