// Package tiers holds the immutable risk tier table.
package tiers

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/cffa-as/WealthTimeMachine/internal/domain"
	"gopkg.in/yaml.v3"
)

// ErrUnknownTier is returned when a tier is not in the table.
var ErrUnknownTier = errors.New("unknown risk tier")

const allocationTolerance = 1e-6

// Table is the read-only risk tier table. Build it once at startup and share it.
type Table struct {
	byTier map[domain.RiskTier]domain.RiskTierConfig
}

// Defaults returns the built-in tier assumptions.
func Defaults() []domain.RiskTierConfig {
	return []domain.RiskTierConfig{
		{
			Tier:           domain.TierLow,
			ExpectedReturn: 0.05,
			Volatility:     0.03,
			MaxDrawdown:    0.05,
			BaseAllocation: domain.Allocation{Stocks: 0.20, Bonds: 0.70, Cash: 0.10},
		},
		{
			Tier:           domain.TierMedium,
			ExpectedReturn: 0.07,
			Volatility:     0.08,
			MaxDrawdown:    0.15,
			BaseAllocation: domain.Allocation{Stocks: 0.40, Bonds: 0.50, Cash: 0.10},
		},
		{
			Tier:           domain.TierHigh,
			ExpectedReturn: 0.09,
			Volatility:     0.15,
			MaxDrawdown:    0.30,
			BaseAllocation: domain.Allocation{Stocks: 0.60, Bonds: 0.30, Cash: 0.10},
		},
	}
}

// Default returns a table built from Defaults.
func Default() *Table {
	t, err := New(Defaults())
	if err != nil {
		panic(err)
	}
	return t
}

// New validates configs and builds a table. Every tier must be present exactly once.
func New(configs []domain.RiskTierConfig) (*Table, error) {
	byTier := make(map[domain.RiskTier]domain.RiskTierConfig, len(configs))
	for _, c := range configs {
		if _, err := domain.ParseRiskTier(string(c.Tier)); err != nil {
			return nil, err
		}
		if _, dup := byTier[c.Tier]; dup {
			return nil, fmt.Errorf("duplicate risk tier %q", c.Tier)
		}
		if err := validate(c); err != nil {
			return nil, fmt.Errorf("tier %s: %w", c.Tier, err)
		}
		byTier[c.Tier] = c
	}
	for _, t := range domain.AllTiers {
		if _, ok := byTier[t]; !ok {
			return nil, fmt.Errorf("missing risk tier %q", t)
		}
	}
	return &Table{byTier: byTier}, nil
}

func validate(c domain.RiskTierConfig) error {
	if c.Volatility < 0 {
		return fmt.Errorf("volatility must be >= 0, got %v", c.Volatility)
	}
	if c.MaxDrawdown < 0 || c.MaxDrawdown > 1 {
		return fmt.Errorf("max drawdown must be in [0,1], got %v", c.MaxDrawdown)
	}
	a := c.BaseAllocation
	if a.Stocks < 0 || a.Bonds < 0 || a.Cash < 0 {
		return errors.New("allocation weights must be >= 0")
	}
	if math.Abs(a.Sum()-1) > allocationTolerance {
		return fmt.Errorf("allocation must sum to 1, got %v", a.Sum())
	}
	return nil
}

// Lookup returns the config for tier.
func (t *Table) Lookup(tier domain.RiskTier) (domain.RiskTierConfig, error) {
	c, ok := t.byTier[tier]
	if !ok {
		return domain.RiskTierConfig{}, fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}
	return c, nil
}

// MustLookup is Lookup for call sites where an unknown tier is a programming error.
func (t *Table) MustLookup(tier domain.RiskTier) domain.RiskTierConfig {
	c, err := t.Lookup(tier)
	if err != nil {
		panic(err)
	}
	return c
}

// All returns the configs in low, medium, high order.
func (t *Table) All() []domain.RiskTierConfig {
	out := make([]domain.RiskTierConfig, 0, len(domain.AllTiers))
	for _, tier := range domain.AllTiers {
		out = append(out, t.byTier[tier])
	}
	return out
}

type tierFile struct {
	Tiers []domain.RiskTierConfig `yaml:"tiers"`
}

// LoadFile reads a YAML tier table of the form `tiers: [...]`.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tiers file: %w", err)
	}
	var f tierFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse tiers file: %w", err)
	}
	return New(f.Tiers)
}
