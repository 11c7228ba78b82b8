package domain

import "fmt"

// RiskTier is one of the three investment risk levels.
type RiskTier string

const (
	TierLow    RiskTier = "low"
	TierMedium RiskTier = "medium"
	TierHigh   RiskTier = "high"
)

// AllTiers lists the tiers in the order recommendations are produced.
var AllTiers = []RiskTier{TierLow, TierMedium, TierHigh}

// ParseRiskTier converts a string to a RiskTier.
func ParseRiskTier(s string) (RiskTier, error) {
	switch RiskTier(s) {
	case TierLow, TierMedium, TierHigh:
		return RiskTier(s), nil
	}
	return "", fmt.Errorf("unknown risk tier %q", s)
}

// DisplayName is the plan style shown to users.
func (t RiskTier) DisplayName() string {
	switch t {
	case TierLow:
		return "Conservative"
	case TierMedium:
		return "Balanced"
	case TierHigh:
		return "Aggressive"
	default:
		return string(t)
	}
}

// Allocation is a stocks/bonds/cash weight vector.
type Allocation struct {
	Stocks float64 `json:"stocks" yaml:"stocks"`
	Bonds  float64 `json:"bonds" yaml:"bonds"`
	Cash   float64 `json:"cash" yaml:"cash"`
}

// Sum returns the total weight.
func (a Allocation) Sum() float64 {
	return a.Stocks + a.Bonds + a.Cash
}

// RiskTierConfig holds the market assumptions for one tier.
type RiskTierConfig struct {
	Tier           RiskTier   `json:"tier" yaml:"tier"`
	ExpectedReturn float64    `json:"expectedReturn" yaml:"expected_return"`
	Volatility     float64    `json:"volatility" yaml:"volatility"`
	MaxDrawdown    float64    `json:"maxDrawdown" yaml:"max_drawdown"`
	BaseAllocation Allocation `json:"baseAllocation" yaml:"base_allocation"`
}
