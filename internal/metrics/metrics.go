// Package metrics computes risk-adjusted performance measures for a tier.
package metrics

import (
	"math"

	"github.com/cffa-as/WealthTimeMachine/internal/domain"
)

// RiskFreeRate approximates the 10-year government bond yield.
const RiskFreeRate = 0.03

// downsideRatio approximates downside deviation as a share of total volatility.
const downsideRatio = 0.6

// cvarMultiplier approximates expected shortfall beyond VaR under normality.
const cvarMultiplier = 1.3

// Sharpe returns (μ - rf)/σ, or 0 when σ is 0.
func Sharpe(tier domain.RiskTierConfig) float64 {
	if tier.Volatility <= 0 {
		return 0
	}
	return (tier.ExpectedReturn - RiskFreeRate) / tier.Volatility
}

// Sortino returns (μ - rf)/(0.6σ), or 0 when σ is 0.
func Sortino(tier domain.RiskTierConfig) float64 {
	down := tier.Volatility * downsideRatio
	if down <= 0 {
		return 0
	}
	return (tier.ExpectedReturn - RiskFreeRate) / down
}

// ZScore returns the one-sided normal quantile used for a confidence level.
// Only 0.95 and 0.99 are tabulated; anything else uses 1.28.
func ZScore(confidence float64) float64 {
	switch confidence {
	case 0.95:
		return 1.645
	case 0.99:
		return 2.326
	default:
		return 1.28
	}
}

// VaR returns the parametric value at risk in percent.
func VaR(tier domain.RiskTierConfig, confidence float64) float64 {
	return math.Abs(-tier.ExpectedReturn+ZScore(confidence)*tier.Volatility) * 100
}

// CVaR returns the conditional value at risk in percent.
func CVaR(tier domain.RiskTierConfig, confidence float64) float64 {
	return VaR(tier, confidence) * cvarMultiplier
}

// Compute returns all metrics at 95% confidence.
func Compute(tier domain.RiskTierConfig) domain.PerformanceMetrics {
	return domain.PerformanceMetrics{
		Sharpe:  Sharpe(tier),
		Sortino: Sortino(tier),
		VaR95:   VaR(tier, 0.95),
		CVaR95:  CVaR(tier, 0.95),
	}
}
