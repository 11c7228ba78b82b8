// Package allocation adjusts a tier's base allocation for horizon and progress.
package allocation

import (
	"math"

	"github.com/cffa-as/WealthTimeMachine/internal/domain"
)

const (
	fullHorizonMonths = 120
	stockTilt         = 0.2
	bondTilt          = 0.1
	maxConservative   = 0.3
)

// Optimize tilts toward stocks as the horizon lengthens (full effect at ten
// years) and toward bonds as assets approach the target, then normalizes.
func Optimize(tier domain.RiskTierConfig, currentAsset, targetAmount float64, months int) domain.Allocation {
	base := tier.BaseAllocation

	timeFactor := math.Min(1, float64(max(months, 0))/fullHorizonMonths)

	var assetRatio float64
	if targetAmount > 0 {
		assetRatio = math.Max(0, math.Min(1, currentAsset/targetAmount))
	}
	conservative := assetRatio * maxConservative

	stocks := base.Stocks * (1 + timeFactor*stockTilt) * (1 - conservative)
	bonds := base.Bonds * (1 - timeFactor*bondTilt) * (1 + conservative)
	cash := base.Cash

	total := stocks + bonds + cash
	if total <= 0 {
		return base
	}
	return domain.Allocation{
		Stocks: stocks / total,
		Bonds:  bonds / total,
		Cash:   cash / total,
	}
}
