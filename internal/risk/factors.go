package risk

import (
	"math"

	"github.com/cffa-as/WealthTimeMachine/internal/domain"
)

const (
	// savingsCapacityRatio is the share of monthly income assumed saveable.
	savingsCapacityRatio = 0.3

	// noCapacityMonths stands in for an infinite horizon when nothing can be saved.
	noCapacityMonths = 999.0

	incomeScale = 5000.0
)

// ComputeFactors derives the four normalized risk factors.
func ComputeFactors(currentAsset, monthlyIncome, target float64, age int) domain.RiskFactors {
	var f domain.RiskFactors

	if target > 0 {
		f.AssetCoverage = clamp(currentAsset/target, 0, 2)
	}

	gap := target - currentAsset
	f.GoalReached = gap <= 0
	f.TimePressure = timePressure(gap, monthlyIncome*savingsCapacityRatio)

	// No upper bound: ages under 25 yield a factor above 1.
	f.AgeFactor = math.Max(0.5, 1-float64(age-25)/50)

	f.IncomeStability = clamp(math.Log1p(monthlyIncome/incomeScale)/math.Log(5), 0, 1)

	return f
}

func timePressure(gap, capacity float64) float64 {
	if gap <= 0 {
		return 0
	}
	months := noCapacityMonths
	if capacity > 0 {
		months = gap / capacity
	}
	switch {
	case months < 12:
		return 1.0
	case months < 60:
		return math.Min(1, 60/months)
	default:
		return math.Min(1, 100/months)
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
