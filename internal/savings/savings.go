// Package savings solves the time-value-of-money savings plan for a tier.
package savings

import (
	"math"

	"github.com/cffa-as/WealthTimeMachine/internal/domain"
)

const (
	defaultSaveRatio = 0.3
	minSavingsRate   = 0.2
	maxSavingsRate   = 0.6
)

// Optimize computes the savings plan for tier.
//
// With targetMonths nil the horizon is solved for at a fixed 30% savings rate,
// capped at domain.MaxPlanMonths. Otherwise the required monthly payment for
// the given horizon is solved from FV = PV(1+r)^n + PMT·((1+r)^n - 1)/r.
// The resulting rate is clamped to [0.2, 0.6] and the payment re-derived from it.
func Optimize(currentAsset, monthlyIncome, targetAmount float64, tier domain.RiskTierConfig, targetMonths *int) domain.SavingsPlan {
	r := tier.ExpectedReturn / 12

	var months int
	var save float64

	if targetMonths == nil {
		gap := targetAmount - currentAsset
		if gap > 0 {
			save = monthlyIncome * defaultSaveRatio
			months = monthsToTarget(currentAsset, targetAmount, save, r)
		}
	} else {
		months = max(0, min(*targetMonths, domain.MaxPlanMonths))
		if months > 0 {
			fvPV := currentAsset * math.Pow(1+r, float64(months))
			af := annuityFactor(r, months)
			if af > 0 {
				save = (targetAmount - fvPV) / af
			} else {
				save = (targetAmount - currentAsset) / float64(months)
			}
			save = math.Max(0, save)
		}
	}

	var rate float64
	if months == 0 || monthlyIncome == 0 {
		save = 0
	} else {
		rate = math.Min(maxSavingsRate, math.Max(minSavingsRate, save/monthlyIncome))
		save = monthlyIncome * rate
	}

	final := currentAsset
	if months > 0 {
		final = currentAsset*math.Pow(1+r, float64(months)) + save*annuityFactor(r, months)
	}

	return domain.SavingsPlan{
		MonthlySave:         save,
		SavingsRate:         rate,
		TargetMonths:        months,
		ExpectedFinalAmount: final,
	}
}

// monthsToTarget compounds month by month until the target is reached.
func monthsToTarget(current, target, save, r float64) int {
	months := 0
	acc := current
	for acc < target && months < domain.MaxPlanMonths {
		acc = acc*(1+r) + save
		months++
	}
	return months
}

// annuityFactor is ((1+r)^n - 1)/r, or n when r is not positive.
func annuityFactor(r float64, n int) float64 {
	if r <= 0 {
		return float64(n)
	}
	return (math.Pow(1+r, float64(n)) - 1) / r
}
