// Package risk estimates a user's risk tolerance from their financial profile.
package risk

import (
	"fmt"
	"log/slog"

	"github.com/cffa-as/WealthTimeMachine/internal/domain"
)

// Estimator computes risk assessments. It tries the primary scorer and falls
// back to the formula scorer for any call where the primary fails.
type Estimator struct {
	targets  *TargetEstimator
	primary  domain.RiskScorer
	fallback domain.RiskScorer
}

// NewEstimator creates an Estimator. primary may be nil, in which case every
// assessment uses the fallback and reports mlEnhanced=false.
func NewEstimator(targets *TargetEstimator, primary, fallback domain.RiskScorer) *Estimator {
	if fallback == nil {
		fallback = NewFormulaScorer()
	}
	return &Estimator{
		targets:  targets,
		primary:  primary,
		fallback: fallback,
	}
}

// Targets returns the goal classifier used by the estimator.
func (e *Estimator) Targets() *TargetEstimator {
	return e.targets
}

// Primary returns the primary scorer, or nil.
func (e *Estimator) Primary() domain.RiskScorer {
	return e.primary
}

// Assess estimates risk tolerance for a profile.
func (e *Estimator) Assess(currentAsset, monthlyIncome float64, goal string, age int) domain.RiskAssessment {
	target, goalType := e.targets.Estimate(goal)
	factors := ComputeFactors(currentAsset, monthlyIncome, target, age)

	score, ml := e.score(factors)

	return domain.RiskAssessment{
		RiskScore:    score,
		RiskLevel:    domain.TierForScore(score),
		MLEnhanced:   ml,
		Factors:      factors,
		TargetAmount: target,
		GoalType:     goalType,
	}
}

func (e *Estimator) score(f domain.RiskFactors) (float64, bool) {
	if e.primary != nil {
		score, err := safeScore(e.primary, f)
		if err == nil {
			return score, true
		}
		slog.Warn("primary risk scorer failed, using fallback",
			"scorer", e.primary.Kind(),
			"error", err,
		)
	}

	score, err := e.fallback.Score(f)
	if err != nil {
		// Non-finite factors: treat as the most conservative profile.
		slog.Error("fallback risk scorer failed", "error", err)
		return 0, false
	}
	return score, false
}

func safeScore(s domain.RiskScorer, f domain.RiskFactors) (score float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scorer %s panicked: %v", s.Kind(), r)
		}
	}()
	return s.Score(f)
}
