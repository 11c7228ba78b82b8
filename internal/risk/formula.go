package risk

import (
	"errors"
	"math"

	"github.com/cffa-as/WealthTimeMachine/internal/domain"
)

// ErrInvalidFactors is returned when a scorer receives non-finite factors.
var ErrInvalidFactors = errors.New("invalid risk factors")

// FormulaScorer is the deterministic weighted geometric mean scorer.
type FormulaScorer struct{}

// NewFormulaScorer returns the deterministic scorer.
func NewFormulaScorer() *FormulaScorer {
	return &FormulaScorer{}
}

// Kind implements domain.RiskScorer.
func (s *FormulaScorer) Kind() string { return "formula" }

// Score implements domain.RiskScorer.
func (s *FormulaScorer) Score(f domain.RiskFactors) (float64, error) {
	if !finite(f) {
		return 0, ErrInvalidFactors
	}
	return formulaScore(f.AssetCoverage, f.TimePressure, f.AgeFactor, f.IncomeStability, f.GoalReached), nil
}

func formulaScore(cov, tp, age, inc float64, reached bool) float64 {
	if reached {
		s := math.Pow(cov, 0.1) * math.Pow(age, 0.2) * math.Pow(inc, 0.2) * math.Sqrt(0.5)
		return clamp(math.Min(0.4, s), 0, 1)
	}

	cov = math.Min(1, cov)
	s := math.Pow(cov, 0.25) * math.Pow(tp, 0.25) * math.Pow(age, 0.25) * math.Pow(inc, 0.25)
	if tp > 0.7 && cov < 0.3 {
		s = math.Min(1, s*1.2)
	}
	return clamp(s, 0, 1)
}

func finite(f domain.RiskFactors) bool {
	for _, v := range [...]float64{f.AssetCoverage, f.TimePressure, f.AgeFactor, f.IncomeStability} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
