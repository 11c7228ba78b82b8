package risk

import (
	"fmt"
	"math"

	"github.com/cffa-as/WealthTimeMachine/internal/domain"
)

// AuditReport compares two scorers over a fixed factor grid.
type AuditReport struct {
	Points            int     `json:"points"`
	MeanAbsDeviation  float64 `json:"meanAbsDeviation"`
	MaxAbsDeviation   float64 `json:"maxAbsDeviation"`
	TierDisagreements int     `json:"tierDisagreements"`
}

// Audit scores a grid of factor combinations with both scorers.
func Audit(candidate, reference domain.RiskScorer) (*AuditReport, error) {
	grid := []float64{0.05, 0.25, 0.5, 0.75, 0.95}
	report := &AuditReport{}
	var total float64

	for _, cov := range []float64{0.05, 0.25, 0.5, 0.75, 0.95, 1.5} {
		for _, tp := range grid {
			for _, age := range grid {
				for _, inc := range grid {
					f := domain.RiskFactors{
						AssetCoverage:   cov,
						TimePressure:    tp,
						AgeFactor:       math.Max(0.5, age),
						IncomeStability: inc,
						GoalReached:     cov >= 1,
					}
					if f.GoalReached {
						f.TimePressure = 0
					}

					a, err := candidate.Score(f)
					if err != nil {
						return nil, fmt.Errorf("candidate scorer: %w", err)
					}
					b, err := reference.Score(f)
					if err != nil {
						return nil, fmt.Errorf("reference scorer: %w", err)
					}

					d := math.Abs(a - b)
					total += d
					report.MaxAbsDeviation = math.Max(report.MaxAbsDeviation, d)
					if domain.TierForScore(a) != domain.TierForScore(b) {
						report.TierDisagreements++
					}
					report.Points++
				}
			}
		}
	}

	report.MeanAbsDeviation = total / float64(report.Points)
	return report, nil
}
