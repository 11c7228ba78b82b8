package risk

import (
	"strings"

	"github.com/cffa-as/WealthTimeMachine/internal/domain"
)

// TargetEstimator classifies a free-text goal into a bucket with a fixed amount.
type TargetEstimator struct {
	buckets []domain.GoalBucket
	generic float64
}

// NewTargetEstimator builds an estimator from goal buckets. Buckets are tried in order.
func NewTargetEstimator(cfg domain.GoalsConfig) *TargetEstimator {
	buckets := make([]domain.GoalBucket, len(cfg.Buckets))
	for i, b := range cfg.Buckets {
		kw := make([]string, len(b.Keywords))
		for j, k := range b.Keywords {
			kw[j] = strings.ToLower(k)
		}
		buckets[i] = domain.GoalBucket{Type: b.Type, Amount: b.Amount, Keywords: kw}
	}
	return &TargetEstimator{buckets: buckets, generic: cfg.GenericAmount}
}

// Estimate returns the target amount and goal type for goal.
// Unmatched or empty text falls through to the generic bucket.
func (e *TargetEstimator) Estimate(goal string) (float64, domain.GoalType) {
	text := strings.ToLower(goal)
	for _, b := range e.buckets {
		for _, kw := range b.Keywords {
			if kw != "" && strings.Contains(text, kw) {
				return b.Amount, b.Type
			}
		}
	}
	return e.generic, domain.GoalGeneric
}
