package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// DefaultAge is used when a profile omits the age.
const DefaultAge = 30

// MaxGoalLength bounds the free-text goal accepted at the boundary.
const MaxGoalLength = 500

// MaxAmount bounds currentAsset and monthlyIncome. Larger values overflow the
// compounding in the savings and simulation stages.
const MaxAmount = 1e13

// ErrInvalidProfile is returned when a FinancialProfile fails validation.
var ErrInvalidProfile = errors.New("invalid financial profile")

// FinancialProfile is the caller-supplied input for a recommendation.
type FinancialProfile struct {
	Goal          string  `json:"goal"`
	CurrentAsset  float64 `json:"currentAsset"`
	MonthlyIncome float64 `json:"monthlyIncome"`
	Age           int     `json:"age,omitempty"`
}

// Normalize trims the goal and applies the default age.
func (p *FinancialProfile) Normalize() {
	p.Goal = strings.TrimSpace(p.Goal)
	if p.Age == 0 {
		p.Age = DefaultAge
	}
}

// Validate checks field ranges. Call Normalize first.
func (p *FinancialProfile) Validate() error {
	if len(p.Goal) > MaxGoalLength {
		return fmt.Errorf("%w: goal exceeds %d bytes", ErrInvalidProfile, MaxGoalLength)
	}
	if !validAmount(p.CurrentAsset) {
		return fmt.Errorf("%w: currentAsset must be between 0 and %g", ErrInvalidProfile, MaxAmount)
	}
	if !validAmount(p.MonthlyIncome) {
		return fmt.Errorf("%w: monthlyIncome must be between 0 and %g", ErrInvalidProfile, MaxAmount)
	}
	if p.Age < 1 || p.Age > 120 {
		return fmt.Errorf("%w: age must be between 1 and 120", ErrInvalidProfile)
	}
	return nil
}

func validAmount(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= MaxAmount
}
