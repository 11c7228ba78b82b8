package domain

// Score thresholds separating the tiers.
const (
	HighRiskThreshold   = 0.7
	MediumRiskThreshold = 0.4
)

// TierForScore maps a risk score onto a tier.
func TierForScore(score float64) RiskTier {
	switch {
	case score >= HighRiskThreshold:
		return TierHigh
	case score >= MediumRiskThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

// RiskFactors are the normalized inputs to a RiskScorer.
// AssetCoverage is clamped to [0,2] here; display values cap it at 1.
type RiskFactors struct {
	AssetCoverage   float64 `json:"assetCoverage"`
	TimePressure    float64 `json:"timePressure"`
	AgeFactor       float64 `json:"ageFactor"`
	IncomeStability float64 `json:"incomeStability"`

	// GoalReached is true when current assets already cover the target.
	GoalReached bool `json:"goalReached"`
}

// RiskScorer turns factors into a risk score in [0,1].
// Implementations must be safe for concurrent use.
type RiskScorer interface {
	// Kind identifies the scorer ("learned", "formula").
	Kind() string

	Score(f RiskFactors) (float64, error)
}

// RiskAssessment is the outcome of risk tolerance estimation.
type RiskAssessment struct {
	RiskScore    float64     `json:"riskScore"`
	RiskLevel    RiskTier    `json:"riskLevel"`
	MLEnhanced   bool        `json:"mlEnhanced"`
	Factors      RiskFactors `json:"factors"`
	TargetAmount float64     `json:"targetAmount"`
	GoalType     GoalType    `json:"goalType"`
}

// DisplayCoverage is the asset coverage shown to users, capped at 1.
func (a *RiskAssessment) DisplayCoverage() float64 {
	return min(1, a.Factors.AssetCoverage)
}

// GoalType is the bucket a free-text goal was classified into.
type GoalType string

const (
	GoalHouse     GoalType = "house"
	GoalCar       GoalType = "car"
	GoalEducation GoalType = "education"
	GoalFreedom   GoalType = "freedom"
	GoalGeneric   GoalType = "generic"
)
