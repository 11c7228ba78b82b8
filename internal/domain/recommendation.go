package domain

import "time"

// MaxPlanMonths caps the savings horizon search.
const MaxPlanMonths = 600

// SavingsPlan is the output of the savings optimizer.
type SavingsPlan struct {
	MonthlySave         float64 `json:"monthlySave"`
	SavingsRate         float64 `json:"savingsRate"`
	TargetMonths        int     `json:"targetMonths"`
	ExpectedFinalAmount float64 `json:"expectedFinalAmount"`
}

// PerformanceMetrics are risk-adjusted return measures for a tier.
// VaR and CVaR are expressed in percent.
type PerformanceMetrics struct {
	Sharpe  float64 `json:"sharpeRatio"`
	Sortino float64 `json:"sortinoRatio"`
	VaR95   float64 `json:"var95"`
	CVaR95  float64 `json:"cvar95"`
}

// SimulationResult summarizes a Monte Carlo terminal wealth distribution.
type SimulationResult struct {
	Trials             int     `json:"trials"`
	ExpectedValue      float64 `json:"expectedValue"`
	Median             float64 `json:"median"`
	P5                 float64 `json:"p5"`
	P95                float64 `json:"p95"`
	SuccessProbability float64 `json:"successProbability"`
}

// Recommendation is the plan produced for a single tier.
type Recommendation struct {
	Tier         RiskTier           `json:"tier"`
	TierConfig   RiskTierConfig     `json:"tierConfig"`
	Reason       string             `json:"reason"`
	TargetAmount float64            `json:"targetAmount"`
	Plan         SavingsPlan        `json:"plan"`
	Metrics      PerformanceMetrics `json:"metrics"`
	Simulation   SimulationResult   `json:"simulation"`
	Allocation   Allocation         `json:"allocation"`

	// Assessment is the shared profile assessment. It is identical across tiers.
	Assessment RiskAssessment `json:"assessment"`
}

// RecommendationSet is the full engine output: one Recommendation per tier
// plus the primary pick derived from the assessment.
type RecommendationSet struct {
	ID              string                       `json:"id"`
	Profile         FinancialProfile             `json:"profile"`
	RecommendedRisk RiskTier                     `json:"recommendedRisk"`
	Assessment      RiskAssessment               `json:"assessment"`
	Recommendations map[RiskTier]*Recommendation `json:"recommendations"`
	CreatedAt       time.Time                    `json:"createdAt"`
	ProcessMs       int64                        `json:"processMs"`
}
