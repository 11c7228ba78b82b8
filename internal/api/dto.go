package api

import (
	"github.com/cffa-as/WealthTimeMachine/internal/domain"
)

// RecommendRequest is the request body for POST /api/planning/recommend
// and POST /api/planning/assess.
type RecommendRequest struct {
	Goal          string  `json:"goal"`
	CurrentAsset  float64 `json:"currentAsset"`
	MonthlyIncome float64 `json:"monthlyIncome"`
	Age           int     `json:"age,omitempty"`
}

func (r RecommendRequest) profile() domain.FinancialProfile {
	return domain.FinancialProfile{
		Goal:          r.Goal,
		CurrentAsset:  r.CurrentAsset,
		MonthlyIncome: r.MonthlyIncome,
		Age:           r.Age,
	}
}

// RecommendResponse is the response for a computed plan.
type RecommendResponse struct {
	Success         bool                         `json:"success"`
	PlanID          string                       `json:"planId"`
	RecommendedRisk domain.RiskTier              `json:"recommendedRisk"`
	GoalType        domain.GoalType              `json:"goalType"`
	Recommendations map[domain.RiskTier]TierPlan `json:"recommendations"`
	Message         string                       `json:"message"`
	ProcessMs       int64                        `json:"processMs"`
}

// TierPlan is the display form of one tier's recommendation.
// Money is rounded to 2 decimals, percentages to 1, weights to 3.
type TierPlan struct {
	RecommendedRisk      domain.RiskTier    `json:"recommendedRisk"`
	PlanStyle            string             `json:"planStyle"`
	Reason               string             `json:"reason"`
	MonthlySave          float64            `json:"monthlySave"`
	SavingsRate          float64            `json:"savingsRate"`
	ExpectedReturn       float64            `json:"expectedReturn"`
	TargetMonths         int                `json:"targetMonths"`
	TargetAmount         float64            `json:"targetAmount"`
	ExpectedFinalAmount  float64            `json:"expectedFinalAmount"`
	SharpeRatio          float64            `json:"sharpeRatio"`
	SortinoRatio         float64            `json:"sortinoRatio"`
	VaR95                float64            `json:"var95"`
	CVaR95               float64            `json:"cvar95"`
	Volatility           float64            `json:"volatility"`
	MaxDrawdown          float64            `json:"maxDrawdown"`
	AssetAllocation      domain.Allocation  `json:"assetAllocation"`
	MonteCarloSimulation SimulationView     `json:"monteCarloSimulation"`
	RiskScore            float64            `json:"riskScore"`
	MLEnhanced           bool               `json:"mlEnhanced"`
	RiskFactors          map[string]float64 `json:"riskFactors"`
}

// SimulationView is the display form of a Monte Carlo result.
type SimulationView struct {
	ExpectedValue        float64    `json:"expectedValue"`
	Median               float64    `json:"median"`
	ConfidenceInterval5  float64    `json:"confidenceInterval5"`
	ConfidenceInterval95 float64    `json:"confidenceInterval95"`
	ConfidenceInterval   [2]float64 `json:"confidenceInterval"`
	SuccessProbability   float64    `json:"successProbability"`
}

// AssessResponse is the response for POST /api/planning/assess.
type AssessResponse struct {
	RiskScore    float64            `json:"riskScore"`
	RiskLevel    domain.RiskTier    `json:"riskLevel"`
	MLEnhanced   bool               `json:"mlEnhanced"`
	GoalType     domain.GoalType    `json:"goalType"`
	TargetAmount float64            `json:"targetAmount"`
	RiskFactors  map[string]float64 `json:"riskFactors"`
}

// PlanStatusResponse reports a plan that is not ready.
type PlanStatusResponse struct {
	PlanID string            `json:"planId"`
	Status domain.PlanStatus `json:"status"`
	Error  string            `json:"error,omitempty"`
}

// TierView is the display form of a risk tier's assumptions.
type TierView struct {
	Tier           domain.RiskTier   `json:"tier"`
	PlanStyle      string            `json:"planStyle"`
	ExpectedReturn float64           `json:"expectedReturn"`
	Volatility     float64           `json:"volatility"`
	MaxDrawdown    float64           `json:"maxDrawdown"`
	BaseAllocation domain.Allocation `json:"baseAllocation"`
}

const recommendMessage = "Recommendation computed: three plans returned"

func pct(v float64) float64 { return domain.Round(v*100, 1) }

func money(v float64) float64 { return domain.Round(v, 2) }

func riskFactorsView(a domain.RiskAssessment) map[string]float64 {
	return map[string]float64{
		"asset_coverage":   domain.Round(a.DisplayCoverage(), 2),
		"time_pressure":    domain.Round(a.Factors.TimePressure, 2),
		"age_factor":       domain.Round(a.Factors.AgeFactor, 2),
		"income_stability": domain.Round(a.Factors.IncomeStability, 2),
	}
}

func allocationView(a domain.Allocation) domain.Allocation {
	return domain.Allocation{
		Stocks: domain.Round(a.Stocks, 3),
		Bonds:  domain.Round(a.Bonds, 3),
		Cash:   domain.Round(a.Cash, 3),
	}
}

func simulationView(s domain.SimulationResult) SimulationView {
	p5, p95 := money(s.P5), money(s.P95)
	return SimulationView{
		ExpectedValue:        money(s.ExpectedValue),
		Median:               money(s.Median),
		ConfidenceInterval5:  p5,
		ConfidenceInterval95: p95,
		ConfidenceInterval:   [2]float64{p5, p95},
		SuccessProbability:   domain.Round(s.SuccessProbability, 3),
	}
}

func tierPlanView(rec *domain.Recommendation) TierPlan {
	// CVaR is derived from the displayed VaR so the two stay consistent.
	var95 := money(rec.Metrics.VaR95)

	return TierPlan{
		RecommendedRisk:      rec.Tier,
		PlanStyle:            rec.Tier.DisplayName(),
		Reason:               rec.Reason,
		MonthlySave:          money(rec.Plan.MonthlySave),
		SavingsRate:          domain.Round(rec.Plan.SavingsRate, 2),
		ExpectedReturn:       pct(rec.TierConfig.ExpectedReturn),
		TargetMonths:         rec.Plan.TargetMonths,
		TargetAmount:         money(rec.TargetAmount),
		ExpectedFinalAmount:  money(rec.Plan.ExpectedFinalAmount),
		SharpeRatio:          money(rec.Metrics.Sharpe),
		SortinoRatio:         money(rec.Metrics.Sortino),
		VaR95:                var95,
		CVaR95:               money(var95 * 1.3),
		Volatility:           pct(rec.TierConfig.Volatility),
		MaxDrawdown:          pct(rec.TierConfig.MaxDrawdown),
		AssetAllocation:      allocationView(rec.Allocation),
		MonteCarloSimulation: simulationView(rec.Simulation),
		RiskScore:            money(rec.Assessment.RiskScore),
		MLEnhanced:           rec.Assessment.MLEnhanced,
		RiskFactors:          riskFactorsView(rec.Assessment),
	}
}

func recommendView(set *domain.RecommendationSet) RecommendResponse {
	recs := make(map[domain.RiskTier]TierPlan, len(set.Recommendations))
	for tier, rec := range set.Recommendations {
		recs[tier] = tierPlanView(rec)
	}
	return RecommendResponse{
		Success:         true,
		PlanID:          set.ID,
		RecommendedRisk: set.RecommendedRisk,
		GoalType:        set.Assessment.GoalType,
		Recommendations: recs,
		Message:         recommendMessage,
		ProcessMs:       set.ProcessMs,
	}
}

func assessView(a domain.RiskAssessment) AssessResponse {
	return AssessResponse{
		RiskScore:    money(a.RiskScore),
		RiskLevel:    a.RiskLevel,
		MLEnhanced:   a.MLEnhanced,
		GoalType:     a.GoalType,
		TargetAmount: money(a.TargetAmount),
		RiskFactors:  riskFactorsView(a),
	}
}

func tierView(c domain.RiskTierConfig) TierView {
	return TierView{
		Tier:           c.Tier,
		PlanStyle:      c.Tier.DisplayName(),
		ExpectedReturn: pct(c.ExpectedReturn),
		Volatility:     pct(c.Volatility),
		MaxDrawdown:    pct(c.MaxDrawdown),
		BaseAllocation: allocationView(c.BaseAllocation),
	}
}
