// Package planner orchestrates the decision engine into per-tier recommendations.
package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/cffa-as/WealthTimeMachine/internal/allocation"
	"github.com/cffa-as/WealthTimeMachine/internal/domain"
	"github.com/cffa-as/WealthTimeMachine/internal/metrics"
	"github.com/cffa-as/WealthTimeMachine/internal/montecarlo"
	"github.com/cffa-as/WealthTimeMachine/internal/rationale"
	"github.com/cffa-as/WealthTimeMachine/internal/risk"
	"github.com/cffa-as/WealthTimeMachine/internal/savings"
	"github.com/cffa-as/WealthTimeMachine/internal/tiers"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("wealthtm-planner")

// Engine produces recommendation sets. It holds only read-only collaborators
// and is safe for concurrent use.
type Engine struct {
	tiers     *tiers.Table
	estimator *risk.Estimator
	composer  *rationale.Composer
	trials    int
}

// NewEngine creates a planning engine. trials <= 0 uses montecarlo.DefaultTrials.
func NewEngine(table *tiers.Table, estimator *risk.Estimator, composer *rationale.Composer, trials int) *Engine {
	if trials <= 0 {
		trials = montecarlo.DefaultTrials
	}
	return &Engine{
		tiers:     table,
		estimator: estimator,
		composer:  composer,
		trials:    trials,
	}
}

// Tiers returns the tier table the engine plans against.
func (e *Engine) Tiers() *tiers.Table {
	return e.tiers
}

// Assess validates the profile and returns its risk assessment.
func (e *Engine) Assess(profile domain.FinancialProfile) (domain.RiskAssessment, error) {
	profile.Normalize()
	if err := profile.Validate(); err != nil {
		return domain.RiskAssessment{}, err
	}
	return e.estimator.Assess(profile.CurrentAsset, profile.MonthlyIncome, profile.Goal, profile.Age), nil
}

// Recommend runs the full pipeline: target, assessment, then one
// recommendation per tier. Tiers are computed concurrently.
func (e *Engine) Recommend(ctx context.Context, profile domain.FinancialProfile) (*domain.RecommendationSet, error) {
	start := time.Now()

	profile.Normalize()
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "planner.Recommend",
		trace.WithAttributes(attribute.Int("profile.age", profile.Age)),
	)
	defer span.End()

	assessment := e.estimator.Assess(profile.CurrentAsset, profile.MonthlyIncome, profile.Goal, profile.Age)
	span.SetAttributes(
		attribute.String("goal.type", string(assessment.GoalType)),
		attribute.String("risk.level", string(assessment.RiskLevel)),
		attribute.Bool("risk.ml_enhanced", assessment.MLEnhanced),
	)

	recs := make([]*domain.Recommendation, len(domain.AllTiers))
	g, gctx := errgroup.WithContext(ctx)
	for i, tier := range domain.AllTiers {
		g.Go(func() error {
			rec, err := e.RecommendTier(gctx, tier, profile, assessment)
			if err != nil {
				return fmt.Errorf("tier %s: %w", tier, err)
			}
			recs[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	set := &domain.RecommendationSet{
		ID:              uuid.New().String(),
		Profile:         profile,
		RecommendedRisk: assessment.RiskLevel,
		Assessment:      assessment,
		Recommendations: make(map[domain.RiskTier]*domain.Recommendation, len(recs)),
		CreatedAt:       time.Now().UTC(),
	}
	for _, rec := range recs {
		set.Recommendations[rec.Tier] = rec
	}
	set.ProcessMs = time.Since(start).Milliseconds()

	return set, nil
}

// RecommendTier builds the recommendation for a single tier from an existing
// assessment. The assessment is shared across tiers unchanged.
func (e *Engine) RecommendTier(ctx context.Context, tier domain.RiskTier, profile domain.FinancialProfile, assessment domain.RiskAssessment) (*domain.Recommendation, error) {
	ctx, span := tracer.Start(ctx, "planner.RecommendTier",
		trace.WithAttributes(attribute.String("tier", string(tier))),
	)
	defer span.End()

	cfg := e.tiers.MustLookup(tier)
	target := assessment.TargetAmount

	plan := savings.Optimize(profile.CurrentAsset, profile.MonthlyIncome, target, cfg, nil)

	sim, err := montecarlo.Simulate(ctx, montecarlo.Params{
		CurrentAsset:     profile.CurrentAsset,
		MonthlySave:      domain.Round(plan.MonthlySave, 2),
		AnnualReturn:     cfg.ExpectedReturn,
		AnnualVolatility: cfg.Volatility,
		Months:           plan.TargetMonths,
		Trials:           e.trials,
		Target:           target,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return &domain.Recommendation{
		Tier:         tier,
		TierConfig:   cfg,
		Reason:       e.composer.Compose(tier, assessment),
		TargetAmount: target,
		Plan:         plan,
		Metrics:      metrics.Compute(cfg),
		Simulation:   sim,
		Allocation:   allocation.Optimize(cfg, profile.CurrentAsset, target, plan.TargetMonths),
		Assessment:   assessment,
	}, nil
}
