package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cffa-as/WealthTimeMachine/internal/domain"
)

// Seed stores the given defaults for any configuration table that is empty,
// then returns what the repository holds. Existing rows are never overwritten.
func Seed(ctx context.Context, repo domain.Repository, tiers []domain.RiskTierConfig, clauses []*domain.RationaleClause) ([]*domain.RiskTierConfig, []*domain.RationaleClause, error) {
	storedTiers, err := repo.ListRiskTiers(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list risk tiers: %w", err)
	}
	if len(storedTiers) == 0 {
		for i := range tiers {
			if err := repo.SaveRiskTier(ctx, &tiers[i]); err != nil {
				return nil, nil, fmt.Errorf("failed to seed tier %s: %w", tiers[i].Tier, err)
			}
		}
		slog.Info("seeded risk tiers", "count", len(tiers))
		if storedTiers, err = repo.ListRiskTiers(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to list risk tiers: %w", err)
		}
	}

	storedClauses, err := repo.ListClauses(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list rationale clauses: %w", err)
	}
	if len(storedClauses) == 0 {
		for _, c := range clauses {
			if err := repo.SaveClause(ctx, c); err != nil {
				return nil, nil, fmt.Errorf("failed to seed clause %s: %w", c.ID, err)
			}
		}
		slog.Info("seeded rationale clauses", "count", len(clauses))
		if storedClauses, err = repo.ListClauses(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to list rationale clauses: %w", err)
		}
	}

	return storedTiers, storedClauses, nil
}
