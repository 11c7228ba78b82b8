package rationale

import "github.com/cffa-as/WealthTimeMachine/internal/domain"

// DefaultClauses returns the built-in clause set. Within a group the lowest
// priority matching clause wins, so catch-all clauses carry the highest number.
func DefaultClauses() []*domain.RationaleClause {
	return []*domain.RationaleClause{
		{
			ID: "coverage-strong", Group: domain.GroupAssetCoverage, Priority: 10, Enabled: true,
			Condition: "asset_coverage_pct > 50.0",
			Template:  `you have already reached {{printf "%.0f" .asset_coverage_pct}}% of your goal, a solid foundation`,
		},
		{
			ID: "coverage-weak", Group: domain.GroupAssetCoverage, Priority: 20, Enabled: true,
			Condition: "asset_coverage_pct < 20.0",
			Template:  "your current asset base is still small, so start steadily and build up over time",
		},
		{
			ID: "coverage-moderate", Group: domain.GroupAssetCoverage, Priority: 90, Enabled: true,
			Condition: "true",
			Template:  `you have already reached {{printf "%.0f" .asset_coverage_pct}}% of your goal, a reasonable start`,
		},
		{
			ID: "pressure-high", Group: domain.GroupTimePressure, Priority: 10, Enabled: true,
			Condition: "time_pressure_pct > 70.0",
			Template:  "the timeline is tight, so higher returns are needed to speed up progress",
		},
		{
			ID: "pressure-low", Group: domain.GroupTimePressure, Priority: 20, Enabled: true,
			Condition: "time_pressure_pct < 30.0",
			Template:  "the timeline is comfortable, so you can ride out some market volatility",
		},
		{
			ID: "pressure-moderate", Group: domain.GroupTimePressure, Priority: 90, Enabled: true,
			Condition: "true",
			Template:  "the timeline is moderate, leaving room to balance risk against return",
		},
		{
			ID: "age-young", Group: domain.GroupAge, Priority: 10, Enabled: true,
			Condition: "age_factor > 0.8",
			Template:  "you are young enough to weather market swings in pursuit of higher returns",
		},
		{
			ID: "age-senior", Group: domain.GroupAge, Priority: 20, Enabled: true,
			Condition: "age_factor < 0.5",
			Template:  "given your age, a steadier strategy that protects existing assets is advisable",
		},
		{
			ID: "income-stable", Group: domain.GroupIncomeStability, Priority: 10, Enabled: true,
			Condition: "income_stability > 0.7",
			Template:  "your income is fairly stable, which supports a higher risk capacity",
		},
		{
			ID: "income-unstable", Group: domain.GroupIncomeStability, Priority: 20, Enabled: true,
			Condition: "income_stability < 0.5",
			Template:  "given your income stability, a more conservative strategy is advisable",
		},
	}
}
