// Package montecarlo projects terminal wealth by simulating monthly returns.
package montecarlo

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/cffa-as/WealthTimeMachine/internal/domain"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultTrials is the number of simulated paths when Params.Trials is 0.
const DefaultTrials = 10000

// ctxCheckEvery is how many trials run between cancellation checks.
const ctxCheckEvery = 256

// Params describes one simulation.
type Params struct {
	CurrentAsset     float64
	MonthlySave      float64
	AnnualReturn     float64
	AnnualVolatility float64
	Months           int
	Trials           int

	// Target is used for SuccessProbability; zero disables it.
	Target float64
}

// Simulate draws Trials independent paths of
//
//	asset = asset·(1 + N(r/12, σ/√12)) + save
//
// for Months steps and summarizes the sorted terminal values. The generator is
// unseeded, so results vary between calls within sampling error.
func Simulate(ctx context.Context, p Params) (domain.SimulationResult, error) {
	trials := p.Trials
	if trials <= 0 {
		trials = DefaultTrials
	}
	if p.Months < 0 {
		return domain.SimulationResult{}, fmt.Errorf("months must be >= 0, got %d", p.Months)
	}

	monthly := distuv.Normal{
		Mu:    p.AnnualReturn / 12,
		Sigma: p.AnnualVolatility / math.Sqrt(12),
	}

	finals := make([]float64, trials)
	for i := range finals {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return domain.SimulationResult{}, fmt.Errorf("simulation aborted: %w", err)
			}
		}

		asset := p.CurrentAsset
		for m := 0; m < p.Months; m++ {
			asset = asset*(1+monthly.Rand()) + p.MonthlySave
		}
		finals[i] = asset
	}

	slices.Sort(finals)

	res := domain.SimulationResult{
		Trials:        trials,
		ExpectedValue: stat.Mean(finals, nil),
		Median:        finals[trials/2],
		P5:            finals[int(float64(trials)*0.05)],
		P95:           finals[int(float64(trials)*0.95)],
	}

	if p.Target > 0 {
		// finals is sorted: everything from the first value >= target succeeds.
		idx, _ := slices.BinarySearch(finals, p.Target)
		res.SuccessProbability = float64(trials-idx) / float64(trials)
	}

	return res, nil
}
