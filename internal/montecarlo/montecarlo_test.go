package montecarlo

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestSimulateOrdering(t *testing.T) {
	tests := []struct {
		name string
		p    Params
	}{
		{"low tier", Params{CurrentAsset: 50000, MonthlySave: 4500, AnnualReturn: 0.05, AnnualVolatility: 0.03, Months: 120, Trials: 500}},
		{"high tier", Params{CurrentAsset: 50000, MonthlySave: 4500, AnnualReturn: 0.09, AnnualVolatility: 0.15, Months: 120, Trials: 500}},
		{"minimum trials", Params{CurrentAsset: 1000, MonthlySave: 100, AnnualReturn: 0.07, AnnualVolatility: 0.08, Months: 24, Trials: 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Simulate(context.Background(), tt.p)
			if err != nil {
				t.Fatalf("Simulate failed: %v", err)
			}
			if !(res.P5 <= res.Median && res.Median <= res.P95) {
				t.Errorf("expected p5 <= median <= p95, got %v %v %v", res.P5, res.Median, res.P95)
			}
			if res.Trials != tt.p.Trials {
				t.Errorf("Trials = %d, want %d", res.Trials, tt.p.Trials)
			}
		})
	}
}

func TestSimulateDeterministicPaths(t *testing.T) {
	t.Run("zero months", func(t *testing.T) {
		res, err := Simulate(context.Background(), Params{CurrentAsset: 1234, MonthlySave: 99, AnnualReturn: 0.1, AnnualVolatility: 0.2, Trials: 100})
		if err != nil {
			t.Fatal(err)
		}
		if res.Median != 1234 || res.P5 != 1234 || res.P95 != 1234 || res.ExpectedValue != 1234 {
			t.Errorf("expected all values 1234, got %+v", res)
		}
	})

	t.Run("zero volatility", func(t *testing.T) {
		r := 0.06 / 12
		want := 10000.0
		for i := 0; i < 12; i++ {
			want = want*(1+r) + 500
		}
		res, err := Simulate(context.Background(), Params{CurrentAsset: 10000, MonthlySave: 500, AnnualReturn: 0.06, Months: 12, Trials: 200, Target: want - 1})
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(res.Median-want) > 1e-6 || math.Abs(res.P5-want) > 1e-6 {
			t.Errorf("median = %v, want %v", res.Median, want)
		}
		if res.SuccessProbability != 1 {
			t.Errorf("SuccessProbability = %v, want 1", res.SuccessProbability)
		}
	})
}

func TestSimulateTolerance(t *testing.T) {
	p := Params{CurrentAsset: 50000, MonthlySave: 4500, AnnualReturn: 0.07, AnnualVolatility: 0.08, Months: 180, Trials: 4000}

	// Expected value of the recursion equals the deterministic compounding path.
	r := p.AnnualReturn / 12
	mean := p.CurrentAsset
	for i := 0; i < p.Months; i++ {
		mean = mean*(1+r) + p.MonthlySave
	}

	a, err := Simulate(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Simulate(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}

	if math.Abs(a.ExpectedValue-mean)/mean > 0.02 {
		t.Errorf("ExpectedValue = %v, want within 2%% of %v", a.ExpectedValue, mean)
	}
	if math.Abs(a.Median-b.Median)/a.Median > 0.05 {
		t.Errorf("medians of repeated runs differ by more than 5%%: %v vs %v", a.Median, b.Median)
	}
}

func TestSimulateDefaultsAndErrors(t *testing.T) {
	res, err := Simulate(context.Background(), Params{CurrentAsset: 1, Months: 1})
	if err != nil {
		t.Fatal(err)
	}
	if res.Trials != DefaultTrials {
		t.Errorf("Trials = %d, want %d", res.Trials, DefaultTrials)
	}

	if _, err := Simulate(context.Background(), Params{Months: -1}); err == nil {
		t.Error("expected error for negative months")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Simulate(ctx, Params{CurrentAsset: 1, Months: 12, Trials: 1000}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
