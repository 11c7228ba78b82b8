package metrics

import (
	"math"
	"testing"

	"github.com/cffa-as/WealthTimeMachine/internal/domain"
	"github.com/cffa-as/WealthTimeMachine/internal/tiers"
)

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestCompute(t *testing.T) {
	table := tiers.Default()

	tests := []struct {
		tier    domain.RiskTier
		sharpe  float64
		sortino float64
		var95   float64
	}{
		{domain.TierLow, 0.6667, 1.1111, 0},
		{domain.TierMedium, 0.5, 0.8333, 0},
		{domain.TierHigh, 0.4, 0.6667, 0},
	}
	// VaR in percent: |−μ + 1.645σ|·100
	for i := range tests {
		cfg := table.MustLookup(tests[i].tier)
		tests[i].var95 = math.Abs(-cfg.ExpectedReturn+1.645*cfg.Volatility) * 100
	}

	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			m := Compute(table.MustLookup(tt.tier))
			if !near(m.Sharpe, tt.sharpe, 1e-3) {
				t.Errorf("Sharpe = %v, want %v", m.Sharpe, tt.sharpe)
			}
			if !near(m.Sortino, tt.sortino, 1e-3) {
				t.Errorf("Sortino = %v, want %v", m.Sortino, tt.sortino)
			}
			if !near(m.VaR95, tt.var95, 1e-9) {
				t.Errorf("VaR95 = %v, want %v", m.VaR95, tt.var95)
			}
			if !near(m.CVaR95, 1.3*m.VaR95, 1e-12) {
				t.Errorf("CVaR95 = %v, want 1.3*VaR95 = %v", m.CVaR95, 1.3*m.VaR95)
			}
		})
	}
}

func TestLowTierReferenceValues(t *testing.T) {
	m := Compute(tiers.Default().MustLookup(domain.TierLow))
	if !near(m.Sharpe, 0.67, 0.005) {
		t.Errorf("Sharpe = %v, want ~0.67", m.Sharpe)
	}
	if !near(m.VaR95, 0.065, 0.001) {
		t.Errorf("VaR95 = %v, want ~0.065", m.VaR95)
	}
}

func TestZeroVolatility(t *testing.T) {
	cfg := domain.RiskTierConfig{ExpectedReturn: 0.04}
	if Sharpe(cfg) != 0 || Sortino(cfg) != 0 {
		t.Errorf("expected zero ratios for zero volatility")
	}
	if got := VaR(cfg, 0.95); !near(got, 4, 1e-9) {
		t.Errorf("VaR = %v, want 4", got)
	}
}

func TestZScore(t *testing.T) {
	if ZScore(0.95) != 1.645 || ZScore(0.99) != 2.326 || ZScore(0.9) != 1.28 {
		t.Error("unexpected z-scores")
	}
	cfg := tiers.Default().MustLookup(domain.TierHigh)
	if VaR(cfg, 0.99) <= VaR(cfg, 0.95) {
		t.Error("99% VaR should exceed 95% VaR")
	}
}

func TestHighTierReferenceValues(t *testing.T) {
	cfg := tiers.Default().MustLookup(domain.TierHigh)
	if cfg.ExpectedReturn != 0.09 {
		t.Fatalf("ExpectedReturn = %v, want 0.09", cfg.ExpectedReturn)
	}

	m := Compute(cfg)
	if !near(m.Sharpe, 0.40, 0.005) {
		t.Errorf("Sharpe = %v, want ~0.40", m.Sharpe)
	}
	if !near(m.VaR95, 15.675, 1e-6) {
		t.Errorf("VaR95 = %v, want ~15.675", m.VaR95)
	}
}
