package tiers

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/cffa-as/WealthTimeMachine/internal/domain"
)

func TestDefault(t *testing.T) {
	table := Default()

	tests := []struct {
		tier     domain.RiskTier
		ret, vol float64
		stocks   float64
	}{
		{domain.TierLow, 0.05, 0.03, 0.20},
		{domain.TierMedium, 0.07, 0.08, 0.40},
		{domain.TierHigh, 0.09, 0.15, 0.60},
	}
	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			c, err := table.Lookup(tt.tier)
			if err != nil {
				t.Fatalf("Lookup failed: %v", err)
			}
			if c.ExpectedReturn != tt.ret || c.Volatility != tt.vol {
				t.Errorf("got return=%v vol=%v, want %v %v", c.ExpectedReturn, c.Volatility, tt.ret, tt.vol)
			}
			if c.BaseAllocation.Stocks != tt.stocks {
				t.Errorf("stocks = %v, want %v", c.BaseAllocation.Stocks, tt.stocks)
			}
			if math.Abs(c.BaseAllocation.Sum()-1) > 1e-9 {
				t.Errorf("allocation sum = %v", c.BaseAllocation.Sum())
			}
		})
	}

	all := table.All()
	if len(all) != 3 || all[0].Tier != domain.TierLow || all[2].Tier != domain.TierHigh {
		t.Errorf("All() order wrong: %+v", all)
	}
}

func TestLookupUnknown(t *testing.T) {
	table := Default()
	_, err := table.Lookup("extreme")
	if !errors.Is(err, ErrUnknownTier) {
		t.Fatalf("expected ErrUnknownTier, got %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Error("MustLookup should panic on unknown tier")
		}
	}()
	table.MustLookup("extreme")
}

func TestNewValidation(t *testing.T) {
	base := Defaults()

	t.Run("missing tier", func(t *testing.T) {
		if _, err := New(base[:2]); err == nil {
			t.Error("expected error for missing tier")
		}
	})

	t.Run("bad allocation", func(t *testing.T) {
		cfgs := Defaults()
		cfgs[1].BaseAllocation.Cash = 0.5
		if _, err := New(cfgs); err == nil {
			t.Error("expected error for allocation not summing to 1")
		}
	})

	t.Run("duplicate", func(t *testing.T) {
		cfgs := append(Defaults(), base[0])
		if _, err := New(cfgs); err == nil {
			t.Error("expected error for duplicate tier")
		}
	})
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiers.yaml")
	content := `tiers:
  - tier: low
    expected_return: 0.04
    volatility: 0.02
    max_drawdown: 0.05
    base_allocation: {stocks: 0.1, bonds: 0.8, cash: 0.1}
  - tier: medium
    expected_return: 0.07
    volatility: 0.08
    max_drawdown: 0.15
    base_allocation: {stocks: 0.4, bonds: 0.5, cash: 0.1}
  - tier: high
    expected_return: 0.09
    volatility: 0.15
    max_drawdown: 0.30
    base_allocation: {stocks: 0.6, bonds: 0.3, cash: 0.1}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	table, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if got := table.MustLookup(domain.TierLow).ExpectedReturn; got != 0.04 {
		t.Errorf("low return = %v, want 0.04", got)
	}
}
