package domain

import (
	"errors"
	"math"
	"testing"
)

func TestProfileValidate(t *testing.T) {
	valid := FinancialProfile{Goal: "house", CurrentAsset: 50000, MonthlyIncome: 15000, Age: 30}

	t.Run("Valid", func(t *testing.T) {
		p := valid
		if err := p.Validate(); err != nil {
			t.Errorf("Validate failed: %v", err)
		}
	})

	t.Run("AtMaxAmount", func(t *testing.T) {
		p := valid
		p.CurrentAsset, p.MonthlyIncome = MaxAmount, MaxAmount
		if err := p.Validate(); err != nil {
			t.Errorf("Validate failed: %v", err)
		}
	})

	tests := []struct {
		name   string
		mutate func(p *FinancialProfile)
	}{
		{"NegativeAsset", func(p *FinancialProfile) { p.CurrentAsset = -1 }},
		{"NaNAsset", func(p *FinancialProfile) { p.CurrentAsset = math.NaN() }},
		{"InfIncome", func(p *FinancialProfile) { p.MonthlyIncome = math.Inf(1) }},
		{"HugeAsset", func(p *FinancialProfile) { p.CurrentAsset = 1.7e308 }},
		{"HugeIncome", func(p *FinancialProfile) { p.MonthlyIncome = 1.7e308 }},
		{"AboveMaxIncome", func(p *FinancialProfile) { p.MonthlyIncome = MaxAmount * 10 }},
		{"AgeTooHigh", func(p *FinancialProfile) { p.Age = 200 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			if err := p.Validate(); !errors.Is(err, ErrInvalidProfile) {
				t.Errorf("expected ErrInvalidProfile, got %v", err)
			}
		})
	}
}

func TestRound(t *testing.T) {
	tests := []struct {
		in     float64
		places int32
		want   float64
	}{
		{1.005, 2, 1.01},
		{-1.005, 2, -1.01},
		{4.9350, 1, 4.9},
		{0.0651, 3, 0.065},
	}
	for _, tt := range tests {
		if got := Round(tt.in, tt.places); got != tt.want {
			t.Errorf("Round(%v, %d) = %v, want %v", tt.in, tt.places, got, tt.want)
		}
	}

	t.Run("NonFinite", func(t *testing.T) {
		if got := Round(math.Inf(1), 2); !math.IsInf(got, 1) {
			t.Errorf("Round(+Inf) = %v", got)
		}
		if got := Round(math.Inf(-1), 2); !math.IsInf(got, -1) {
			t.Errorf("Round(-Inf) = %v", got)
		}
		if got := Round(math.NaN(), 2); !math.IsNaN(got) {
			t.Errorf("Round(NaN) = %v", got)
		}
	})
}
