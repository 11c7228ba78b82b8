package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round rounds v half away from zero to places decimals. NaN and ±Inf are
// returned unchanged.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}
