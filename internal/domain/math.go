package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

// SafeFloat converts a provider float into a rate, returning zero for NaN, infinities
// and negative values.
func SafeFloat(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

// PercentChange returns (current - previous) / previous * 100.
// ok is false when either side is zero, since a zero rate means "unresolved".
func PercentChange(current, previous decimal.Decimal) (decimal.Decimal, bool) {
	if previous.IsZero() || current.IsZero() {
		return decimal.Zero, false
	}
	return current.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100)), true
}

// Deltas computes percentage changes for every code resolved in both snapshots.
func Deltas(current RatesSnapshot, previous *RatesSnapshot) map[string]decimal.Decimal {
	deltas := make(map[string]decimal.Decimal)
	if previous == nil {
		return deltas
	}
	for code, cur := range current.Rates {
		if pct, ok := PercentChange(cur, previous.Rate(code)); ok {
			deltas[code] = pct
		}
	}
	return deltas
}
