package engine

import (
	"math"
)

// AmountSource provides per-100g amounts with a zero default for missing
// facts.
type AmountSource interface {
	Amount(foodID, nutrientID uint) float64
}

// Row carries the derived values for one ledger entry, keyed by nutrient id.
// Values are full precision; rounding happens at the presentation edge.
type Row struct {
	Entry  Entry
	Values map[uint]float64
	Cost   *float64
}

// Result is the output of one aggregation pass.
type Result struct {
	Rows      []Row
	Totals    map[uint]float64
	TotalCost *float64
}

// Aggregate derives per-row scaled values and per-column totals from the
// entries and the resolved amount facts. It is a pure function of its inputs
// and safe to re-run after every mutation. Entries flagged invalid, and any
// non-finite grams, contribute zero.
func Aggregate(entries []Entry, amounts AmountSource, columns []uint) Result {
	result := Result{
		Rows:   make([]Row, 0, len(entries)),
		Totals: make(map[uint]float64, len(columns)),
	}
	for _, nutrientID := range columns {
		result.Totals[nutrientID] = 0
	}

	var costTotal float64
	var costKnown bool

	for _, entry := range entries {
		grams := entry.Grams
		if entry.Invalid || math.IsInf(grams, 0) || math.IsNaN(grams) {
			grams = 0
		}

		row := Row{
			Entry:  entry,
			Values: make(map[uint]float64, len(columns)),
		}
		for _, nutrientID := range columns {
			value := amounts.Amount(entry.FoodID, nutrientID) * grams / 100
			row.Values[nutrientID] = value
			result.Totals[nutrientID] += value
		}

		if entry.PricePer100g != nil {
			cost := *entry.PricePer100g * grams / 100
			row.Cost = &cost
			costTotal += cost
			costKnown = true
		}

		result.Rows = append(result.Rows, row)
	}

	if costKnown {
		result.TotalCost = &costTotal
	}
	return result
}

// Round2 rounds to two decimal digits, half away from zero. Display only;
// threshold comparisons use the unrounded totals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
