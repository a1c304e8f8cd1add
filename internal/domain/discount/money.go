package discount

import "github.com/shopspring/decimal"

// Cent is the smallest currency unit.
var Cent = decimal.New(1, -2)

// RoundCents rounds an amount to 2 decimal places, half away from zero.
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Sum adds amounts without rounding.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
