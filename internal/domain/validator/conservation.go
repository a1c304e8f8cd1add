// Package validator checks that an allocation run did not create or lose money.
//
// For every order:
//
//	sum(item discount totals) + unallocated ≈ sum(source amounts)
//
// within a tolerance of one cent per discount source, the slack accepted from
// rounding each item independently.
package validator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/discount-allocator/internal/domain/discount"
)

// Conservation contains the result of checking one order's allocations.
type Conservation struct {
	// Valid is true if allocated and unallocated amounts account for every source
	Valid bool

	// SourceTotal is the sum of all source amounts
	SourceTotal decimal.Decimal

	// ItemTotal is the sum of the per-item discount totals
	ItemTotal decimal.Decimal

	// Unallocated is the amount no item carries
	Unallocated decimal.Decimal

	// Difference is SourceTotal - (ItemTotal + Unallocated)
	Difference decimal.Decimal

	// Tolerance is the allowed absolute difference
	Tolerance decimal.Decimal

	// Reason explains why validation failed (empty if valid)
	Reason string
}

// ValidateConservation checks item records against the classified sources.
func ValidateConservation(sources []discount.Source, records []discount.ItemRecord, unallocated decimal.Decimal) *Conservation {
	sourceTotal := decimal.Zero
	for _, s := range sources {
		sourceTotal = sourceTotal.Add(s.Amount)
	}

	itemTotal := decimal.Zero
	for _, r := range records {
		itemTotal = itemTotal.Add(r.Total)
	}

	diff := sourceTotal.Sub(itemTotal).Sub(unallocated)
	tolerance := discount.Cent.Mul(decimal.NewFromInt(int64(len(sources))))

	result := &Conservation{
		Valid:       diff.Abs().LessThanOrEqual(tolerance),
		SourceTotal: sourceTotal,
		ItemTotal:   itemTotal,
		Unallocated: unallocated,
		Difference:  diff,
		Tolerance:   tolerance,
	}
	if result.Valid {
		return result
	}

	if diff.IsPositive() {
		result.Reason = fmt.Sprintf("items carry %s less than the sources (%s) after accounting for %s unallocated",
			diff.StringFixed(2), sourceTotal.StringFixed(2), unallocated.StringFixed(2))
	} else {
		result.Reason = fmt.Sprintf("items carry %s more than the sources (%s), over-allocated",
			diff.Neg().StringFixed(2), sourceTotal.StringFixed(2))
	}
	return result
}
