// Package allocator distributes a single discount source across the line
// items of an order.
//
// Each source type has one strategy:
//
//	line_item -> Direct        the whole amount on the origin item
//	combo     -> RuleMatched   items sharing the fee's bundle group
//	coupon    -> Proportional  every item by subtotal share
//
// Amounts are rounded to cents at the point they are assigned to an item.
// The rounded allocations may differ from the source amount by up to a cent
// per item touched. That difference is never pushed onto an arbitrary item.
package allocator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/discount-allocator/internal/domain/discount"
)

// Result contains the allocations produced for one source.
type Result struct {
	Allocations []discount.Allocation
	// Unallocated is the amount that could not be placed on any item.
	Unallocated decimal.Decimal
}

// TotalAllocated returns the sum of the allocations.
func (r Result) TotalAllocated() decimal.Decimal {
	total := decimal.Zero
	for _, a := range r.Allocations {
		total = total.Add(a.Amount)
	}
	return total
}

// Strategy allocates one discount source over an order's line items.
type Strategy interface {
	Allocate(src discount.Source, order *discount.OrderSnapshot) Result
}

// ForType returns the strategy responsible for a source type.
func ForType(t discount.SourceType) (Strategy, error) {
	switch t {
	case discount.SourceLineItem:
		return Direct{}, nil
	case discount.SourceCombo:
		return RuleMatched{}, nil
	case discount.SourceCoupon:
		return Proportional{}, nil
	default:
		return nil, fmt.Errorf("no allocation strategy for source type %q", t)
	}
}

// unallocated reports the whole source as unplaced.
func unallocated(src discount.Source) Result {
	return Result{Unallocated: src.Amount}
}
