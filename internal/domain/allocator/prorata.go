package allocator

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/eshaffer321/discount-allocator/internal/domain/discount"
)

// Proportional spreads a coupon over every line item by subtotal share:
//
//	item_allocation = round(amount * item_subtotal / order_subtotal, 2)
//
// Items with a zero subtotal receive nothing. Allocations that round to zero
// are dropped.
type Proportional struct{}

// Allocate implements Strategy.
func (Proportional) Allocate(src discount.Source, order *discount.OrderSnapshot) Result {
	return splitBySubtotal(src, order.Items, discount.MethodProportional)
}

// splitBySubtotal is the pro-rata core shared by the coupon and combo
// strategies. Nothing is allocated when the weight total is zero, and the
// whole amount is reported unallocated when every share rounds away.
func splitBySubtotal(src discount.Source, items []discount.LineItem, method discount.Method) Result {
	weighted := lo.Filter(items, func(item discount.LineItem, _ int) bool {
		return item.Subtotal.IsPositive()
	})

	// Step 1: Sum subtotals
	totalSubtotal := decimal.Zero
	for _, item := range weighted {
		totalSubtotal = totalSubtotal.Add(item.Subtotal)
	}
	if totalSubtotal.IsZero() {
		return unallocated(src)
	}

	// Step 2: Allocate each share, rounding per item
	allocations := make([]discount.Allocation, 0, len(weighted))
	for _, item := range weighted {
		share := discount.RoundCents(src.Amount.Mul(item.Subtotal).Div(totalSubtotal))
		if share.LessThan(discount.Cent) {
			continue
		}
		allocations = append(allocations, discount.Allocation{
			ItemID:     item.ID,
			SourceName: src.Name,
			SourceType: src.Type,
			Amount:     share,
			Method:     method,
		})
	}

	if len(allocations) == 0 {
		return unallocated(src)
	}
	return Result{Allocations: allocations, Unallocated: decimal.Zero}
}
