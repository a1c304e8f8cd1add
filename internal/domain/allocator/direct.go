package allocator

import (
	"github.com/shopspring/decimal"

	"github.com/eshaffer321/discount-allocator/internal/domain/discount"
)

// Direct assigns a line-item source entirely to the item it came from.
type Direct struct{}

// Allocate implements Strategy.
func (Direct) Allocate(src discount.Source, order *discount.OrderSnapshot) Result {
	for _, item := range order.Items {
		if item.ID != src.Origin {
			continue
		}
		return Result{
			Allocations: []discount.Allocation{{
				ItemID:     item.ID,
				SourceName: src.Name,
				SourceType: src.Type,
				Amount:     discount.RoundCents(src.Amount),
				Method:     discount.MethodDirect,
			}},
			Unallocated: decimal.Zero,
		}
	}
	return unallocated(src)
}
