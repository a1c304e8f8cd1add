// Package allocation runs the live discount allocation for a single order:
// classify, allocate every source in priority order, validate conservation
// and persist the per-item records and the order summary.
package allocation

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/discount-allocator/internal/domain/discount"
)

// OrderSource provides read-only order snapshots
type OrderSource interface {
	LoadOrder(ctx context.Context, orderID string) (*discount.OrderSnapshot, error)
}

// Sink persists allocation results
type Sink interface {
	WriteItemDiscounts(orderID string, records []discount.ItemRecord) error
	WriteOrderSummary(summary *discount.OrderSummary) error
}

// ProcessingResult contains the outcome of processing one order
type ProcessingResult struct {
	OrderID          string
	Sources          []discount.Source
	ItemRecords      []discount.ItemRecord
	TotalAllocated   decimal.Decimal
	TotalUnallocated decimal.Decimal
	Summary          *discount.OrderSummary

	// ClassificationIssues lists malformed entries skipped during classification
	ClassificationIssues []string
}
