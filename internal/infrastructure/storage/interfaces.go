package storage

import (
	"context"
	"time"

	"github.com/eshaffer321/discount-allocator/internal/domain/discount"
)

// Repository defines the complete storage interface.
// This interface allows swapping implementations (SQLite, PostgreSQL, etc.)
// and makes testing with mocks straightforward.
type Repository interface {
	OrderRepository
	DiscountRepository
	BackfillRunRepository
	Ping() error
	Close() error
}

// OrderRepository holds snapshots mirrored from the host commerce system.
type OrderRepository interface {
	// SaveOrder inserts or replaces an order snapshot
	SaveOrder(order *discount.OrderSnapshot) error

	// LoadOrder returns a snapshot or an error wrapping discount.ErrOrderNotFound
	LoadOrder(ctx context.Context, orderID string) (*discount.OrderSnapshot, error)
}

// DiscountRepository persists allocation results.
type DiscountRepository interface {
	// WriteItemDiscounts replaces every item record of the order with records
	WriteItemDiscounts(orderID string, records []discount.ItemRecord) error

	// WriteOrderSummary upserts the order summary (last write wins)
	WriteOrderSummary(summary *discount.OrderSummary) error

	// HasSummary reports whether the order has a processed summary
	HasSummary(orderID string) (bool, error)

	// GetOrderSummary returns the summary or nil if the order was never processed
	GetOrderSummary(orderID string) (*discount.OrderSummary, error)

	// GetItemDiscounts returns the item records of an order ordered by item id
	GetItemDiscounts(orderID string) ([]discount.ItemRecord, error)

	// ListUnprocessedOrders returns ids of orders created before cutoff with one
	// of the given statuses, no processed summary and no recorded back-fill
	// failure, newest first
	ListUnprocessedOrders(cutoff time.Time, statuses []string, limit int) ([]string, error)

	// CountUnprocessedOrders counts the orders ListUnprocessedOrders would page through
	CountUnprocessedOrders(cutoff time.Time, statuses []string) (int, error)
}

// BackfillRunRepository handles back-fill batch tracking
type BackfillRunRepository interface {
	// StartBackfillRun records the start of a batch and returns the run ID
	StartBackfillRun(label string, cutoff time.Time, pageSize int) (int64, error)

	// CompleteBackfillRun records the outcome of a batch
	CompleteBackfillRun(runID int64, selected, migrated, errored, remaining int) error

	// ListBackfillRuns returns recent runs, newest first
	ListBackfillRuns(limit int) ([]BackfillRun, error)

	// GetBackfillRun retrieves a run by ID, nil if absent
	GetBackfillRun(runID int64) (*BackfillRun, error)

	// RecordBackfillFailure parks an order so later batches skip it
	RecordBackfillFailure(orderID, message string) error

	// CountBackfillFailures counts parked orders that are still unprocessed
	CountBackfillFailures() (int, error)

	// ClearBackfillFailures makes every parked order eligible again
	ClearBackfillFailures() (int, error)
}
