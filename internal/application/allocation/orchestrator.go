package allocation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/discount-allocator/internal/domain/allocator"
	"github.com/eshaffer321/discount-allocator/internal/domain/classifier"
	"github.com/eshaffer321/discount-allocator/internal/domain/discount"
	"github.com/eshaffer321/discount-allocator/internal/domain/validator"
	"github.com/eshaffer321/discount-allocator/internal/infrastructure/metrics"
)

// Orchestrator coordinates classification, allocation and persistence.
// It holds no state between calls and is safe for concurrent use.
type Orchestrator struct {
	source  OrderSource
	sink    Sink
	metrics *metrics.Registry
	logger  *slog.Logger
	now     func() time.Time
}

// NewOrchestrator creates a new allocation orchestrator. metrics may be nil.
func NewOrchestrator(source OrderSource, sink Sink, reg *metrics.Registry, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		source:  source,
		sink:    sink,
		metrics: reg,
		logger:  logger,
		now:     time.Now,
	}
}

// Process allocates every discount of an order onto its line items and
// persists the result. Re-running for an unchanged order rewrites identical
// records.
func (o *Orchestrator) Process(ctx context.Context, orderID string) (*ProcessingResult, error) {
	order, err := o.source.LoadOrder(ctx, orderID)
	if err != nil {
		o.logger.Error("Failed to load order",
			"order_id", orderID,
			"stage", discount.StageLoad,
			"error", err,
		)
		o.metrics.ObserveOrder(string(discount.ModePrecise), "error")
		return nil, &discount.ProcessingError{OrderID: orderID, Stage: discount.StageLoad, Err: err}
	}

	result := &ProcessingResult{
		OrderID:          orderID,
		TotalAllocated:   decimal.Zero,
		TotalUnallocated: decimal.Zero,
	}

	sources, err := classifier.Classify(order)
	if err != nil {
		var classErr *discount.ClassificationError
		if !errors.As(err, &classErr) {
			return nil, &discount.ProcessingError{OrderID: orderID, Stage: discount.StageClassify, Err: err}
		}
		o.logger.Warn("Classification issues",
			"order_id", orderID,
			"stage", discount.StageClassify,
			"structural", classErr.Structural,
			"issues", classErr.Issues,
		)
		result.ClassificationIssues = classErr.Issues
	}
	sources = prioritize(sources)
	result.Sources = sources

	records := make(map[string]*discount.ItemRecord)
	for _, src := range sources {
		o.metrics.ObserveSource(string(src.Type))

		placed, unplaced := o.allocateSource(orderID, src, order, records)
		result.TotalAllocated = result.TotalAllocated.Add(placed)
		result.TotalUnallocated = result.TotalUnallocated.Add(unplaced)
	}
	result.ItemRecords = orderedRecords(order, records)

	check := validator.ValidateConservation(sources, result.ItemRecords, result.TotalUnallocated)
	if !check.Valid {
		o.logger.Warn("Allocation outside rounding tolerance",
			"order_id", orderID,
			"stage", "validate",
			"difference", check.Difference,
			"tolerance", check.Tolerance,
			"reason", check.Reason,
		)
		o.metrics.ObserveConservationFailure()
	}

	summary := &discount.OrderSummary{
		OrderID:       orderID,
		TotalDiscount: decimal.Zero,
		ComboTotal:    decimal.Zero,
		CouponTotal:   decimal.Zero,
		LineItemTotal: decimal.Zero,
		Sources:       []discount.Source{},
		Mode:          discount.ModePrecise,
		Processed:     true,
		ProcessedAt:   o.now(),
	}
	for _, src := range sources {
		summary.AddSource(src)
	}
	summary.TotalAllocated = result.TotalAllocated
	summary.TotalUnallocated = result.TotalUnallocated
	result.Summary = summary

	if err := o.persist(orderID, result); err != nil {
		o.metrics.ObserveOrder(string(discount.ModePrecise), "error")
		return nil, err
	}

	o.metrics.ObserveOrder(string(discount.ModePrecise), "success")
	o.metrics.ObserveAmounts(result.TotalAllocated, result.TotalUnallocated)

	o.logger.Info("Processed order",
		"order_id", orderID,
		"sources", len(sources),
		"items", len(result.ItemRecords),
		"allocated", result.TotalAllocated,
		"unallocated", result.TotalUnallocated,
	)

	return result, nil
}

// allocateSource runs the strategy for one source and folds its allocations
// into records. It returns the placed and unplaced amounts.
func (o *Orchestrator) allocateSource(
	orderID string,
	src discount.Source,
	order *discount.OrderSnapshot,
	records map[string]*discount.ItemRecord,
) (decimal.Decimal, decimal.Decimal) {
	strategy, err := allocator.ForType(src.Type)
	if err != nil {
		o.logger.Warn("No strategy for source",
			"order_id", orderID,
			"stage", "allocate",
			"source", src.Name,
			"error", err,
		)
		return decimal.Zero, src.Amount
	}

	res := strategy.Allocate(src, order)
	for _, a := range res.Allocations {
		rec, ok := records[a.ItemID]
		if !ok {
			rec = &discount.ItemRecord{OrderID: orderID, ItemID: a.ItemID}
			records[a.ItemID] = rec
		}
		rec.Add(a)
	}

	if res.Unallocated.IsPositive() {
		o.logger.Debug("Source left unallocated",
			"order_id", orderID,
			"source", src.Name,
			"type", src.Type,
			"amount", res.Unallocated,
		)
	}

	return res.TotalAllocated(), res.Unallocated
}

func (o *Orchestrator) persist(orderID string, result *ProcessingResult) error {
	if err := o.sink.WriteItemDiscounts(orderID, result.ItemRecords); err != nil {
		o.logger.Error("Failed to write item discounts",
			"order_id", orderID,
			"stage", discount.StagePersist,
			"error", err,
		)
		return &discount.ProcessingError{
			OrderID: orderID,
			Stage:   discount.StagePersist,
			Err:     fmt.Errorf("%w: item discounts: %w", discount.ErrPersistence, err),
		}
	}

	if err := o.sink.WriteOrderSummary(result.Summary); err != nil {
		o.logger.Error("Failed to write order summary",
			"order_id", orderID,
			"stage", discount.StagePersist,
			"error", err,
		)
		return &discount.ProcessingError{
			OrderID: orderID,
			Stage:   discount.StagePersist,
			Err:     fmt.Errorf("%w: order summary: %w", discount.ErrPersistence, err),
		}
	}

	return nil
}

// prioritize orders sources combo, coupon, line-item while keeping the
// relative order within a type.
func prioritize(sources []discount.Source) []discount.Source {
	sorted := append([]discount.Source(nil), sources...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Type.Priority() < sorted[j].Type.Priority()
	})
	return sorted
}

// orderedRecords returns the records in the order the items appear on the order.
func orderedRecords(order *discount.OrderSnapshot, records map[string]*discount.ItemRecord) []discount.ItemRecord {
	out := make([]discount.ItemRecord, 0, len(records))
	for _, item := range order.Items {
		if rec, ok := records[item.ID]; ok {
			out = append(out, *rec)
		}
	}
	return out
}
