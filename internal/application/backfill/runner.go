// Package backfill migrates orders that predate the allocation engine.
//
// Each batch selects a page of unprocessed orders, newest first, and records
// order-level totals for them without per-item allocations. Every order is
// committed on its own, so a batch interrupted halfway is safely retried by
// the next call. Orders that fail are parked so they never block later pages;
// re-ingesting an order or clearing the failures makes it eligible again.
// Every completed order leaves the remaining count, so repeated calls drive
// it to zero.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/eshaffer321/discount-allocator/internal/domain/classifier"
	"github.com/eshaffer321/discount-allocator/internal/domain/discount"
	"github.com/eshaffer321/discount-allocator/internal/infrastructure/config"
	"github.com/eshaffer321/discount-allocator/internal/infrastructure/metrics"
)

// Store is the persistence surface the runner needs
type Store interface {
	LoadOrder(ctx context.Context, orderID string) (*discount.OrderSnapshot, error)
	WriteOrderSummary(summary *discount.OrderSummary) error
	ListUnprocessedOrders(cutoff time.Time, statuses []string, limit int) ([]string, error)
	CountUnprocessedOrders(cutoff time.Time, statuses []string) (int, error)
	RecordBackfillFailure(orderID, message string) error
	CountBackfillFailures() (int, error)
	StartBackfillRun(label string, cutoff time.Time, pageSize int) (int64, error)
	CompleteBackfillRun(runID int64, selected, migrated, errored, remaining int) error
}

// Config controls which orders a batch selects
type Config struct {
	// Cutoff excludes orders created at or after this time
	Cutoff time.Time
	// Statuses are the completed-like order statuses eligible for migration
	Statuses []string
	// PageSize is used when RunBatch is called without a page size
	PageSize int
}

// FromConfig builds a runner config from the application config
func FromConfig(cfg config.BackfillConfig) (Config, error) {
	cutoff, err := cfg.CutoffTime()
	if err != nil {
		return Config{}, err
	}
	statuses := cfg.Statuses
	if len(statuses) == 0 {
		statuses = config.DefaultStatuses
	}
	return Config{Cutoff: cutoff, Statuses: statuses, PageSize: cfg.PageSize}, nil
}

// BatchError records a single order that failed during a batch
type BatchError struct {
	OrderID string `json:"order_id"`
	Message string `json:"message"`
}

// BatchResult summarizes one batch
type BatchResult struct {
	RunID     int64        `json:"run_id"`
	Label     string       `json:"label"`
	Selected  int          `json:"selected"`
	Migrated  int          `json:"migrated"`
	Remaining int          `json:"remaining"`
	// Failed counts parked orders across all batches that still await a retry
	Failed    int          `json:"failed"`
	Errors    []BatchError `json:"errors"`
}

// Runner processes back-fill batches
type Runner struct {
	store   Store
	cfg     Config
	metrics *metrics.Registry
	logger  *slog.Logger
	now     func() time.Time
}

// NewRunner creates a back-fill runner. metrics may be nil.
func NewRunner(store Store, cfg Config, reg *metrics.Registry, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Statuses) == 0 {
		cfg.Statuses = config.DefaultStatuses
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	return &Runner{
		store:   store,
		cfg:     cfg,
		metrics: reg,
		logger:  logger,
		now:     time.Now,
	}
}

// RunBatch migrates up to pageSize unprocessed orders. A pageSize <= 0 uses
// the configured page size. Failures on individual orders are collected in
// the result and never abort the batch.
func (r *Runner) RunBatch(ctx context.Context, pageSize int) (*BatchResult, error) {
	if pageSize <= 0 {
		pageSize = r.cfg.PageSize
	}

	result := &BatchResult{
		Label:  uuid.NewString(),
		Errors: []BatchError{},
	}

	runID, err := r.store.StartBackfillRun(result.Label, r.cfg.Cutoff, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to start backfill run: %w", err)
	}
	result.RunID = runID

	logger := r.logger.With("run_id", runID)

	ids, err := r.store.ListUnprocessedOrders(r.cfg.Cutoff, r.cfg.Statuses, pageSize)
	if err != nil {
		r.complete(logger, result)
		return nil, fmt.Errorf("failed to list unprocessed orders: %w", err)
	}
	result.Selected = len(ids)

	logger.Info("Starting backfill batch",
		"selected", len(ids),
		"page_size", pageSize,
		"cutoff", r.cfg.Cutoff.Format(config.CutoffLayout),
	)

	for _, id := range ids {
		if ctx.Err() != nil {
			logger.Warn("Backfill batch cancelled", "processed", result.Migrated+len(result.Errors))
			break
		}

		if err := r.migrate(ctx, id); err != nil {
			if ctx.Err() != nil {
				// Leave interrupted orders for the next batch
				logger.Warn("Backfill batch cancelled", "order_id", id, "error", err)
				break
			}
			logger.Error("Failed to migrate order", "order_id", id, "error", err)
			result.Errors = append(result.Errors, BatchError{OrderID: id, Message: err.Error()})
			r.metrics.ObserveOrder(string(discount.ModeReduced), "error")
			if parkErr := r.store.RecordBackfillFailure(id, err.Error()); parkErr != nil {
				logger.Warn("Failed to park order", "order_id", id, "error", parkErr)
			}
			continue
		}
		result.Migrated++
		r.metrics.ObserveOrder(string(discount.ModeReduced), "success")
	}

	remaining, err := r.store.CountUnprocessedOrders(r.cfg.Cutoff, r.cfg.Statuses)
	if err != nil {
		r.complete(logger, result)
		return nil, fmt.Errorf("failed to count remaining orders: %w", err)
	}
	result.Remaining = remaining

	if result.Failed, err = r.store.CountBackfillFailures(); err != nil {
		logger.Warn("Failed to count parked orders", "error", err)
	}

	r.complete(logger, result)
	r.metrics.ObserveBackfill(result.Migrated, len(result.Errors), result.Remaining)

	logger.Info("Backfill batch complete",
		"migrated", result.Migrated,
		"errors", len(result.Errors),
		"remaining", result.Remaining,
		"failed", result.Failed,
	)

	return result, nil
}

// migrate records order-level totals for one order
func (r *Runner) migrate(ctx context.Context, orderID string) error {
	order, err := r.store.LoadOrder(ctx, orderID)
	if err != nil {
		return &discount.ProcessingError{OrderID: orderID, Stage: discount.StageLoad, Err: err}
	}

	sources, err := classifier.Classify(order)
	if err != nil {
		var classErr *discount.ClassificationError
		if !errors.As(err, &classErr) {
			return &discount.ProcessingError{OrderID: orderID, Stage: discount.StageClassify, Err: err}
		}
		r.logger.Warn("Classification issues",
			"order_id", orderID,
			"stage", discount.StageClassify,
			"structural", classErr.Structural,
			"issues", classErr.Issues,
		)
	}

	summary := ReducedSummary(orderID, sources, r.now())
	for _, src := range sources {
		r.metrics.ObserveSource(string(src.Type))
	}

	if err := r.store.WriteOrderSummary(summary); err != nil {
		return &discount.ProcessingError{
			OrderID: orderID,
			Stage:   discount.StagePersist,
			Err:     fmt.Errorf("%w: order summary: %w", discount.ErrPersistence, err),
		}
	}
	return nil
}

// ReducedSummary builds an order-level summary with no per-item allocation.
// The whole discount is reported unallocated so totals still reconcile.
func ReducedSummary(orderID string, sources []discount.Source, processedAt time.Time) *discount.OrderSummary {
	summary := &discount.OrderSummary{
		OrderID:        orderID,
		TotalDiscount:  decimal.Zero,
		TotalAllocated: decimal.Zero,
		ComboTotal:     decimal.Zero,
		CouponTotal:    decimal.Zero,
		LineItemTotal:  decimal.Zero,
		Sources:        []discount.Source{},
		Mode:           discount.ModeReduced,
		Processed:      true,
		ProcessedAt:    processedAt,
	}
	for _, src := range sources {
		summary.AddSource(src)
	}
	summary.TotalUnallocated = summary.TotalDiscount
	return summary
}

func (r *Runner) complete(logger *slog.Logger, result *BatchResult) {
	err := r.store.CompleteBackfillRun(result.RunID, result.Selected, result.Migrated, len(result.Errors), result.Remaining)
	if err != nil {
		logger.Warn("Failed to record backfill run", "error", err)
	}
}
