package backfill

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/discount-allocator/internal/domain/discount"
	"github.com/eshaffer321/discount-allocator/internal/infrastructure/config"
	"github.com/eshaffer321/discount-allocator/internal/infrastructure/logging"
	"github.com/eshaffer321/discount-allocator/internal/infrastructure/metrics"
	"github.com/eshaffer321/discount-allocator/internal/infrastructure/storage"
)

var (
	base   = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cutoff = base.Add(30 * 24 * time.Hour)
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testLogger() *slog.Logger {
	return slog.New(logging.NewMavenHandler(io.Discard, nil))
}

func historicalOrder(id string, hoursAfterBase int, status string) *discount.OrderSnapshot {
	return &discount.OrderSnapshot{
		ID:        id,
		Status:    status,
		CreatedAt: base.Add(time.Duration(hoursAfterBase) * time.Hour),
		Items: []discount.LineItem{
			{ID: "A", Name: "Burger", Group: "meal", Subtotal: d("50.00"), Total: d("45.00")},
			{ID: "B", Name: "Shake", Subtotal: d("50.00"), Total: d("50.00")},
		},
		Fees:    []discount.FeeEntry{{Name: "Meal Combo", Amount: d("-10.00"), Group: "meal"}},
		Coupons: []discount.Coupon{{Code: "SAVE5", Discount: d("5.00")}},
	}
}

func seed(t *testing.T, repo *storage.MockRepository, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, repo.SaveOrder(historicalOrder(fmt.Sprintf("%03d", i), i, "completed")))
	}
}

func newRunner(repo Store, reg *metrics.Registry) *Runner {
	return NewRunner(repo, Config{Cutoff: cutoff, Statuses: config.DefaultStatuses, PageSize: 2}, reg, testLogger())
}

func TestRunBatch_ReducedSummary(t *testing.T) {
	repo := storage.NewMockRepository()
	require.NoError(t, repo.SaveOrder(historicalOrder("100", 1, "completed")))

	result, err := newRunner(repo, nil).RunBatch(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Migrated)
	assert.Equal(t, 0, result.Remaining)
	assert.Empty(t, result.Errors)

	summary, err := repo.GetOrderSummary("100")
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.True(t, summary.Processed)
	assert.Equal(t, discount.ModeReduced, summary.Mode)
	assert.Equal(t, "10.00", summary.ComboTotal.StringFixed(2))
	assert.Equal(t, "5.00", summary.CouponTotal.StringFixed(2))
	assert.Equal(t, "5.00", summary.LineItemTotal.StringFixed(2))
	assert.Equal(t, "20.00", summary.TotalDiscount.StringFixed(2))
	assert.True(t, summary.TotalAllocated.IsZero())
	assert.Equal(t, "20.00", summary.TotalUnallocated.StringFixed(2))

	records, err := repo.GetItemDiscounts("100")
	require.NoError(t, err)
	assert.Empty(t, records, "reduced mode writes no item records")
}

func TestRunBatch_MonotonicRemaining(t *testing.T) {
	repo := storage.NewMockRepository()
	seed(t, repo, 5)
	runner := newRunner(repo, nil)

	var remaining []int
	for i := 0; i < 5; i++ {
		result, err := runner.RunBatch(context.Background(), 0)
		require.NoError(t, err)
		remaining = append(remaining, result.Remaining)
		if result.Remaining == 0 {
			break
		}
	}

	assert.Equal(t, []int{3, 1, 0}, remaining)

	result, err := runner.RunBatch(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Migrated)
	assert.Equal(t, 0, result.Remaining)
}

func TestRunBatch_NewestFirst(t *testing.T) {
	repo := storage.NewMockRepository()
	seed(t, repo, 3)

	_, err := newRunner(repo, nil).RunBatch(context.Background(), 1)
	require.NoError(t, err)

	has, _ := repo.HasSummary("002")
	assert.True(t, has, "newest order is migrated first")
	has, _ = repo.HasSummary("000")
	assert.False(t, has)
}

func TestRunBatch_SkipsIneligibleOrders(t *testing.T) {
	repo := storage.NewMockRepository()
	require.NoError(t, repo.SaveOrder(historicalOrder("cancelled", 1, "cancelled")))
	recent := historicalOrder("recent", 1, "completed")
	recent.CreatedAt = cutoff.Add(time.Hour)
	require.NoError(t, repo.SaveOrder(recent))
	require.NoError(t, repo.SaveOrder(historicalOrder("ok", 1, "refunded")))

	result, err := newRunner(repo, nil).RunBatch(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Selected)
	assert.Equal(t, 1, result.Migrated)
	has, _ := repo.HasSummary("cancelled")
	assert.False(t, has)
	has, _ = repo.HasSummary("recent")
	assert.False(t, has)
}

func TestRunBatch_ZeroDiscountOrderMarkedProcessed(t *testing.T) {
	repo := storage.NewMockRepository()
	require.NoError(t, repo.SaveOrder(&discount.OrderSnapshot{
		ID:        "plain",
		Status:    "completed",
		CreatedAt: base,
		Items:     []discount.LineItem{{ID: "A", Subtotal: d("5.00"), Total: d("5.00")}},
	}))

	result, err := newRunner(repo, nil).RunBatch(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Migrated)
	assert.Equal(t, 0, result.Remaining)

	summary, err := repo.GetOrderSummary("plain")
	require.NoError(t, err)
	assert.True(t, summary.Processed)
	assert.True(t, summary.TotalDiscount.IsZero())
}

func TestRunBatch_PerOrderErrorsDoNotAbort(t *testing.T) {
	repo := storage.NewMockRepository()
	seed(t, repo, 3)
	repo.FailLoadFor["001"] = errors.New("connection reset")
	reg := metrics.NewRegistry()

	result, err := newRunner(repo, reg).RunBatch(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Migrated)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "001", result.Errors[0].OrderID)
	assert.Contains(t, result.Errors[0].Message, "connection reset")
	assert.Equal(t, 0, result.Remaining, "failed order is parked instead of blocking the page")
	assert.Equal(t, 1, result.Failed)

	has, _ := repo.HasSummary("001")
	assert.False(t, has, "failed order stays unprocessed")

	run, err := repo.GetBackfillRun(result.RunID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, storage.RunStatusCompletedWithErrors, run.Status)
	assert.Equal(t, 2, run.OrdersMigrated)
	assert.Equal(t, 1, run.OrdersErrored)
	assert.Equal(t, result.Label, run.Label)

	assert.Equal(t, float64(2), testutil.ToFloat64(reg.BackfillMigrated))
	assert.Equal(t, float64(1), testutil.ToFloat64(reg.BackfillErrors))
	assert.Equal(t, float64(0), testutil.ToFloat64(reg.BackfillPending))
}

func TestRunBatch_FailingNewestOrderDoesNotStall(t *testing.T) {
	repo := storage.NewMockRepository()
	seed(t, repo, 4)
	repo.FailLoadFor["003"] = errors.New("corrupt snapshot")
	runner := newRunner(repo, nil)

	var remaining []int
	for i := 0; i < 6; i++ {
		result, err := runner.RunBatch(context.Background(), 1)
		require.NoError(t, err)
		remaining = append(remaining, result.Remaining)
		assert.Equal(t, 1, result.Failed)
		if i == 0 {
			require.Len(t, result.Errors, 1)
			assert.Equal(t, "003", result.Errors[0].OrderID)
		} else {
			assert.Empty(t, result.Errors, "parked order is not selected again")
		}
		if result.Remaining == 0 {
			break
		}
	}
	assert.Equal(t, []int{3, 2, 1, 0}, remaining)

	// A corrected snapshot is picked up by the next batch
	delete(repo.FailLoadFor, "003")
	require.NoError(t, repo.SaveOrder(historicalOrder("003", 3, "completed")))

	result, err := runner.RunBatch(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Migrated)
	assert.Equal(t, 0, result.Remaining)
	assert.Equal(t, 0, result.Failed)
}

func TestRunBatch_ParkFailureStillReportsError(t *testing.T) {
	repo := storage.NewMockRepository()
	seed(t, repo, 1)
	repo.FailLoadFor["000"] = errors.New("corrupt snapshot")
	repo.RecordFailureErr = errors.New("disk full")

	result, err := newRunner(repo, nil).RunBatch(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 1, result.Remaining)
	assert.Equal(t, 0, result.Failed)
}

// cancellingStore cancels the batch while an order is being loaded
type cancellingStore struct {
	*storage.MockRepository
	cancel context.CancelFunc
}

func (s *cancellingStore) LoadOrder(ctx context.Context, _ string) (*discount.OrderSnapshot, error) {
	s.cancel()
	return nil, ctx.Err()
}

func TestRunBatch_CancelledMidOrderIsNotParked(t *testing.T) {
	repo := storage.NewMockRepository()
	seed(t, repo, 3)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	result, err := newRunner(&cancellingStore{MockRepository: repo, cancel: cancel}, nil).RunBatch(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 3, result.Remaining)
}

func TestRunBatch_PersistenceFailureReported(t *testing.T) {
	repo := storage.NewMockRepository()
	seed(t, repo, 1)
	repo.WriteSummaryErr = errors.New("readonly database")

	result, err := newRunner(repo, nil).RunBatch(context.Background(), 10)
	require.NoError(t, err)

	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "persist")
	assert.Equal(t, 0, result.Migrated)
	assert.Equal(t, 0, result.Remaining)
	assert.Equal(t, 1, result.Failed)
}

func TestRunBatch_ListFailure(t *testing.T) {
	repo := storage.NewMockRepository()
	repo.ListUnprocessedErr = errors.New("locked")

	_, err := newRunner(repo, nil).RunBatch(context.Background(), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked")
	assert.True(t, repo.CompleteRunCalled)
}

func TestRunBatch_CancelledContextLeavesOrdersUnprocessed(t *testing.T) {
	repo := storage.NewMockRepository()
	seed(t, repo, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := newRunner(repo, nil).RunBatch(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Migrated)
	assert.Equal(t, 3, result.Remaining)
}

func TestReducedSummary_Conserves(t *testing.T) {
	sources := []discount.Source{
		{Name: "Combo", Type: discount.SourceCombo, Amount: d("3.00")},
		{Name: "X", Type: discount.SourceCoupon, Amount: d("1.25")},
	}

	summary := ReducedSummary("1", sources, base)

	assert.Equal(t, "4.25", summary.TotalDiscount.StringFixed(2))
	assert.True(t, summary.TotalAllocated.Add(summary.TotalUnallocated).Equal(summary.TotalDiscount))
	assert.Len(t, summary.Sources, 2)
}

func TestFromConfig(t *testing.T) {
	cfg, err := FromConfig(config.BackfillConfig{Cutoff: "2024-02-01", PageSize: 25})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), cfg.Cutoff)
	assert.Equal(t, config.DefaultStatuses, cfg.Statuses)
	assert.Equal(t, 25, cfg.PageSize)

	_, err = FromConfig(config.BackfillConfig{Cutoff: "yesterday"})
	assert.Error(t, err)
}
