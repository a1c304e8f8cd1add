package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/eshaffer321/discount-allocator/internal/domain/discount"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It stores all data in maps and slices, making tests fast and isolated.
type MockRepository struct {
	mu        sync.Mutex
	orders    map[string]*discount.OrderSnapshot
	items     map[string][]discount.ItemRecord
	summaries map[string]*discount.OrderSummary
	runs      map[int64]*BackfillRun
	failures  map[string]string
	nextRunID int64

	// Hooks for test assertions
	LoadOrderCalls      int
	ItemWrites          int
	SummaryWrites       int
	LastSavedSummary    *discount.OrderSummary
	CompleteRunCalled   bool
	StartBackfillCalled bool

	// Error injection for testing error paths
	LoadOrderErr          error
	WriteItemDiscountsErr error
	WriteSummaryErr       error
	ListUnprocessedErr    error
	CountUnprocessedErr   error
	StartBackfillRunErr   error
	RecordFailureErr      error
	PingErr               error

	// FailLoadFor makes LoadOrder fail for specific order ids
	FailLoadFor map[string]error
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		orders:      make(map[string]*discount.OrderSnapshot),
		items:       make(map[string][]discount.ItemRecord),
		summaries:   make(map[string]*discount.OrderSummary),
		runs:        make(map[int64]*BackfillRun),
		failures:    make(map[string]string),
		nextRunID:   1,
		FailLoadFor: make(map[string]error),
	}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// Ping returns PingErr
func (m *MockRepository) Ping() error {
	return m.PingErr
}

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

// SaveOrder stores a copy of the snapshot with the same defaults as Storage
func (m *MockRepository) SaveOrder(order *discount.OrderSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if order == nil || order.ID == "" {
		return errors.New("order id is required")
	}

	copied := *order
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now()
	}
	if len(order.Items) > 0 {
		copied.Items = lo.Map(order.Items, func(item discount.LineItem, _ int) discount.LineItem {
			item.Quantity = normalizeQuantity(item.Quantity)
			return item
		})
	}
	m.orders[order.ID] = &copied
	delete(m.failures, order.ID)
	return nil
}

// LoadOrder returns a stored snapshot or an error wrapping discount.ErrOrderNotFound
func (m *MockRepository) LoadOrder(_ context.Context, orderID string) (*discount.OrderSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LoadOrderCalls++
	if m.LoadOrderErr != nil {
		return nil, m.LoadOrderErr
	}
	if err, ok := m.FailLoadFor[orderID]; ok {
		return nil, err
	}

	order, ok := m.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", orderID, discount.ErrOrderNotFound)
	}
	copied := *order
	return &copied, nil
}

// WriteItemDiscounts replaces the item records of an order
func (m *MockRepository) WriteItemDiscounts(orderID string, records []discount.ItemRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ItemWrites++
	if m.WriteItemDiscountsErr != nil {
		return m.WriteItemDiscountsErr
	}

	stored := make([]discount.ItemRecord, len(records))
	copy(stored, records)
	sort.Slice(stored, func(i, j int) bool { return stored[i].ItemID < stored[j].ItemID })
	if len(stored) == 0 {
		delete(m.items, orderID)
		return nil
	}
	m.items[orderID] = stored
	return nil
}

// WriteOrderSummary upserts the summary
func (m *MockRepository) WriteOrderSummary(summary *discount.OrderSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SummaryWrites++
	m.LastSavedSummary = summary
	if m.WriteSummaryErr != nil {
		return m.WriteSummaryErr
	}

	copied := *summary
	m.summaries[summary.OrderID] = &copied
	return nil
}

// HasSummary reports whether a processed summary exists
func (m *MockRepository) HasSummary(orderID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.summaries[orderID]
	return ok && s.Processed, nil
}

// GetOrderSummary returns the stored summary or nil
func (m *MockRepository) GetOrderSummary(orderID string) (*discount.OrderSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.summaries[orderID]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

// GetItemDiscounts returns the stored item records
func (m *MockRepository) GetItemDiscounts(orderID string) ([]discount.ItemRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]discount.ItemRecord(nil), m.items[orderID]...), nil
}

// ListUnprocessedOrders pages through eligible orders newest first
func (m *MockRepository) ListUnprocessedOrders(cutoff time.Time, statuses []string, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListUnprocessedErr != nil {
		return nil, m.ListUnprocessedErr
	}

	eligible := m.eligible(cutoff, statuses)
	if limit < len(eligible) {
		eligible = eligible[:max(limit, 0)]
	}
	return lo.Map(eligible, func(o *discount.OrderSnapshot, _ int) string { return o.ID }), nil
}

// CountUnprocessedOrders counts eligible orders
func (m *MockRepository) CountUnprocessedOrders(cutoff time.Time, statuses []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CountUnprocessedErr != nil {
		return 0, m.CountUnprocessedErr
	}
	return len(m.eligible(cutoff, statuses)), nil
}

func (m *MockRepository) eligible(cutoff time.Time, statuses []string) []*discount.OrderSnapshot {
	eligible := lo.Filter(lo.Values(m.orders), func(o *discount.OrderSnapshot, _ int) bool {
		if s, ok := m.summaries[o.ID]; ok && s.Processed {
			return false
		}
		if _, failed := m.failures[o.ID]; failed {
			return false
		}
		return o.CreatedAt.Before(cutoff) && lo.Contains(statuses, o.Status)
	})

	sort.Slice(eligible, func(i, j int) bool {
		if !eligible[i].CreatedAt.Equal(eligible[j].CreatedAt) {
			return eligible[i].CreatedAt.After(eligible[j].CreatedAt)
		}
		return eligible[i].ID > eligible[j].ID
	})
	return eligible
}

// StartBackfillRun records a run in memory
func (m *MockRepository) StartBackfillRun(label string, cutoff time.Time, pageSize int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StartBackfillCalled = true
	if m.StartBackfillRunErr != nil {
		return 0, m.StartBackfillRunErr
	}

	id := m.nextRunID
	m.nextRunID++
	m.runs[id] = &BackfillRun{
		ID:        id,
		Label:     label,
		Cutoff:    formatTime(cutoff),
		PageSize:  pageSize,
		StartedAt: formatTime(time.Now()),
		Status:    RunStatusRunning,
	}
	return id, nil
}

// CompleteBackfillRun updates a run in memory
func (m *MockRepository) CompleteBackfillRun(runID int64, selected, migrated, errored, remaining int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CompleteRunCalled = true
	run, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("backfill run %d not found", runID)
	}
	run.CompletedAt = formatTime(time.Now())
	run.OrdersSelected = selected
	run.OrdersMigrated = migrated
	run.OrdersErrored = errored
	run.OrdersRemaining = remaining
	run.Status = runStatus(errored)
	return nil
}

// ListBackfillRuns returns runs newest first
func (m *MockRepository) ListBackfillRuns(limit int) ([]BackfillRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	runs := lo.Map(lo.Values(m.runs), func(r *BackfillRun, _ int) BackfillRun { return *r })
	sort.Slice(runs, func(i, j int) bool { return runs[i].ID > runs[j].ID })
	if limit > 0 && limit < len(runs) {
		runs = runs[:limit]
	}
	return runs, nil
}

// GetBackfillRun returns a run by ID or nil
func (m *MockRepository) GetBackfillRun(runID int64) (*BackfillRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[runID]
	if !ok {
		return nil, nil
	}
	copied := *run
	return &copied, nil
}

// RecordBackfillFailure parks an order in memory
func (m *MockRepository) RecordBackfillFailure(orderID, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.RecordFailureErr != nil {
		return m.RecordFailureErr
	}
	m.failures[orderID] = message
	return nil
}

// CountBackfillFailures counts parked orders without a processed summary
func (m *MockRepository) CountBackfillFailures() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(lo.Filter(lo.Keys(m.failures), func(id string, _ int) bool {
		s, ok := m.summaries[id]
		return !ok || !s.Processed
	})), nil
}

// ClearBackfillFailures forgets every parked order
func (m *MockRepository) ClearBackfillFailures() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.failures)
	m.failures = make(map[string]string)
	return n, nil
}
