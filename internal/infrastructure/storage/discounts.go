package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eshaffer321/discount-allocator/internal/domain/discount"
)

// WriteItemDiscounts replaces every item record of an order in one transaction.
// Records from earlier runs that no longer receive allocations are removed.
func (s *Storage) WriteItemDiscounts(orderID string, records []discount.ItemRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM item_discounts WHERE order_id = ?`, orderID); err != nil {
		return fmt.Errorf("failed to clear item discounts for order %s: %w", orderID, err)
	}

	now := formatTime(time.Now())
	for _, rec := range records {
		allocationsJSON, err := json.Marshal(rec.Allocations)
		if err != nil {
			return fmt.Errorf("failed to marshal allocations for item %s: %w", rec.ItemID, err)
		}

		_, err = tx.Exec(`
			INSERT INTO item_discounts (order_id, item_id, allocations_json, total, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`, orderID, rec.ItemID, string(allocationsJSON), discount.RoundCents(rec.Total), now)
		if err != nil {
			return fmt.Errorf("failed to write item discount %s/%s: %w", orderID, rec.ItemID, err)
		}
	}

	return tx.Commit()
}

// WriteOrderSummary upserts the order summary
func (s *Storage) WriteOrderSummary(summary *discount.OrderSummary) error {
	if summary == nil || summary.OrderID == "" {
		return errors.New("summary order id is required")
	}

	sources := summary.Sources
	if sources == nil {
		sources = []discount.Source{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("failed to marshal sources: %w", err)
	}

	processedAt := summary.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now()
	}

	_, err = s.db.Exec(`
		INSERT INTO order_discount_summaries
		(order_id, total_discount, total_allocated, total_unallocated,
		 combo_total, coupon_total, line_item_total, sources_json, mode, processed, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(order_id) DO UPDATE SET
			total_discount = excluded.total_discount,
			total_allocated = excluded.total_allocated,
			total_unallocated = excluded.total_unallocated,
			combo_total = excluded.combo_total,
			coupon_total = excluded.coupon_total,
			line_item_total = excluded.line_item_total,
			sources_json = excluded.sources_json,
			mode = excluded.mode,
			processed = excluded.processed,
			processed_at = excluded.processed_at
	`,
		summary.OrderID,
		summary.TotalDiscount,
		summary.TotalAllocated,
		summary.TotalUnallocated,
		summary.ComboTotal,
		summary.CouponTotal,
		summary.LineItemTotal,
		string(sourcesJSON),
		string(summary.Mode),
		summary.Processed,
		formatTime(processedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to write summary for order %s: %w", summary.OrderID, err)
	}
	return nil
}

// HasSummary reports whether the order has a processed summary
func (s *Storage) HasSummary(orderID string) (bool, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM order_discount_summaries WHERE order_id = ? AND processed = 1
	`, orderID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetOrderSummary returns the stored summary, nil if the order was never processed
func (s *Storage) GetOrderSummary(orderID string) (*discount.OrderSummary, error) {
	summary := &discount.OrderSummary{OrderID: orderID}
	var sourcesJSON, mode, processedAt string

	err := s.db.QueryRow(`
		SELECT total_discount, total_allocated, total_unallocated,
		       combo_total, coupon_total, line_item_total,
		       sources_json, mode, processed, processed_at
		FROM order_discount_summaries WHERE order_id = ?
	`, orderID).Scan(
		&summary.TotalDiscount,
		&summary.TotalAllocated,
		&summary.TotalUnallocated,
		&summary.ComboTotal,
		&summary.CouponTotal,
		&summary.LineItemTotal,
		&sourcesJSON,
		&mode,
		&summary.Processed,
		&processedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summary for order %s: %w", orderID, err)
	}

	if err := json.Unmarshal([]byte(sourcesJSON), &summary.Sources); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sources for order %s: %w", orderID, err)
	}
	summary.Mode = discount.Mode(mode)
	summary.ProcessedAt = parseTime(processedAt)

	return summary, nil
}

// GetItemDiscounts returns the item records of an order ordered by item id
func (s *Storage) GetItemDiscounts(orderID string) ([]discount.ItemRecord, error) {
	rows, err := s.db.Query(`
		SELECT item_id, allocations_json, total
		FROM item_discounts WHERE order_id = ? ORDER BY item_id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get item discounts for order %s: %w", orderID, err)
	}
	defer func() { _ = rows.Close() }()

	var records []discount.ItemRecord
	for rows.Next() {
		rec := discount.ItemRecord{OrderID: orderID}
		var allocationsJSON string
		if err := rows.Scan(&rec.ItemID, &allocationsJSON, &rec.Total); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(allocationsJSON), &rec.Allocations); err != nil {
			return nil, fmt.Errorf("failed to unmarshal allocations for item %s: %w", rec.ItemID, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListUnprocessedOrders returns ids of eligible orders without a processed
// summary, newest first. Orders with a recorded back-fill failure are skipped.
func (s *Storage) ListUnprocessedOrders(cutoff time.Time, statuses []string, limit int) ([]string, error) {
	if len(statuses) == 0 || limit <= 0 {
		return nil, nil
	}

	where, args := unprocessedFilter(cutoff, statuses)
	args = append(args, limit)

	rows, err := s.db.Query(`
		SELECT o.order_id FROM orders o
		LEFT JOIN order_discount_summaries s
			ON s.order_id = o.order_id AND s.processed = 1
		LEFT JOIN backfill_failures f ON f.order_id = o.order_id
		WHERE `+where+`
		ORDER BY o.created_at DESC, o.order_id DESC
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list unprocessed orders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountUnprocessedOrders counts the orders ListUnprocessedOrders pages through
func (s *Storage) CountUnprocessedOrders(cutoff time.Time, statuses []string) (int, error) {
	if len(statuses) == 0 {
		return 0, nil
	}

	where, args := unprocessedFilter(cutoff, statuses)

	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM orders o
		LEFT JOIN order_discount_summaries s
			ON s.order_id = o.order_id AND s.processed = 1
		LEFT JOIN backfill_failures f ON f.order_id = o.order_id
		WHERE `+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unprocessed orders: %w", err)
	}
	return count, nil
}

func unprocessedFilter(cutoff time.Time, statuses []string) (string, []any) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")

	args := make([]any, 0, len(statuses)+1)
	args = append(args, formatTime(cutoff))
	for _, st := range statuses {
		args = append(args, st)
	}

	return "s.order_id IS NULL AND f.order_id IS NULL AND o.created_at < ? AND o.status IN (" + placeholders + ")", args
}
