package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// StartBackfillRun records the start of a back-fill batch
func (s *Storage) StartBackfillRun(label string, cutoff time.Time, pageSize int) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO backfill_runs (label, cutoff, page_size, started_at, status)
		VALUES (?, ?, ?, ?, ?)
	`, label, formatTime(cutoff), pageSize, formatTime(time.Now()), RunStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to start backfill run: %w", err)
	}
	return result.LastInsertId()
}

// CompleteBackfillRun records the outcome of a back-fill batch
func (s *Storage) CompleteBackfillRun(runID int64, selected, migrated, errored, remaining int) error {
	_, err := s.db.Exec(`
		UPDATE backfill_runs
		SET completed_at = ?, orders_selected = ?, orders_migrated = ?,
		    orders_errored = ?, orders_remaining = ?, status = ?
		WHERE id = ?
	`, formatTime(time.Now()), selected, migrated, errored, remaining, runStatus(errored), runID)
	if err != nil {
		return fmt.Errorf("failed to complete backfill run %d: %w", runID, err)
	}
	return nil
}

// ListBackfillRuns returns recent back-fill runs, newest first
func (s *Storage) ListBackfillRuns(limit int) ([]BackfillRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT id, label, cutoff, page_size, started_at, COALESCE(completed_at, ''),
		       orders_selected, orders_migrated, orders_errored, orders_remaining, status
		FROM backfill_runs
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list backfill runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []BackfillRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetBackfillRun retrieves a run by ID, nil if absent
func (s *Storage) GetBackfillRun(runID int64) (*BackfillRun, error) {
	row := s.db.QueryRow(`
		SELECT id, label, cutoff, page_size, started_at, COALESCE(completed_at, ''),
		       orders_selected, orders_migrated, orders_errored, orders_remaining, status
		FROM backfill_runs WHERE id = ?
	`, runID)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*BackfillRun, error) {
	var run BackfillRun
	err := row.Scan(
		&run.ID,
		&run.Label,
		&run.Cutoff,
		&run.PageSize,
		&run.StartedAt,
		&run.CompletedAt,
		&run.OrdersSelected,
		&run.OrdersMigrated,
		&run.OrdersErrored,
		&run.OrdersRemaining,
		&run.Status,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// RecordBackfillFailure parks an order that could not be migrated so later
// batches skip it. Repeated failures bump the attempt count.
func (s *Storage) RecordBackfillFailure(orderID, message string) error {
	_, err := s.db.Exec(`
		INSERT INTO backfill_failures (order_id, attempts, last_error, failed_at)
		VALUES (?, 1, ?, ?)
		ON CONFLICT(order_id) DO UPDATE SET
			attempts = attempts + 1,
			last_error = excluded.last_error,
			failed_at = excluded.failed_at
	`, orderID, message, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to record backfill failure for order %s: %w", orderID, err)
	}
	return nil
}

// CountBackfillFailures counts parked orders that still have no processed summary
func (s *Storage) CountBackfillFailures() (int, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM backfill_failures f
		LEFT JOIN order_discount_summaries s
			ON s.order_id = f.order_id AND s.processed = 1
		WHERE s.order_id IS NULL
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count backfill failures: %w", err)
	}
	return count, nil
}

// ClearBackfillFailures makes every parked order eligible again
func (s *Storage) ClearBackfillFailures() (int, error) {
	result, err := s.db.Exec(`DELETE FROM backfill_failures`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear backfill failures: %w", err)
	}
	n, err := result.RowsAffected()
	return int(n), err
}
