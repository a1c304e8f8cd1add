package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/eshaffer321/discount-allocator/internal/domain/discount"
)

// Storage provides SQLite database access for order snapshots and
// discount allocations. It implements the Repository interface.
type Storage struct {
	db *sql.DB
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage creates a new storage instance with SQLite database
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// SQLite serializes writers; one connection avoids "database is locked"
	db.SetMaxOpenConns(1)

	// Enable foreign key constraints (SQLite-specific)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Storage{db: db}, nil
}

// Ping verifies the database is reachable
func (s *Storage) Ping() error {
	return s.db.Ping()
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// SaveOrder inserts or replaces an order snapshot with its items, fees and coupons
func (s *Storage) SaveOrder(order *discount.OrderSnapshot) error {
	if order == nil || order.ID == "" {
		return errors.New("order id is required")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createdAt := order.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = tx.Exec(`
		INSERT INTO orders (order_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(order_id) DO UPDATE SET
			status = excluded.status,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`, order.ID, order.Status, formatTime(createdAt), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save order %s: %w", order.ID, err)
	}

	// A fresh snapshot gives a previously failed order another back-fill attempt
	for _, table := range []string{"order_items", "order_fees", "order_coupons", "backfill_failures"} {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE order_id = ?`, order.ID); err != nil {
			return fmt.Errorf("failed to clear %s for order %s: %w", table, order.ID, err)
		}
	}

	for i, item := range order.Items {
		_, err := tx.Exec(`
			INSERT INTO order_items
			(order_id, item_id, position, name, item_group, subtotal, total, quantity, coupon_discount)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, order.ID, item.ID, i, item.Name, item.Group, item.Subtotal, item.Total, normalizeQuantity(item.Quantity), item.CouponDiscount)
		if err != nil {
			return fmt.Errorf("failed to save item %s of order %s: %w", item.ID, order.ID, err)
		}
	}

	for i, fee := range order.Fees {
		_, err := tx.Exec(`
			INSERT INTO order_fees (order_id, position, name, amount, fee_group)
			VALUES (?, ?, ?, ?, ?)
		`, order.ID, i, fee.Name, fee.Amount, fee.Group)
		if err != nil {
			return fmt.Errorf("failed to save fee %q of order %s: %w", fee.Name, order.ID, err)
		}
	}

	for i, c := range order.Coupons {
		_, err := tx.Exec(`
			INSERT INTO order_coupons (order_id, position, code, discount)
			VALUES (?, ?, ?, ?)
		`, order.ID, i, c.Code, c.Discount)
		if err != nil {
			return fmt.Errorf("failed to save coupon %q of order %s: %w", c.Code, order.ID, err)
		}
	}

	return tx.Commit()
}

// LoadOrder reads an order snapshot, returning discount.ErrOrderNotFound when absent
func (s *Storage) LoadOrder(ctx context.Context, orderID string) (*discount.OrderSnapshot, error) {
	order := &discount.OrderSnapshot{ID: orderID}
	var createdAt string

	err := s.db.QueryRowContext(ctx,
		`SELECT status, created_at FROM orders WHERE order_id = ?`, orderID,
	).Scan(&order.Status, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", orderID, discount.ErrOrderNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", orderID, err)
	}
	order.CreatedAt = parseTime(createdAt)

	if order.Items, err = s.loadItems(ctx, orderID); err != nil {
		return nil, err
	}
	if order.Fees, err = s.loadFees(ctx, orderID); err != nil {
		return nil, err
	}
	if order.Coupons, err = s.loadCoupons(ctx, orderID); err != nil {
		return nil, err
	}

	return order, nil
}

func (s *Storage) loadItems(ctx context.Context, orderID string) ([]discount.LineItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, name, item_group, subtotal, total, quantity, coupon_discount
		FROM order_items WHERE order_id = ? ORDER BY position
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load items of order %s: %w", orderID, err)
	}
	defer func() { _ = rows.Close() }()

	var items []discount.LineItem
	for rows.Next() {
		var item discount.LineItem
		if err := rows.Scan(&item.ID, &item.Name, &item.Group, &item.Subtotal, &item.Total, &item.Quantity, &item.CouponDiscount); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Storage) loadFees(ctx context.Context, orderID string) ([]discount.FeeEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, amount, fee_group FROM order_fees WHERE order_id = ? ORDER BY position
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load fees of order %s: %w", orderID, err)
	}
	defer func() { _ = rows.Close() }()

	var fees []discount.FeeEntry
	for rows.Next() {
		var fee discount.FeeEntry
		if err := rows.Scan(&fee.Name, &fee.Amount, &fee.Group); err != nil {
			return nil, err
		}
		fees = append(fees, fee)
	}
	return fees, rows.Err()
}

func (s *Storage) loadCoupons(ctx context.Context, orderID string) ([]discount.Coupon, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT code, discount FROM order_coupons WHERE order_id = ? ORDER BY position
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load coupons of order %s: %w", orderID, err)
	}
	defer func() { _ = rows.Close() }()

	var coupons []discount.Coupon
	for rows.Next() {
		var c discount.Coupon
		if err := rows.Scan(&c.Code, &c.Discount); err != nil {
			return nil, err
		}
		coupons = append(coupons, c)
	}
	return coupons, rows.Err()
}
