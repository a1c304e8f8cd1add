package dto

import "time"

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// OrderIngestResponse is returned after an order snapshot is stored.
type OrderIngestResponse struct {
	OrderID string `json:"order_id"`
	Items   int    `json:"items"`
	Fees    int    `json:"fees"`
	Coupons int    `json:"coupons"`
}

// SourceResponse represents a classified discount source.
// Money is rendered as fixed two-decimal strings.
type SourceResponse struct {
	Name   string `json:"name"`
	Label  string `json:"label"`
	Type   string `json:"type"`
	Amount string `json:"amount"`
	Origin string `json:"origin,omitempty"`
}

// AllocationResponse represents one source's share of an item.
type AllocationResponse struct {
	SourceName string `json:"source_name"`
	SourceType string `json:"source_type"`
	Amount     string `json:"amount"`
	Method     string `json:"method"`
}

// ItemDiscountResponse represents every allocation on one line item.
type ItemDiscountResponse struct {
	ItemID      string               `json:"item_id"`
	Total       string               `json:"total_item_discount"`
	Allocations []AllocationResponse `json:"allocations"`
}

// SummaryResponse represents the order-level discount summary.
type SummaryResponse struct {
	OrderID          string           `json:"order_id"`
	TotalDiscount    string           `json:"total_discount"`
	TotalAllocated   string           `json:"total_allocated"`
	TotalUnallocated string           `json:"total_unallocated"`
	ComboTotal       string           `json:"combo_total"`
	CouponTotal      string           `json:"coupon_total"`
	LineItemTotal    string           `json:"line_item_total"`
	Sources          []SourceResponse `json:"sources"`
	Mode             string           `json:"mode"`
	Processed        bool             `json:"processed"`
	ProcessedAt      string           `json:"processed_at"`
}

// ProcessResponse is returned by POST /api/orders/{id}/process.
type ProcessResponse struct {
	OrderID              string                 `json:"order_id"`
	TotalAllocated       string                 `json:"total_allocated"`
	TotalUnallocated     string                 `json:"total_unallocated"`
	Items                []ItemDiscountResponse `json:"items"`
	Summary              SummaryResponse        `json:"summary"`
	ClassificationIssues []string               `json:"classification_issues,omitempty"`
}

// DiscountsResponse is returned by GET /api/orders/{id}/discounts.
type DiscountsResponse struct {
	OrderID string                 `json:"order_id"`
	Summary SummaryResponse        `json:"summary"`
	Items   []ItemDiscountResponse `json:"items"`
}

// BackfillErrorResponse is a single order that failed during a batch.
type BackfillErrorResponse struct {
	OrderID string `json:"order_id"`
	Message string `json:"message"`
}

// BackfillResponse is returned by POST /api/backfill.
type BackfillResponse struct {
	RunID     int64                   `json:"run_id"`
	Label     string                  `json:"label"`
	Selected  int                     `json:"selected"`
	Migrated  int                     `json:"migrated"`
	Remaining int                     `json:"remaining"`
	Failed    int                     `json:"failed"`
	Errors    []BackfillErrorResponse `json:"errors"`
}

// BackfillRunResponse represents a recorded back-fill batch.
type BackfillRunResponse struct {
	ID              int64  `json:"id"`
	Label           string `json:"label"`
	Cutoff          string `json:"cutoff"`
	PageSize        int    `json:"page_size"`
	StartedAt       string `json:"started_at"`
	CompletedAt     string `json:"completed_at,omitempty"`
	OrdersSelected  int    `json:"orders_selected"`
	OrdersMigrated  int    `json:"orders_migrated"`
	OrdersErrored   int    `json:"orders_errored"`
	OrdersRemaining int    `json:"orders_remaining"`
	Status          string `json:"status"`
}

// BackfillRunListResponse is returned when listing back-fill runs.
type BackfillRunListResponse struct {
	Runs  []BackfillRunResponse `json:"runs"`
	Count int                   `json:"count"`
}

// NewHealthResponse creates a health response with current timestamp.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
