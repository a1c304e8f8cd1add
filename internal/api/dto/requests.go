package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderRequest is the body of PUT /api/orders/{id}. Amounts accept JSON
// numbers or strings.
type OrderRequest struct {
	Status    string            `json:"status"`
	CreatedAt *time.Time        `json:"created_at,omitempty"`
	Items     []LineItemRequest `json:"items"`
	Fees      []FeeRequest      `json:"fees"`
	Coupons   []CouponRequest   `json:"coupons"`
}

// LineItemRequest is a line item within an order snapshot.
type LineItemRequest struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Group          string          `json:"group,omitempty"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Total          decimal.Decimal `json:"total"`
	Quantity       int             `json:"quantity"`
	CouponDiscount decimal.Decimal `json:"coupon_discount"`
}

// FeeRequest is a fee line. Negative amounts are combo discounts.
type FeeRequest struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
	Group  string          `json:"group,omitempty"`
}

// CouponRequest is an applied coupon with its resolved discount.
type CouponRequest struct {
	Code     string          `json:"code"`
	Discount decimal.Decimal `json:"discount"`
}

// BackfillRunListParams represents query parameters for listing back-fill runs.
type BackfillRunListParams struct {
	Limit int `json:"limit"`
}

// DefaultBackfillRunListParams returns default values for run list params.
func DefaultBackfillRunListParams() BackfillRunListParams {
	return BackfillRunListParams{
		Limit: 20,
	}
}
