// Package discount defines the typed entities shared by the allocation engine:
// order snapshots read from the host commerce system, the discount sources
// classified from them, and the per-item allocations the engine persists.
package discount

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSnapshot is a read-only view of a purchase owned by the host system.
type OrderSnapshot struct {
	ID        string     `json:"id"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	Items     []LineItem `json:"items"`
	Fees      []FeeEntry `json:"fees"`
	Coupons   []Coupon   `json:"coupons"`
}

// LineItem is a single purchased line on an order.
type LineItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Group    string          `json:"group,omitempty"` // bundle / product group membership
	Subtotal decimal.Decimal `json:"subtotal"`        // pre-discount price
	Total    decimal.Decimal `json:"total"`           // post-discount price
	Quantity int             `json:"quantity"`

	// CouponDiscount is the portion of Subtotal-Total the host already
	// attributes to coupons. Zero when the host does not report it.
	CouponDiscount decimal.Decimal `json:"coupon_discount"`
}

// Reduction returns the price reduction not explained by coupons.
func (li LineItem) Reduction() decimal.Decimal {
	return li.Subtotal.Sub(li.Total).Sub(li.CouponDiscount)
}

// FeeEntry is a fee line on an order. Negative amounts are combo discounts.
type FeeEntry struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
	Group  string          `json:"group,omitempty"`
}

// Coupon is a coupon code applied to an order with its resolved discount.
type Coupon struct {
	Code     string          `json:"code"`
	Discount decimal.Decimal `json:"discount"`
}

// SourceType identifies where a discount came from.
type SourceType string

const (
	SourceCombo    SourceType = "combo"
	SourceCoupon   SourceType = "coupon"
	SourceLineItem SourceType = "line_item"
)

// Priority returns the processing order of a source type. Lower runs first.
func (t SourceType) Priority() int {
	switch t {
	case SourceCombo:
		return 0
	case SourceCoupon:
		return 1
	case SourceLineItem:
		return 2
	default:
		return 3
	}
}

// Source is one classified discount with a non-negative amount.
type Source struct {
	Name   string          `json:"name"`
	Label  string          `json:"label"`
	Type   SourceType      `json:"type"`
	Amount decimal.Decimal `json:"amount"`
	Origin string          `json:"origin,omitempty"`
}

// Method records how an allocation was computed.
type Method string

const (
	MethodDirect       Method = "direct"
	MethodProportional Method = "proportional"
	MethodRuleMatched  Method = "rule_matched"
)

// Allocation is the part of one source's amount assigned to one line item.
type Allocation struct {
	ItemID     string          `json:"item_id"`
	SourceName string          `json:"source_name"`
	SourceType SourceType      `json:"source_type"`
	Amount     decimal.Decimal `json:"amount"`
	Method     Method          `json:"method"`
}

// ItemRecord is the full set of allocations for one line item.
type ItemRecord struct {
	OrderID     string          `json:"order_id"`
	ItemID      string          `json:"item_id"`
	Allocations []Allocation    `json:"allocations"`
	Total       decimal.Decimal `json:"total_item_discount"`
}

// Add appends an allocation and refreshes the derived total.
func (r *ItemRecord) Add(a Allocation) {
	r.Allocations = append(r.Allocations, a)
	total := decimal.Zero
	for _, existing := range r.Allocations {
		total = total.Add(existing.Amount)
	}
	r.Total = RoundCents(total)
}

// Mode distinguishes the live per-item pass from the historical order-level pass.
type Mode string

const (
	ModePrecise Mode = "precise"
	ModeReduced Mode = "reduced"
)

// OrderSummary is the per-order result. Its presence with Processed set marks
// the order as handled by the engine.
type OrderSummary struct {
	OrderID          string          `json:"order_id"`
	TotalDiscount    decimal.Decimal `json:"total_discount"`
	TotalAllocated   decimal.Decimal `json:"total_allocated"`
	TotalUnallocated decimal.Decimal `json:"total_unallocated"`
	ComboTotal       decimal.Decimal `json:"combo_total"`
	CouponTotal      decimal.Decimal `json:"coupon_total"`
	LineItemTotal    decimal.Decimal `json:"line_item_total"`
	Sources          []Source        `json:"sources"`
	Mode             Mode            `json:"mode"`
	Processed        bool            `json:"processed"`
	ProcessedAt      time.Time       `json:"processed_at"`
}

// AddSource accumulates a source into the order totals by type.
func (s *OrderSummary) AddSource(src Source) {
	s.Sources = append(s.Sources, src)
	s.TotalDiscount = s.TotalDiscount.Add(src.Amount)
	switch src.Type {
	case SourceCombo:
		s.ComboTotal = s.ComboTotal.Add(src.Amount)
	case SourceCoupon:
		s.CouponTotal = s.CouponTotal.Add(src.Amount)
	case SourceLineItem:
		s.LineItemTotal = s.LineItemTotal.Add(src.Amount)
	}
}
