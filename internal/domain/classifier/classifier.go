// Package classifier turns the heterogeneous discount signals on an order
// snapshot into a typed, priority-ordered list of discount sources.
//
// The returned order is always combo, then coupon, then line-item sources.
// Allocation priority depends on it, so sources are never re-sorted by
// amount or name.
package classifier

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/eshaffer321/discount-allocator/internal/domain/discount"
)

// Classify inspects an order snapshot and returns its discount sources.
//
// A structurally invalid snapshot yields an empty list and a
// *discount.ClassificationError with Structural set. Problems limited to a
// single entry are reported on the returned error while the remaining sources
// are still returned.
func Classify(order *discount.OrderSnapshot) ([]discount.Source, error) {
	if issues := validate(order); len(issues) > 0 {
		orderID := ""
		if order != nil {
			orderID = order.ID
		}
		return nil, &discount.ClassificationError{OrderID: orderID, Structural: true, Issues: issues}
	}

	var issues []string
	sources := make([]discount.Source, 0, len(order.Fees)+len(order.Coupons))

	sources = append(sources, comboSources(order.Fees)...)

	coupons, couponIssues := couponSources(order.Coupons)
	sources = append(sources, coupons...)
	issues = append(issues, couponIssues...)

	items, itemIssues := lineItemSources(order.Items)
	sources = append(sources, items...)
	issues = append(issues, itemIssues...)

	if len(issues) > 0 {
		return sources, &discount.ClassificationError{OrderID: order.ID, Issues: issues}
	}
	return sources, nil
}

func validate(order *discount.OrderSnapshot) []string {
	if order == nil {
		return []string{"snapshot is nil"}
	}
	var issues []string
	if order.ID == "" {
		issues = append(issues, "order id is empty")
	}
	seen := make(map[string]bool, len(order.Items))
	for i, item := range order.Items {
		if item.ID == "" {
			issues = append(issues, fmt.Sprintf("item %d has no id", i))
			continue
		}
		if seen[item.ID] {
			issues = append(issues, fmt.Sprintf("duplicate item id %s", item.ID))
		}
		seen[item.ID] = true
	}
	return issues
}

// comboSources emits one source per strictly negative fee. Fees >= 0 are
// surcharges and ignored.
func comboSources(fees []discount.FeeEntry) []discount.Source {
	discounts := lo.Filter(fees, func(f discount.FeeEntry, _ int) bool {
		return f.Amount.IsNegative()
	})
	return lo.Map(discounts, func(f discount.FeeEntry, _ int) discount.Source {
		return discount.Source{
			Name:   f.Name,
			Label:  InferComboLabel(f.Name),
			Type:   discount.SourceCombo,
			Amount: f.Amount.Abs(),
			Origin: f.Group,
		}
	})
}

// couponSources skips coupons that resolved to no discount, e.g. free-shipping codes.
func couponSources(coupons []discount.Coupon) ([]discount.Source, []string) {
	var sources []discount.Source
	var issues []string
	for _, c := range coupons {
		switch {
		case c.Code == "":
			issues = append(issues, "coupon with empty code")
		case c.Discount.IsNegative():
			issues = append(issues, fmt.Sprintf("coupon %s has negative discount %s", c.Code, c.Discount.StringFixed(2)))
		case c.Discount.IsPositive():
			sources = append(sources, discount.Source{
				Name:   c.Code,
				Label:  "Coupon: " + c.Code,
				Type:   discount.SourceCoupon,
				Amount: c.Discount,
				Origin: c.Code,
			})
		}
	}
	return sources, issues
}

// lineItemSources emits a source for every item with more than a cent of
// reduction not already explained by coupons.
func lineItemSources(items []discount.LineItem) ([]discount.Source, []string) {
	var sources []discount.Source
	var issues []string
	for _, item := range items {
		if item.Total.GreaterThan(item.Subtotal) {
			issues = append(issues, fmt.Sprintf("item %s total %s exceeds subtotal %s",
				item.ID, item.Total.StringFixed(2), item.Subtotal.StringFixed(2)))
			continue
		}
		reduction := item.Reduction()
		if !reduction.GreaterThan(discount.Cent) {
			continue
		}
		sources = append(sources, discount.Source{
			Name:   lineItemSourceName(item),
			Label:  "Item discount",
			Type:   discount.SourceLineItem,
			Amount: reduction,
			Origin: item.ID,
		})
	}
	return sources, issues
}

func lineItemSourceName(item discount.LineItem) string {
	if item.Name != "" {
		return "Item discount: " + item.Name
	}
	return "Item discount: " + item.ID
}

// comboKeywords maps fee-name fragments to display labels. Checked in order.
var comboKeywords = []struct {
	keywords []string
	label    string
}{
	{[]string{"bundle"}, "Bundle discount"},
	{[]string{"combo"}, "Combo discount"},
	{[]string{"family", "group"}, "Group discount"},
	{[]string{"multi", "pack", "buy"}, "Multi-buy discount"},
}

// InferComboLabel derives a human-readable discount type from a fee name.
func InferComboLabel(feeName string) string {
	name := strings.ToLower(feeName)
	for _, entry := range comboKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(name, kw) {
				return entry.label
			}
		}
	}
	return "Combo discount"
}
