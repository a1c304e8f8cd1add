package allocator

import (
	"slices"
	"strings"
	"unicode"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/eshaffer321/discount-allocator/internal/domain/discount"
)

// RuleMatched places a combo discount on the items that took part in the
// bundle. Items match on the fee's group when it carries one, otherwise on
// their group or name appearing as whole words in the fee name.
//
// One matching item takes the full amount. Several matching items split it
// by subtotal share within the match. No match leaves the amount unallocated
// rather than guessing.
type RuleMatched struct{}

// Allocate implements Strategy.
func (RuleMatched) Allocate(src discount.Source, order *discount.OrderSnapshot) Result {
	candidates := MatchBundle(src, order.Items)

	switch len(candidates) {
	case 0:
		return unallocated(src)
	case 1:
		return Result{
			Allocations: []discount.Allocation{{
				ItemID:     candidates[0].ID,
				SourceName: src.Name,
				SourceType: src.Type,
				Amount:     discount.RoundCents(src.Amount),
				Method:     discount.MethodRuleMatched,
			}},
			Unallocated: decimal.Zero,
		}
	default:
		return splitBySubtotal(src, candidates, discount.MethodRuleMatched)
	}
}

// MatchBundle returns the line items a combo source plausibly applies to.
// Fee-name matches compare whole words, so a group or name only matches
// when all of its words appear together in the fee name.
func MatchBundle(src discount.Source, items []discount.LineItem) []discount.LineItem {
	if src.Origin != "" {
		group := strings.ToLower(src.Origin)
		return lo.Filter(items, func(item discount.LineItem, _ int) bool {
			return strings.ToLower(item.Group) == group
		})
	}

	feeWords := words(src.Name)
	if len(feeWords) == 0 {
		return nil
	}

	// Prefer group membership over product names: a group hit pulls in every
	// item of that group.
	groups := lo.Uniq(lo.FilterMap(items, func(item discount.LineItem, _ int) (string, bool) {
		g := strings.ToLower(item.Group)
		return g, containsWords(feeWords, words(g))
	}))
	if len(groups) > 0 {
		return lo.Filter(items, func(item discount.LineItem, _ int) bool {
			return lo.Contains(groups, strings.ToLower(item.Group))
		})
	}

	return lo.Filter(items, func(item discount.LineItem, _ int) bool {
		return containsWords(feeWords, words(item.Name))
	})
}

// words splits s into lower-case letter and digit runs.
func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// containsWords reports whether needle occurs as a contiguous run in haystack.
func containsWords(haystack, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return false
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if slices.Equal(haystack[i:i+len(needle)], needle) {
			return true
		}
	}
	return false
}
