package validator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/eshaffer321/discount-allocator/internal/domain/discount"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func src(amount string) discount.Source {
	return discount.Source{Name: "s", Type: discount.SourceCoupon, Amount: d(amount)}
}

func rec(total string) discount.ItemRecord {
	return discount.ItemRecord{ItemID: "i", Total: d(total)}
}

func TestValidateConservation_Exact(t *testing.T) {
	// Combo 10.00 on A, coupon 5.00 split 2.50/2.50
	sources := []discount.Source{src("10.00"), src("5.00")}
	records := []discount.ItemRecord{rec("12.50"), rec("2.50")}

	result := ValidateConservation(sources, records, decimal.Zero)

	assert.True(t, result.Valid)
	assert.True(t, result.Difference.IsZero())
	assert.Equal(t, "15.00", result.SourceTotal.StringFixed(2))
	assert.Empty(t, result.Reason)
}

func TestValidateConservation_RoundingSlackWithinTolerance(t *testing.T) {
	// $10 over three items: 3.33 x 3 = 9.99
	sources := []discount.Source{src("10.00")}
	records := []discount.ItemRecord{rec("3.33"), rec("3.33"), rec("3.33")}

	result := ValidateConservation(sources, records, decimal.Zero)

	assert.True(t, result.Valid)
	assert.Equal(t, "0.01", result.Difference.StringFixed(2))
	assert.Equal(t, "0.01", result.Tolerance.StringFixed(2))
}

func TestValidateConservation_CountsUnallocated(t *testing.T) {
	sources := []discount.Source{src("8.00"), src("2.00")}
	records := []discount.ItemRecord{rec("2.00")}

	result := ValidateConservation(sources, records, d("8.00"))

	assert.True(t, result.Valid)
}

func TestValidateConservation_Missing(t *testing.T) {
	sources := []discount.Source{src("8.00")}
	records := []discount.ItemRecord{rec("5.00")}

	result := ValidateConservation(sources, records, decimal.Zero)

	assert.False(t, result.Valid)
	assert.Contains(t, result.Reason, "less than the sources")
}

func TestValidateConservation_OverAllocated(t *testing.T) {
	sources := []discount.Source{src("5.00")}
	records := []discount.ItemRecord{rec("5.00"), rec("1.00")}

	result := ValidateConservation(sources, records, decimal.Zero)

	assert.False(t, result.Valid)
	assert.Contains(t, result.Reason, "over-allocated")
}

func TestValidateConservation_NoSources(t *testing.T) {
	result := ValidateConservation(nil, nil, decimal.Zero)

	assert.True(t, result.Valid)
	assert.True(t, result.SourceTotal.IsZero())
}
