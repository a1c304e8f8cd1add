// Package metrics exposes engine counters on a private Prometheus registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Registry holds the engine's collectors.
// A nil *Registry is valid and records nothing.
type Registry struct {
	reg *prometheus.Registry

	OrdersProcessed  *prometheus.CounterVec
	SourcesTotal     *prometheus.CounterVec
	AllocatedAmount  prometheus.Counter
	UnallocatedTotal prometheus.Counter
	ConservationFail prometheus.Counter
	BackfillMigrated prometheus.Counter
	BackfillErrors   prometheus.Counter
	BackfillPending  prometheus.Gauge
}

// NewRegistry creates and registers all collectors.
func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "discounts_orders_processed_total",
		Help: "Orders run through the allocation engine, by mode and outcome.",
	}, []string{"mode", "outcome"})
	sources := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "discounts_sources_total",
		Help: "Classified discount sources, by type.",
	}, []string{"type"})
	allocated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "discounts_allocated_amount_total",
		Help: "Currency units allocated onto line items.",
	})
	unallocated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "discounts_unallocated_amount_total",
		Help: "Currency units that could not be placed on a line item.",
	})
	conservation := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "discounts_conservation_failures_total",
		Help: "Orders whose allocations fell outside the rounding tolerance.",
	})
	migrated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "discounts_backfill_migrated_total",
		Help: "Historical orders marked processed by the back-fill.",
	})
	backfillErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "discounts_backfill_errors_total",
		Help: "Historical orders that failed during back-fill.",
	})
	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "discounts_backfill_remaining",
		Help: "Historical orders still lacking a discount summary after the last batch.",
	})

	r.MustRegister(processed, sources, allocated, unallocated, conservation, migrated, backfillErrors, pending)
	return &Registry{
		reg:              r,
		OrdersProcessed:  processed,
		SourcesTotal:     sources,
		AllocatedAmount:  allocated,
		UnallocatedTotal: unallocated,
		ConservationFail: conservation,
		BackfillMigrated: migrated,
		BackfillErrors:   backfillErrors,
		BackfillPending:  pending,
	}
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObserveOrder records the outcome of one processing run.
func (r *Registry) ObserveOrder(mode, outcome string) {
	if r == nil {
		return
	}
	r.OrdersProcessed.WithLabelValues(mode, outcome).Inc()
}

// ObserveSource records one classified source.
func (r *Registry) ObserveSource(sourceType string) {
	if r == nil {
		return
	}
	r.SourcesTotal.WithLabelValues(sourceType).Inc()
}

// ObserveAmounts adds allocated and unallocated amounts.
func (r *Registry) ObserveAmounts(allocated, unallocated decimal.Decimal) {
	if r == nil {
		return
	}
	a, _ := allocated.Float64()
	u, _ := unallocated.Float64()
	if a > 0 {
		r.AllocatedAmount.Add(a)
	}
	if u > 0 {
		r.UnallocatedTotal.Add(u)
	}
}

// ObserveConservationFailure counts an order outside the rounding tolerance.
func (r *Registry) ObserveConservationFailure() {
	if r == nil {
		return
	}
	r.ConservationFail.Inc()
}

// ObserveBackfill records the outcome of one batch.
func (r *Registry) ObserveBackfill(migrated, errored, remaining int) {
	if r == nil {
		return
	}
	r.BackfillMigrated.Add(float64(migrated))
	r.BackfillErrors.Add(float64(errored))
	r.BackfillPending.Set(float64(remaining))
}
