// Package metrics exposes Prometheus collectors for the planner core.
// Served at /metrics by the web server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	cacheRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_cache_refresh_total",
			Help: "Session cache refresh cycles",
		},
		[]string{"result"}, // ok|error
	)

	quoteBatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_quote_batches_total",
			Help: "Quote fetch batches",
		},
		[]string{"result"}, // ok|error
	)

	plannedOrders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_orders_planned_total",
			Help: "Orders produced by planning passes",
		},
		[]string{"strategy"},
	)

	skippedOrders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_orders_skipped_total",
			Help: "Symbols skipped by planning passes",
		},
		[]string{"strategy"},
	)

	placements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_placements_total",
			Help: "Conditional order placement outcomes",
		},
		[]string{"status"}, // success|fail|skipped
	)

	committedAmount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "planner_committed_buy_amount",
			Help: "Capital committed in active BUY conditional orders",
		},
	)
)

func init() {
	prometheus.MustRegister(
		cacheRefreshes,
		quoteBatches,
		plannedOrders,
		skippedOrders,
		placements,
		committedAmount,
	)
}

// Handler serves the Prometheus text exposition format.
func Handler() http.Handler { return promhttp.Handler() }

func IncCacheRefresh(result string)     { cacheRefreshes.WithLabelValues(result).Inc() }
func IncQuoteBatch(result string)       { quoteBatches.WithLabelValues(result).Inc() }
func IncPlanned(strategy string)        { plannedOrders.WithLabelValues(strategy).Inc() }
func IncSkipped(strategy string)        { skippedOrders.WithLabelValues(strategy).Inc() }
func IncPlacement(status string)        { placements.WithLabelValues(status).Inc() }
func SetCommittedAmount(amount float64) { committedAmount.Set(amount) }
