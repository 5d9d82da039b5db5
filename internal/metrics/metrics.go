// Package metrics provides Prometheus metrics for the FlipForce tracker.
// Scrape these at /metrics for Grafana dashboards and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flipforce_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flipforce_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Reconciliation Cycle Metrics
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flipforce_cycles_total",
			Help: "Reconciliation cycles by outcome",
		},
		[]string{"outcome"}, // "persisted", "fetch_failed", "implausible_inventory", "commit_failed", "panic"
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flipforce_cycle_duration_seconds",
			Help:    "Time taken to run one series reconciliation cycle",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	SoldEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flipforce_sold_events_total",
			Help: "Sold-card events recorded, by verification",
		},
		[]string{"verification"}, // "hit_feed", "ambiguous", "default"
	)

	SwapSuspectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flipforce_swap_suspects_total",
			Help: "Suspected swap records created",
		},
	)

	DuplicateHitEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flipforce_duplicate_hit_events_total",
			Help: "Sold rows skipped because their hit-feed event id already resolved another card",
		},
	)

	ImplausibleInventoryFaults = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flipforce_implausible_inventory_faults_total",
			Help: "Cycles aborted because an active series reported an empty inventory",
		},
	)

	// Series Metrics
	SeriesExpectedValueCents = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flipforce_series_expected_value_cents",
			Help: "Latest expected value per pack in cents, by series",
		},
		[]string{"series_id", "series_name"},
	)

	SeriesROI = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flipforce_series_roi",
			Help: "Latest ROI ratio, by series",
		},
		[]string{"series_id", "series_name"},
	)

	SeriesMaxSold = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flipforce_series_max_sold",
			Help: "Monotonic packs-sold high-water mark, by series",
		},
		[]string{"series_id", "series_name"},
	)

	// Arena Club API Metrics
	ArenaClubRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flipforce_arena_club_requests_total",
			Help: "Total number of Arena Club API requests made",
		},
	)

	ArenaClubRequestsThrottled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flipforce_arena_club_requests_throttled_total",
			Help: "Requests refused because the daily budget was exhausted",
		},
	)

	ArenaClubRejectedRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flipforce_arena_club_rejected_records_total",
			Help: "Payload records dropped at the normalization boundary",
		},
	)
)
