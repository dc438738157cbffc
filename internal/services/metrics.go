package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// cacheRefreshes counts repository refreshes by result (ok|error|stale).
	cacheRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "laundry_cache_refresh_total",
			Help: "Order cache refreshes by result.",
		},
		[]string{"result"},
	)

	cacheRefreshLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "laundry_cache_refresh_duration_seconds",
			Help:    "Duration of order cache refreshes (fetch plus write).",
			Buckets: prometheus.DefBuckets,
		},
	)

	// pollTicks counts poller ticks by outcome (waiting|ready|disabled|error).
	pollTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "laundry_poll_ticks_total",
			Help: "Status poller ticks by outcome.",
		},
		[]string{"outcome"},
	)

	pollersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "laundry_pollers_active",
			Help: "Number of live status pollers.",
		},
	)

	// notificationsSent counts ready alerts by delivery result (delivered|failed).
	notificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "laundry_notifications_total",
			Help: "Order ready notifications by delivery result.",
		},
		[]string{"result"},
	)

	// sessionExpirations counts forced logouts by trigger (resume|timer).
	sessionExpirations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "laundry_session_expirations_total",
			Help: "Forced logouts after inactivity by trigger.",
		},
		[]string{"trigger"},
	)

	// bulkOutcomes counts bulk status applications by outcome.
	bulkOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "laundry_bulk_updates_total",
			Help: "Bulk status updates by aggregate outcome.",
		},
		[]string{"outcome"},
	)

	// bulkItems counts individual updates issued by bulk applications.
	bulkItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "laundry_bulk_update_items_total",
			Help: "Individual order updates issued by bulk updates, by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		cacheRefreshes, cacheRefreshLatency,
		pollTicks, pollersActive, notificationsSent,
		sessionExpirations,
		bulkOutcomes, bulkItems,
	)
}
