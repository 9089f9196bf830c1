// Package metrics provides centralized Prometheus metrics for the relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Poll metrics track feed fetching.
var (
	// PollTotal counts fetch attempts by result (success, failure)
	PollTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_poll_total",
			Help: "Total number of feed fetch attempts",
		},
		[]string{"result"},
	)

	// PollDuration measures a single fetch attempt
	PollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_poll_duration_seconds",
			Help:    "Feed fetch duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)
)

// Cycle metrics track the poll, reconcile and schedule loop.
var (
	// CycleDuration measures a cycle from poll start to the last enqueue
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_cycle_duration_seconds",
			Help:    "Duration of a relay cycle excluding the inter-cycle pause",
			Buckets: prometheus.ExponentialBuckets(0.1, 4, 10),
		},
	)

	// NewItemsTotal counts items appended by reconciliation
	NewItemsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_new_items_total",
			Help: "Total number of feed items appended to the store",
		},
	)

	// FloodDelay is the per-item pacing chosen for the latest cycle
	FloodDelay = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_flood_delay_seconds",
			Help: "Delay between enqueued items chosen by flood control",
		},
	)

	// HistoryMarkedTotal counts items marked SENT from publisher history
	HistoryMarkedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_history_marked_total",
			Help: "Total number of items marked sent from publisher history",
		},
	)

	// CleanupRemovedTotal counts SENT items removed by maintenance
	CleanupRemovedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_cleanup_removed_total",
			Help: "Total number of sent items removed from the store",
		},
	)
)

// Delivery metrics track the queue and sender.
var (
	// QueueDepth tracks items waiting for the sender
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_queue_depth",
			Help: "Number of items waiting in the delivery queue",
		},
	)

	// PublishAttemptsTotal counts publish calls by result (success, transient, permanent)
	PublishAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_publish_attempts_total",
			Help: "Total number of publish attempts",
		},
		[]string{"result"},
	)

	// DeliveriesTotal counts finished deliveries by final status
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_deliveries_total",
			Help: "Total number of finished deliveries by final status",
		},
		[]string{"status"},
	)

	// DeliveryDuration measures a delivery including retries
	DeliveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_delivery_duration_seconds",
			Help:    "Delivery duration in seconds including retries",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)
)

// Store metrics track the durable item record.
var (
	// StoreItems tracks the number of stored items
	StoreItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_store_items",
			Help: "Number of items in the store",
		},
	)

	// StorePending tracks stored items not yet SENT
	StorePending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_store_pending_items",
			Help: "Number of stored items whose status is not sent",
		},
	)

	// StoreFlushDuration measures full store rewrites
	StoreFlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_store_flush_duration_seconds",
			Help:    "Store flush duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
	)

	// StoreFlushErrors counts failed store rewrites
	StoreFlushErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_store_flush_errors_total",
			Help: "Total number of failed store flushes",
		},
	)

	// StatusTransitionsTotal counts status updates by new status
	StatusTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_status_transitions_total",
			Help: "Total number of item status updates by new status",
		},
		[]string{"status"},
	)
)
