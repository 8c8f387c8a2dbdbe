package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dispatch metrics
var (
	DispatchCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "post_office_dispatch_cycles_total",
			Help: "Total number of queued-mail dispatch cycles",
		},
		[]string{"result"}, // ok, empty, error, locked
	)

	DispatchCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "post_office_dispatch_cycle_duration_seconds",
			Help:    "Duration of queued-mail dispatch cycles",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	DispatchSelected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "post_office_dispatch_selected_messages",
			Help: "Number of messages selected by the last dispatch cycle",
		},
	)

	MessagesDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "post_office_messages_dispatched_total",
			Help: "Total number of message delivery attempts",
		},
		[]string{"backend", "status"}, // status: sent, failed
	)

	MessageSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "post_office_message_send_duration_seconds",
			Help:    "Duration of single message delivery attempts",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	ConnectionOpenFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "post_office_connection_open_failures_total",
			Help: "Total number of failed shared transport connection opens",
		},
		[]string{"backend"},
	)
)

// Composer metrics
var (
	MessagesQueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "post_office_messages_created_total",
			Help: "Total number of persisted messages by priority",
		},
		[]string{"priority", "source"}, // source: api, smtp
	)
)

// SMTP ingress metrics
var (
	SMTPConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "post_office_smtp_connections_total",
			Help: "Total number of SMTP ingress connections",
		},
		[]string{"status"}, // accepted, rejected
	)

	SMTPActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "post_office_smtp_active_sessions",
			Help: "Number of currently active SMTP ingress sessions",
		},
	)

	SMTPMessageEnqueueDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "post_office_smtp_enqueue_duration_seconds",
			Help:    "Duration of SMTP ingress enqueue operations",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// API metrics
var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "post_office_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "post_office_api_request_duration_seconds",
			Help:    "Duration of API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Database metrics
var (
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "post_office_db_connections_active",
			Help: "Number of acquired database connections",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "post_office_db_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)

// ObservePool records connection pool occupancy.
func ObservePool(acquired, idle int32) {
	DBConnectionsActive.Set(float64(acquired))
	DBConnectionsIdle.Set(float64(idle))
}
