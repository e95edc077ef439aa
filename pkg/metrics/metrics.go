package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "savora_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RealtimeConnections tracks currently open WebSocket connections.
	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "savora_realtime_connections",
			Help: "Number of open realtime connections",
		},
	)

	// RealtimeEventsDelivered counts events enqueued to subscribers per room kind.
	RealtimeEventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "savora_realtime_events_delivered_total",
			Help: "Total realtime events delivered to subscribers",
		},
		[]string{"room"},
	)

	// RealtimeEventsDropped counts events dropped due to slow consumers.
	RealtimeEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "savora_realtime_events_dropped_total",
			Help: "Total realtime events dropped on backpressure",
		},
	)

	// NotificationsCreated counts notification records created by type.
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "savora_notifications_created_total",
			Help: "Total notifications created",
		},
		[]string{"type"},
	)
)
