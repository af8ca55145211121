package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dkp_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dkp_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Session metrics
	ActiveConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dkp_ws_connections_active",
			Help: "Currently connected websocket sessions",
		},
		[]string{"role"},
	)

	PresenceCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dkp_presence_count",
			Help: "Connected sessions per presence group",
		},
		[]string{"group"},
	)

	// Messaging metrics
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dkp_messages_sent_total",
			Help: "Total messages routed",
		},
		[]string{"message_type"},
	)

	Acknowledgments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dkp_acknowledgments_total",
			Help: "Total message acknowledgments",
		},
		[]string{"kind"}, // "single" or "bulk"
	)

	DroppedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dkp_dropped_events_total",
			Help: "Events dropped before delivery to a session",
		},
		[]string{"reason"},
	)
)
