package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "emotion", Name: "trip_transitions_total", Help: "Trip transitions by operation and outcome"},
		[]string{"operation", "outcome"},
	)
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "emotion", Name: "bus_events_published_total", Help: "Events published to the bus by queue"},
		[]string{"queue"},
	)
	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "emotion", Name: "bus_events_consumed_total", Help: "Events consumed from the bus by queue and outcome"},
		[]string{"queue", "outcome"},
	)
	ConnectionsOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: "emotion", Name: "relay_connections_open", Help: "Open relay connections by role"},
		[]string{"role"},
	)
	PushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "emotion", Name: "relay_pushes_total", Help: "Relay push attempts by outcome"},
		[]string{"outcome"},
	)
	WaitsPending = promauto.NewGauge(
		prometheus.GaugeOpts{Namespace: "emotion", Name: "longpoll_waits_pending", Help: "Pending long-poll waits"},
	)
	WaitsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "emotion", Name: "longpoll_waits_resolved_total", Help: "Long-poll waits resolved by path"},
		[]string{"path"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "emotion", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "emotion",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
