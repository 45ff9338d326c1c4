// Package metrics exposes Prometheus collectors for the realtime layer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors shared by the gateway and the rate limiter.
type Metrics struct {
	registry *prometheus.Registry

	RateLimitDenials *prometheus.CounterVec
	Connections      prometheus.Gauge
	Broadcasts       *prometheus.CounterVec
	EventsHandled    *prometheus.CounterVec
}

// New constructs a Metrics instance with its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		RateLimitDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slate_ratelimit_denials_total",
			Help: "Rate-limit denials by action and reason.",
		}, []string{"action", "reason"}),

		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "slate_ws_connections",
			Help: "Open websocket connections.",
		}),

		Broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slate_room_broadcasts_total",
			Help: "Room broadcasts by event type.",
		}, []string{"type"}),

		EventsHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slate_events_handled_total",
			Help: "Inbound events by type and outcome.",
		}, []string{"type", "outcome"}),
	}

	reg.MustRegister(m.RateLimitDenials, m.Connections, m.Broadcasts, m.EventsHandled)
	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
