// Package metrics defines the Prometheus collectors exported by notifyd.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "notifyd"

// Metrics holds the process-wide collectors. The active-connection gauge is
// incremented once per admitted session and decremented once at teardown;
// every other collector is a monotonic counter.
type Metrics struct {
	ActiveConnections prometheus.Gauge
	ConnectionsTotal  prometheus.Counter
	MessagesSent      prometheus.Counter
	EventsReceived    prometheus.Counter
}

// New registers the notifyd collectors with reg and returns them.
// Tests pass a fresh prometheus.NewRegistry() to keep collectors isolated.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connection_count",
			Help:      "Current number of admitted WebSocket connections",
		}),
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_total",
			Help:      "Total number of WebSocket connections admitted",
		}),
		MessagesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "message_total",
			Help:      "Total number of notification frames written to clients",
		}),
		EventsReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_total",
			Help:      "Total number of events received from the bus",
		}),
	}
}
