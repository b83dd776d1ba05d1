package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersAllMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.ActiveConnections.Inc()
	m.ConnectionsTotal.Inc()
	m.MessagesSent.Inc()
	m.EventsReceived.Inc()

	families, err := registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["notifyd_active_connection_count"])
	assert.True(t, names["notifyd_connection_total"])
	assert.True(t, names["notifyd_message_total"])
	assert.True(t, names["notifyd_event_total"])
}

func TestGaugeMovesBothWays(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ActiveConnections.Inc()
	m.ActiveConnections.Inc()
	m.ActiveConnections.Dec()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ActiveConnections))
}
