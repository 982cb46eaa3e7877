package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Signals.WithLabelValues("buy").Add(3)
	m.Notifications.WithLabelValues("sent").Inc()
	m.PersistErrors.Inc()

	assert.Equal(t, 3.0, testutil.ToFloat64(m.Signals.WithLabelValues("buy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PersistErrors))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["memebot_classifier_signals_total"])
	assert.True(t, names["memebot_notify_notifications_total"])
	assert.True(t, names["memebot_sink_persist_errors_total"])
}

func TestNewTwiceOnSameRegistryPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}

func TestNewWithoutRegistry(t *testing.T) {
	m := New(nil)
	m.Cycles.WithLabelValues("poll").Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Cycles.WithLabelValues("poll")))
}
