package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewRegistersMetricsAndLogs(t *testing.T) {
	reg := prometheus.NewRegistry()
	tel, err := New(zapcore.InfoLevel, reg)
	require.NoError(t, err)

	tel.Metrics.AuthoritativeTicksProduced.Inc()
	tel.Metrics.ConnectionsActive.Set(3)
	tel.Metrics.ConnectionDebugCounter.WithLabelValues("1").Set(7)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)

	tel.Info("test message")
	_ = tel.Sync()
}

func TestEventBusFiresRegisteredHandlersInOrder(t *testing.T) {
	reg := prometheus.NewRegistry()
	tel, err := New(zapcore.InfoLevel, reg)
	require.NoError(t, err)

	var seen []EventType
	tel.Events.On(EventConnectionEstablished, func(e ConnectionEvent) {
		seen = append(seen, e.Type)
	})
	tel.Events.On(EventConnectionEstablished, func(e ConnectionEvent) {
		seen = append(seen, e.Type)
	})
	tel.Events.Emit(ConnectionEvent{Type: EventConnectionEstablished, ConnectionID: 3})

	require.Equal(t, []EventType{EventConnectionEstablished, EventConnectionEstablished}, seen)
}

func TestEventBusOnlyFiresHandlersForMatchingType(t *testing.T) {
	b := NewEventBus()
	fired := false
	b.On(EventConnectionClosed, func(ConnectionEvent) { fired = true })
	b.Emit(ConnectionEvent{Type: EventConnectionEstablished})
	require.False(t, fired)
}

func TestNewRejectsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(zapcore.InfoLevel, reg)
	require.NoError(t, err)

	require.Panics(t, func() {
		NewMetrics(reg)
	})
}
