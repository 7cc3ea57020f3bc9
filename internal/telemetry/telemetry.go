// Package telemetry wraps a *zap.Logger and a small set of prometheus
// metrics behind the level-gated surface the teacher's pkg/logger exposed
// (Debug/Info/Warn/Error/Banner), so structured fields (connection id, tick
// id, participant id) replace pre-formatted strings without changing the
// shape callers reach for.
package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Telemetry bundles a structured logger with the core's metrics and a
// connection-lifecycle event bus.
type Telemetry struct {
	log     *zap.Logger
	Metrics *Metrics
	Events  *EventBus
}

// EventType distinguishes the connection-lifecycle notifications the event
// bus carries.
type EventType int

const (
	EventConnectionEstablished EventType = iota
	EventConnectionClosed
	EventDesyncDetected
)

// ConnectionEvent is one lifecycle notification, carrying whatever detail
// the specific EventType calls for in Data (e.g. the error text of the
// failed in-band datagram check for EventDesyncDetected).
type ConnectionEvent struct {
	Type         EventType
	ConnectionID uint8
	Data         interface{}
}

// EventHandler receives fired ConnectionEvents.
type EventHandler func(ConnectionEvent)

// EventBus is a register/fire dispatcher for connection lifecycle events,
// adapted from the teacher's core/events.EventManager (player connect/
// disconnect/spawn notifications) onto this core's own lifecycle: connection
// established, connection closed, desync detected.
type EventBus struct {
	handlers map[EventType][]EventHandler
}

// NewEventBus creates an EventBus with no handlers registered.
func NewEventBus() *EventBus {
	return &EventBus{handlers: make(map[EventType][]EventHandler)}
}

// On registers handler to run whenever an event of type t fires.
func (b *EventBus) On(t EventType, handler EventHandler) {
	b.handlers[t] = append(b.handlers[t], handler)
}

// Emit runs every handler registered for event.Type, in registration order.
func (b *EventBus) Emit(event ConnectionEvent) {
	for _, handler := range b.handlers[event.Type] {
		handler(event)
	}
}

// Metrics are the counters/gauges scraped over /metrics.
type Metrics struct {
	AuthoritativeTicksProduced prometheus.Counter
	ConnectionsActive          prometheus.Gauge
	BlobChunksResent           prometheus.Counter
	StepsDropped               prometheus.Counter
	ConnectionDebugCounter     *prometheus.GaugeVec
}

// NewMetrics registers a fresh set of metrics against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthoritativeTicksProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lockstep",
			Name:      "authoritative_ticks_produced_total",
			Help:      "Authoritative combined steps produced by the host combinator.",
		}),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lockstep",
			Name:      "connections_active",
			Help:      "Currently connected clients.",
		}),
		BlobChunksResent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lockstep",
			Name:      "blob_chunks_resent_total",
			Help:      "Blob-stream chunks sent, first sends and resends alike.",
		}),
		StepsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lockstep",
			Name:      "steps_dropped_total",
			Help:      "Predicted steps discarded as stale or too far ahead by the combinator.",
		}),
		ConnectionDebugCounter: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "lockstep",
			Name:      "connection_debug_counter",
			Help:      "Per-connection datagram counter, labeled by connection id.",
		}, []string{"connection_id"}),
	}
	reg.MustRegister(m.AuthoritativeTicksProduced, m.ConnectionsActive, m.BlobChunksResent, m.StepsDropped, m.ConnectionDebugCounter)
	return m
}

// New builds a Telemetry at the given minimum zap level, registering its
// metrics against reg.
func New(level zapcore.Level, reg prometheus.Registerer) (*Telemetry, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("telemetry: building zap logger: %w", err)
	}
	t := &Telemetry{log: logger, Metrics: NewMetrics(reg), Events: NewEventBus()}
	t.Events.On(EventConnectionEstablished, func(e ConnectionEvent) {
		t.Info("connection established", zap.Uint8("connection_id", e.ConnectionID))
	})
	t.Events.On(EventConnectionClosed, func(e ConnectionEvent) {
		t.Info("connection closed", zap.Uint8("connection_id", e.ConnectionID))
	})
	t.Events.On(EventDesyncDetected, func(e ConnectionEvent) {
		t.Warn("desync detected", zap.Uint8("connection_id", e.ConnectionID), zap.Any("detail", e.Data))
	})
	return t, nil
}

// Debug logs at debug level with structured fields.
func (t *Telemetry) Debug(msg string, fields ...zap.Field) { t.log.Debug(msg, fields...) }

// Info logs at info level with structured fields.
func (t *Telemetry) Info(msg string, fields ...zap.Field) { t.log.Info(msg, fields...) }

// Warn logs at warn level with structured fields.
func (t *Telemetry) Warn(msg string, fields ...zap.Field) { t.log.Warn(msg, fields...) }

// Error logs at error level with structured fields.
func (t *Telemetry) Error(msg string, fields ...zap.Field) { t.log.Error(msg, fields...) }

// Banner logs the startup banner the teacher's entry points printed via
// pkg/logger, now as one structured info line.
func (t *Telemetry) Banner(component, addr string, fields ...zap.Field) {
	all := append([]zap.Field{zap.String("component", component), zap.String("addr", addr)}, fields...)
	t.log.Info("starting", all...)
}

// Sync flushes any buffered log entries; call before process exit.
func (t *Telemetry) Sync() error {
	return t.log.Sync()
}
