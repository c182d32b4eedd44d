package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records broker and service metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordEmit records an event entering the queue.
	RecordEmit(ctx context.Context, eventType string)

	// RecordHandler records one handler invocation with its duration and error status.
	RecordHandler(ctx context.Context, eventType, service string, duration time.Duration, err error)

	// RecordDrain records a completed drain.
	RecordDrain(ctx context.Context, processed int, duration time.Duration)

	// RecordSnapshot records a snapshot save.
	RecordSnapshot(ctx context.Context, sizeBytes int64)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	eventsEmitted      metric.Int64Counter
	handlerInvocations metric.Int64Counter
	handlerFailures    metric.Int64Counter
	handlerLatency     metric.Float64Histogram
	drainEvents        metric.Int64Counter
	drainLatency       metric.Float64Histogram
	snapshotSize       metric.Int64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("eventlibrary")

	eventsEmitted, err := meter.Int64Counter("eventlibrary.events.emitted",
		metric.WithDescription("Number of events emitted into the queue"),
	)
	if err != nil {
		return nil, err
	}

	handlerInvocations, err := meter.Int64Counter("eventlibrary.handler.invocations",
		metric.WithDescription("Number of handler invocations"),
	)
	if err != nil {
		return nil, err
	}

	handlerFailures, err := meter.Int64Counter("eventlibrary.handler.failures",
		metric.WithDescription("Number of handler failures"),
	)
	if err != nil {
		return nil, err
	}

	handlerLatency, err := meter.Float64Histogram("eventlibrary.handler.latency_ms",
		metric.WithDescription("Handler latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	drainEvents, err := meter.Int64Counter("eventlibrary.drain.events",
		metric.WithDescription("Number of events popped by drains"),
	)
	if err != nil {
		return nil, err
	}

	drainLatency, err := meter.Float64Histogram("eventlibrary.drain.latency_ms",
		metric.WithDescription("Drain latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	snapshotSize, err := meter.Int64Histogram("eventlibrary.snapshot.size_bytes",
		metric.WithDescription("Snapshot size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		eventsEmitted:      eventsEmitted,
		handlerInvocations: handlerInvocations,
		handlerFailures:    handlerFailures,
		handlerLatency:     handlerLatency,
		drainEvents:        drainEvents,
		drainLatency:       drainLatency,
		snapshotSize:       snapshotSize,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordEmit records an emitted event.
func (m *otelMetrics) RecordEmit(ctx context.Context, eventType string) {
	m.eventsEmitted.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}

// RecordHandler records a handler invocation.
func (m *otelMetrics) RecordHandler(ctx context.Context, eventType, service string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("event_type", eventType),
		attribute.String("service", service),
	}

	m.handlerInvocations.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.handlerLatency.Record(ctx, float64(duration.Microseconds())/1000, metric.WithAttributes(attrs...))

	if err != nil {
		m.handlerFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordDrain records a drain.
func (m *otelMetrics) RecordDrain(ctx context.Context, processed int, duration time.Duration) {
	m.drainEvents.Add(ctx, int64(processed))
	m.drainLatency.Record(ctx, float64(duration.Microseconds())/1000)
}

// RecordSnapshot records a snapshot save.
func (m *otelMetrics) RecordSnapshot(ctx context.Context, sizeBytes int64) {
	m.snapshotSize.Record(ctx, sizeBytes)
}
