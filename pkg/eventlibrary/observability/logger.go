// Package observability provides structured logging, metrics, and tracing
// for the broker and services.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"io"
	"log/slog"
	"strings"
	"time"
)

// NewLogger builds a logger writing to w. Format "json" selects the JSON
// handler; anything else selects the text handler.
func NewLogger(w io.Writer, format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// EnrichLogger adds event context to a logger.
// Returns a new logger with event_id, event_type, and correlation_id fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, evt.ID(), evt.Type, evt.CorrelationID())
//	enriched.Info("handling") // includes event_id, event_type, correlation_id
func EnrichLogger(logger *slog.Logger, eventID, eventType, correlationID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("event_id", eventID),
		slog.String("event_type", eventType),
		slog.String("correlation_id", correlationID),
	)
}

// ServiceLogger scopes a logger to a service.
func ServiceLogger(logger *slog.Logger, service string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(slog.String("service", service))
}

// LogEventEmitted logs an event entering the queue.
func LogEventEmitted(logger *slog.Logger, eventID, eventType, correlationID string, queueLen int) {
	if logger == nil {
		return
	}
	logger.Debug("event emitted",
		slog.String("event_id", eventID),
		slog.String("event_type", eventType),
		slog.String("correlation_id", correlationID),
		slog.Int("queue_len", queueLen),
	)
}

// LogDispatch logs an event being handed to its handlers. Pass a logger
// from EnrichLogger so the event's identifiers are attached.
func LogDispatch(logger *slog.Logger, handlers int) {
	if logger == nil {
		return
	}
	logger.Debug("dispatching event", slog.Int("handlers", handlers))
}

// LogHandlerRegistered logs a new handler registration.
func LogHandlerRegistered(logger *slog.Logger, eventType, service string) {
	if logger == nil {
		return
	}
	if eventType == "" {
		eventType = "*"
	}
	logger.Debug("handler registered",
		slog.String("event_type", eventType),
		slog.String("service", service),
	)
}

// LogHandlerFailed logs a contained handler failure.
func LogHandlerFailed(logger *slog.Logger, eventID, eventType, service string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("handler failed",
		slog.String("event_id", eventID),
		slog.String("event_type", eventType),
		slog.String("service", service),
		slog.String("error", err.Error()),
	)
}

// LogEventRejected logs an event that failed schema validation.
func LogEventRejected(logger *slog.Logger, eventID, eventType string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("event rejected",
		slog.String("event_id", eventID),
		slog.String("event_type", eventType),
		slog.String("error", err.Error()),
	)
}

// LogDrainComplete logs the end of a drain.
func LogDrainComplete(logger *slog.Logger, processed, failures, remaining int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("drain completed",
		slog.Int("events_processed", processed),
		slog.Int("handler_failures", failures),
		slog.Int("events_remaining", remaining),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogOperation logs a completed service operation.
func LogOperation(logger *slog.Logger, op string, attrs ...slog.Attr) {
	if logger == nil {
		return
	}
	args := make([]any, 0, len(attrs)+1)
	args = append(args, slog.String("operation", op))
	for _, a := range attrs {
		args = append(args, a)
	}
	logger.Info("operation completed", args...)
}

// LogOperationRejected logs a service operation refused with a domain error.
func LogOperationRejected(logger *slog.Logger, op string, err error) {
	if logger == nil {
		return
	}
	logger.Debug("operation rejected",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// LogAnomaly logs a detected usage anomaly.
func LogAnomaly(logger *slog.Logger, kind, userID string, count int) {
	if logger == nil {
		return
	}
	logger.Warn("anomaly detected",
		slog.String("anomaly", kind),
		slog.String("user_id", userID),
		slog.Int("count", count),
	)
}

// LogSnapshot logs snapshot creation.
func LogSnapshot(logger *slog.Logger, snapshotID string, components int, sizeBytes int) {
	if logger == nil {
		return
	}
	logger.Info("snapshot created",
		slog.String("snapshot_id", snapshotID),
		slog.Int("components", components),
		slog.Int("size_bytes", sizeBytes),
	)
}

// LogSnapshotError logs snapshot failure.
func LogSnapshotError(logger *slog.Logger, op string, err error) {
	if logger == nil {
		return
	}
	logger.Error("snapshot failed",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
