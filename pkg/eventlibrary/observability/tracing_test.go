package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTracingTest creates a test tracer provider with an in-memory span recorder.
func setupTracingTest(t *testing.T) (*tracetest.InMemoryExporter, func()) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)

	originalProvider := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	// Update the package-level tracer
	tracer = otel.Tracer("eventlibrary")

	cleanup := func() {
		otel.SetTracerProvider(originalProvider)
		tracer = otel.Tracer("eventlibrary")
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down tracer provider: %v", err)
		}
	}

	return exporter, cleanup
}

func TestStartDrainSpan(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	sm := NewSpanManager()
	ctx, span := sm.StartDrainSpan(context.Background(), 4)
	require.NotNil(t, span)
	assert.NotNil(t, ctx)
	sm.EndSpanWithError(span, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "eventlibrary.drain", spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)

	var pending int64
	for _, attr := range spans[0].Attributes {
		if attr.Key == "queue.pending" {
			pending = attr.Value.AsInt64()
		}
	}
	assert.Equal(t, int64(4), pending)
}

func TestStartHandlerSpanIsChild(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	sm := NewSpanManager()
	ctx, drain := sm.StartDrainSpan(context.Background(), 1)
	_, handler := sm.StartHandlerSpan(ctx, "BookBorrowed", "evt-1", "corr-1", "AuditService")
	sm.EndSpanWithError(handler, errors.New("boom"))
	sm.EndSpanWithError(drain, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	h := spans[0]
	assert.Equal(t, "eventlibrary.handle.BookBorrowed", h.Name)
	assert.Equal(t, codes.Error, h.Status.Code)
	assert.Equal(t, spans[1].SpanContext.SpanID(), h.Parent.SpanID())

	found := false
	for _, attr := range h.Attributes {
		if attr.Key == "service.name" {
			found = true
			assert.Equal(t, "AuditService", attr.Value.AsString())
		}
	}
	assert.True(t, found)
}

func TestAddSpanEvent(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	sm := NewSpanManager()
	ctx, span := sm.StartDrainSpan(context.Background(), 0)
	sm.AddSpanEvent(ctx, "event.consumed", attribute.String("event.type", "T"))
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "event.consumed", spans[0].Events[0].Name)
}

func TestNoopSpanManager(t *testing.T) {
	var sm SpanManager = NoopSpanManager{}
	ctx := context.Background()

	got, span := sm.StartDrainSpan(ctx, 1)
	assert.Equal(t, ctx, got)
	assert.NotPanics(t, func() {
		sm.EndSpanWithError(span, errors.New("x"))
		sm.AddSpanEvent(ctx, "e")
	})

	var m MetricsRecorder = NoopMetrics{}
	assert.NotPanics(t, func() {
		m.RecordEmit(ctx, "T")
		m.RecordDrain(ctx, 1, 0)
	})
}
