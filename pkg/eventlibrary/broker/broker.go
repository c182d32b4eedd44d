// Package broker routes events between services.
//
// Events are emitted into a FIFO queue and dispatched later by an explicit
// drain (Process). During a drain every handler registered for an event's
// type runs in registration order, and a failing handler is recorded as a
// FailedEvent without affecting any other handler or event.
package broker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary/event"
	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary/observability"
)

// ServiceBroker is the service name recorded on failures raised by the broker itself.
const ServiceBroker = "broker"

// Config configures broker behavior.
type Config struct {
	// Logger receives structured logs. Nil disables logging.
	Logger *slog.Logger

	// Metrics records emit, handler and drain metrics.
	// Default: observability.NoopMetrics{}
	Metrics observability.MetricsRecorder

	// Spans creates drain and handler spans.
	// Default: observability.NoopSpanManager{}
	Spans observability.SpanManager

	// Registry for event validation (optional).
	Registry *event.Registry

	// ValidateEvents validates events whose type has a schema in Registry
	// before dispatch. Invalid events are recorded as failures of the broker
	// and never reach handlers.
	ValidateEvents bool

	// Middleware wraps every registered handler, first outermost. Panic
	// recovery always wraps the whole chain.
	Middleware []event.MiddlewareFunc

	// OnHandled is called after every handler invocation.
	OnHandled func(eventType, service string, duration time.Duration, err error)

	// Clock returns the current time. Default: time.Now
	Clock func() time.Time
}

// Registration binds a handler to an event type and its owning service.
type Registration struct {
	// EventType is the type the handler receives. Empty means every type.
	EventType string

	// Service names the owning service.
	Service string

	// Handler processes matching events.
	Handler event.Handler
}

// Matches reports whether the registration receives events of eventType.
func (r Registration) Matches(eventType string) bool {
	return r.EventType == "" || r.EventType == eventType
}

// Wildcard reports whether the registration receives every event type.
func (r Registration) Wildcard() bool {
	return r.EventType == ""
}

// FailedEvent records one handler failure for one event.
type FailedEvent struct {
	// Event is the envelope being processed when the handler failed.
	Event event.Envelope

	// Err is the failure, always a *event.HandlerError.
	Err error

	// Error is the failure description.
	Error string

	// FailedAt is when the failure was recorded.
	FailedAt time.Time

	// Service is the owning service of the failing handler.
	Service string
}

// Broker is an in-process message broker. Emit is safe for concurrent
// producers; at most one drain runs at a time.
type Broker struct {
	config Config
	logger *slog.Logger

	queue *event.Queue

	mu            sync.RWMutex
	registrations []Registration

	failedMu sync.Mutex
	failed   []FailedEvent

	// drainMu serializes drains so every handler for event N completes
	// before event N+1 is dispatched.
	drainMu sync.Mutex
}

// New creates a broker.
func New(config Config) *Broker {
	if config.Metrics == nil {
		config.Metrics = observability.NoopMetrics{}
	}
	if config.Spans == nil {
		config.Spans = observability.NoopSpanManager{}
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	return &Broker{
		config: config,
		logger: observability.ServiceLogger(config.Logger, ServiceBroker),
		queue:  event.NewQueue(),
	}
}

// Register appends a handler for eventType. Registering the same handler
// twice yields two invocations per matching event.
func (b *Broker) Register(eventType string, handler event.Handler, service string) {
	if eventType == "" {
		panic("broker: Register requires an event type; use RegisterAll for every type")
	}
	b.register(Registration{EventType: eventType, Service: service, Handler: handler})
}

// RegisterAll appends a handler that receives every event type, including
// types introduced after registration.
func (b *Broker) RegisterAll(handler event.Handler, service string) {
	b.register(Registration{Service: service, Handler: handler})
}

func (b *Broker) register(reg Registration) {
	if reg.Handler == nil {
		panic("broker: nil handler")
	}

	mw := make([]event.MiddlewareFunc, 0, len(b.config.Middleware)+1)
	mw = append(mw, event.RecoveryMiddleware())
	mw = append(mw, b.config.Middleware...)
	reg.Handler = event.ChainMiddleware(reg.Handler, mw...)

	b.mu.Lock()
	b.registrations = append(b.registrations, reg)
	b.mu.Unlock()

	observability.LogHandlerRegistered(b.logger, reg.EventType, reg.Service)
}

// Registrations returns, in invocation order, the registrations that
// receive eventType.
func (b *Broker) Registrations(eventType string) []Registration {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Registration
	for _, reg := range b.registrations {
		if reg.Matches(eventType) {
			out = append(out, reg)
		}
	}
	return out
}

// RegistrationCount returns the total number of registrations.
func (b *Broker) RegistrationCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.registrations)
}

// Emit wraps payload in a new envelope and appends it to the queue.
// The correlation ID comes from event.WithCorrelationID if given, else from
// ctx, else a fresh one is generated. Handlers are never invoked here.
func (b *Broker) Emit(ctx context.Context, payload event.Payload, opts ...event.Option) event.Envelope {
	all := make([]event.Option, 0, len(opts)+2)
	all = append(all, event.WithTimestamp(b.config.Clock()))
	if id := event.CorrelationIDFromContext(ctx); id != "" {
		all = append(all, event.WithCorrelationID(id))
	}
	all = append(all, opts...)

	evt := event.New(payload, all...)
	b.queue.Push(evt)

	b.config.Metrics.RecordEmit(ctx, evt.Type)
	observability.LogEventEmitted(b.logger, evt.ID(), evt.Type, evt.CorrelationID(), b.queue.Len())

	return evt
}

// Pending returns the number of queued events.
func (b *Broker) Pending() int {
	return b.queue.Len()
}

// PendingEvents returns a copy of the queued events in order.
func (b *Broker) PendingEvents() []event.Envelope {
	return b.queue.Snapshot()
}

// ProcessAll drains the queue until it is empty, including events emitted
// by handlers during the drain.
func (b *Broker) ProcessAll(ctx context.Context) int {
	return b.Process(ctx, 0)
}

// Process pops up to maxEvents events (all when maxEvents <= 0) and
// dispatches each to every matching handler in registration order.
// Returns the number of events popped. Handlers must not call Process.
func (b *Broker) Process(ctx context.Context, maxEvents int) int {
	b.drainMu.Lock()
	defer b.drainMu.Unlock()

	start := time.Now()
	ctx, span := b.config.Spans.StartDrainSpan(ctx, b.queue.Len())

	processed := 0
	failures := 0
	for maxEvents <= 0 || processed < maxEvents {
		evt, ok := b.queue.Pop()
		if !ok {
			break
		}
		processed++
		failures += b.dispatch(ctx, evt)
	}

	b.config.Spans.EndSpanWithError(span, nil)
	duration := time.Since(start)
	b.config.Metrics.RecordDrain(ctx, processed, duration)
	observability.LogDrainComplete(b.logger, processed, failures, b.queue.Len(), float64(duration.Microseconds())/1000)

	return processed
}

// dispatch delivers evt to every matching registration and returns the
// number of failures recorded.
func (b *Broker) dispatch(ctx context.Context, evt event.Envelope) int {
	logger := observability.EnrichLogger(b.logger, evt.ID(), evt.Type, evt.CorrelationID())

	if b.config.ValidateEvents && b.config.Registry != nil && b.config.Registry.Has(evt.Type) {
		if err := b.config.Registry.Validate(evt); err != nil {
			observability.LogEventRejected(b.logger, evt.ID(), evt.Type, err)
			b.config.Spans.AddSpanEvent(ctx, "event.rejected",
				attribute.String("event.type", evt.Type),
				attribute.String("event.id", evt.ID()),
			)
			b.recordFailure(evt, ServiceBroker, &event.HandlerError{
				Event:     evt,
				Service:   ServiceBroker,
				Message:   "event validation failed",
				Err:       err,
				Timestamp: b.config.Clock(),
			})
			return 1
		}
	}

	// Snapshot registrations so handlers may register or emit freely.
	regs := b.Registrations(evt.Type)
	observability.LogDispatch(logger, len(regs))
	if len(regs) == 0 {
		return 0
	}

	failures := 0
	for _, reg := range regs {
		if err := b.invoke(ctx, evt, reg); err != nil {
			b.recordFailure(evt, reg.Service, err)
			failures++
		}
	}
	return failures
}

// invoke runs one handler, converting returned errors into
// *event.HandlerError scoped to the registration's service. Panics arrive
// here already converted by the recovery middleware.
func (b *Broker) invoke(ctx context.Context, evt event.Envelope, reg Registration) error {
	ctx, span := b.config.Spans.StartHandlerSpan(ctx, evt.Type, evt.ID(), evt.CorrelationID(), reg.Service)
	start := time.Now()

	err := b.scope(evt, reg, reg.Handler.Handle(ctx, evt))

	duration := time.Since(start)
	b.config.Spans.EndSpanWithError(span, err)
	b.config.Metrics.RecordHandler(ctx, evt.Type, reg.Service, duration, err)
	if b.config.OnHandled != nil {
		b.config.OnHandled(evt.Type, reg.Service, duration, err)
	}
	return err
}

func (b *Broker) scope(evt event.Envelope, reg Registration, herr error) error {
	if herr == nil {
		return nil
	}

	var handlerErr *event.HandlerError
	if errors.As(herr, &handlerErr) && handlerErr.Service == "" {
		scoped := *handlerErr
		scoped.Service = reg.Service
		if scoped.Timestamp.IsZero() {
			scoped.Timestamp = b.config.Clock()
		}
		return &scoped
	}
	return &event.HandlerError{
		Event:     evt,
		Service:   reg.Service,
		Err:       herr,
		Timestamp: b.config.Clock(),
	}
}

func (b *Broker) recordFailure(evt event.Envelope, service string, err error) {
	observability.LogHandlerFailed(b.logger, evt.ID(), evt.Type, service, err)

	b.failedMu.Lock()
	defer b.failedMu.Unlock()
	b.failed = append(b.failed, FailedEvent{
		Event:    evt,
		Err:      err,
		Error:    err.Error(),
		FailedAt: b.config.Clock(),
		Service:  service,
	})
}

// FailedEvents returns a copy of the accumulated failure log.
func (b *Broker) FailedEvents() []FailedEvent {
	b.failedMu.Lock()
	defer b.failedMu.Unlock()

	out := make([]FailedEvent, len(b.failed))
	copy(out, b.failed)
	return out
}

// Reset clears the queue, every registration, and the failure log.
func (b *Broker) Reset() {
	b.queue.Clear()

	b.mu.Lock()
	b.registrations = nil
	b.mu.Unlock()

	b.failedMu.Lock()
	b.failed = nil
	b.failedMu.Unlock()
}
