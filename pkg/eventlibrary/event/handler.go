package event

import (
	"context"
	"fmt"
)

// Handler processes a dispatched event. It is the single capability every
// subscriber implements; handlers that have no use for the metadata simply
// ignore it.
type Handler interface {
	Handle(ctx context.Context, evt Envelope) error
}

// Emitter publishes events. *broker.Broker satisfies it.
type Emitter interface {
	Emit(ctx context.Context, payload Payload, opts ...Option) Envelope
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, evt Envelope) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, evt Envelope) error {
	return f(ctx, evt)
}

// Typed wraps a function that handles one payload type. Dispatching an
// envelope carrying any other payload type fails with a *HandlerError.
func Typed[T Payload](fn func(ctx context.Context, payload T, meta Metadata) error) Handler {
	return &typedHandler[T]{fn: fn}
}

type typedHandler[T Payload] struct {
	fn func(ctx context.Context, payload T, meta Metadata) error
}

func (h *typedHandler[T]) Handle(ctx context.Context, evt Envelope) error {
	payload, ok := evt.Payload.(T)
	if !ok {
		var want T
		return &HandlerError{
			Event:   evt,
			Message: fmt.Sprintf("unexpected payload type %T, want %T", evt.Payload, want),
		}
	}
	return h.fn(ctx, payload, evt.Meta)
}

// MiddlewareFunc wraps handlers to add cross-cutting concerns.
type MiddlewareFunc func(next Handler) Handler

// ChainMiddleware applies middleware in order, with first middleware outermost.
func ChainMiddleware(handler Handler, middleware ...MiddlewareFunc) Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		handler = middleware[i](handler)
	}
	return handler
}

// RecoveryMiddleware turns handler panics into *HandlerError values.
func RecoveryMiddleware() MiddlewareFunc {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, evt Envelope) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = &HandlerError{
						Event:   evt,
						Message: fmt.Sprintf("handler panic: %v", r),
					}
				}
			}()
			return next.Handle(ctx, evt)
		})
	}
}
