// Package event defines the envelope, payload and handler types shared by
// the broker and every service.
//
// # Envelopes
//
// An Envelope wraps a Payload with its type tag and Metadata (event id,
// correlation id, timestamp). Payloads are typed structs, one per event
// type, so handlers read exactly the fields emitters set:
//
//	evt := event.New(event.BookBorrowed{UserID: uid, BookID: bid})
//	evt.Type // "BookBorrowed"
//
// New copies the payload. Payloads holding maps or slices implement Cloner
// and are deep-copied, so a caller mutating its data after emission cannot
// change the queued event.
//
// # Correlation
//
// Correlation ids link causally related events. Set one explicitly with
// WithCorrelationID, or carry it in a context:
//
//	ctx = event.ContextWithCorrelationID(ctx, "req-42")
//
// Without either, New generates a fresh one.
//
// # Handlers
//
// Every subscriber implements Handler. Typed adapts a function over one
// payload type:
//
//	h := event.Typed(func(ctx context.Context, p event.UserRegistered, meta event.Metadata) error {
//	    return nil
//	})
//
// # Schemas
//
// DefaultRegistry holds a Schema for each domain event type. The broker can
// validate events against it before dispatch.
package event
