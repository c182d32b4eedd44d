package event

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Payload is implemented by every event body. The event type travels with
// the payload so emitters cannot pair a body with the wrong type tag.
type Payload interface {
	EventType() string
}

// Cloner is implemented by payloads that hold reference data (maps, slices).
// Clone must return a deep copy.
type Cloner interface {
	Clone() Payload
}

// UserReference is implemented by payloads that refer to a user.
type UserReference interface {
	UserRef() string
}

// BookReference is implemented by payloads that refer to a book.
type BookReference interface {
	BookRef() string
}

// Metadata carries the provenance of an emitted event.
type Metadata struct {
	EventID       string    `json:"event_id"`
	CorrelationID string    `json:"correlation_id"`
	Timestamp     time.Time `json:"timestamp"`

	// RetryCount is reserved. Failed handlers are never retried, so it stays 0.
	RetryCount int `json:"retry_count"`
}

// Envelope wraps an emitted payload with its type tag and metadata.
// Envelopes are handed to handlers by value and are never modified after
// creation.
type Envelope struct {
	Type    string   `json:"type"`
	Payload Payload  `json:"payload"`
	Meta    Metadata `json:"metadata"`
}

// ID returns the unique event identifier.
func (e Envelope) ID() string {
	return e.Meta.EventID
}

// CorrelationID returns the correlation ID linking related events.
func (e Envelope) CorrelationID() string {
	return e.Meta.CorrelationID
}

// Timestamp returns when the event was created.
func (e Envelope) Timestamp() time.Time {
	return e.Meta.Timestamp
}

// Option configures envelope creation.
type Option func(*envelopeConfig)

type envelopeConfig struct {
	id            string
	correlationID string
	timestamp     time.Time
}

// WithEventID sets a specific event ID (default: auto-generated UUID).
func WithEventID(id string) Option {
	return func(cfg *envelopeConfig) {
		cfg.id = id
	}
}

// WithCorrelationID sets the correlation ID (default: auto-generated UUID).
func WithCorrelationID(id string) Option {
	return func(cfg *envelopeConfig) {
		cfg.correlationID = id
	}
}

// WithTimestamp sets a specific timestamp (default: time.Now()).
func WithTimestamp(t time.Time) Option {
	return func(cfg *envelopeConfig) {
		cfg.timestamp = t
	}
}

// New creates an envelope around payload. The payload is copied: payloads
// implementing Cloner are deep-copied, all others are value types.
func New(payload Payload, opts ...Option) Envelope {
	cfg := &envelopeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.id == "" {
		cfg.id = uuid.New().String()
	}
	if cfg.correlationID == "" {
		cfg.correlationID = uuid.New().String()
	}
	if cfg.timestamp.IsZero() {
		cfg.timestamp = time.Now()
	}

	return Envelope{
		Type:    payload.EventType(),
		Payload: Copy(payload),
		Meta: Metadata{
			EventID:       cfg.id,
			CorrelationID: cfg.correlationID,
			Timestamp:     cfg.timestamp,
		},
	}
}

// Copy returns an independent copy of payload.
func Copy(payload Payload) Payload {
	if c, ok := payload.(Cloner); ok {
		return c.Clone()
	}
	return payload
}

type contextKey string

const correlationKey contextKey = "correlation_id"

// ContextWithCorrelationID returns a context carrying a correlation ID.
// Events emitted with this context join the same causal chain.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey, id)
}

// CorrelationIDFromContext returns the correlation ID stored in ctx, if any.
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(correlationKey).(string); ok {
		return v
	}
	return ""
}
