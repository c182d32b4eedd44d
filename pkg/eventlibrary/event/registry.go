package event

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownType is returned when validating an event whose type has no schema.
var ErrUnknownType = errors.New("unknown event type")

// Schema describes an event type.
type Schema struct {
	// Type is the event type tag (e.g., "BookBorrowed").
	Type string

	// Source is the service that emits the event (e.g., "library").
	Source string

	// Description explains the event's purpose.
	Description string

	// Validator is an optional payload check run before dispatch.
	Validator func(Envelope) error
}

// Validate checks if an event conforms to this schema.
func (s *Schema) Validate(evt Envelope) error {
	if evt.Type != s.Type {
		return fmt.Errorf("event type mismatch: expected %s, got %s", s.Type, evt.Type)
	}
	if evt.Payload == nil {
		return fmt.Errorf("event %s has no payload", evt.Type)
	}
	if evt.Payload.EventType() != evt.Type {
		return fmt.Errorf("payload type %s does not match envelope type %s", evt.Payload.EventType(), evt.Type)
	}
	if s.Validator != nil {
		if err := s.Validator(evt); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
	}
	return nil
}

// Registry manages event type schemas.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*Schema
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		schemas: make(map[string]*Schema),
	}
}

// Register adds a schema. An existing schema for the same type is replaced.
func (r *Registry) Register(schema *Schema) error {
	if schema == nil || schema.Type == "" {
		return fmt.Errorf("event type is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[schema.Type] = schema
	return nil
}

// Get returns the schema for an event type.
func (r *Registry) Get(eventType string) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schema, ok := r.schemas[eventType]
	return schema, ok
}

// Has returns true if a schema exists for the event type.
func (r *Registry) Has(eventType string) bool {
	_, ok := r.Get(eventType)
	return ok
}

// Types returns all registered event types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.schemas))
	for t := range r.schemas {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Validate checks an event against its registered schema.
func (r *Registry) Validate(evt Envelope) error {
	schema, ok := r.Get(evt.Type)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownType, evt.Type)
	}
	return schema.Validate(evt)
}

// DefaultRegistry holds the schemas of every domain event type.
var DefaultRegistry = newDomainRegistry()

func newDomainRegistry() *Registry {
	r := NewRegistry()
	for _, s := range domainSchemas() {
		if err := r.Register(s); err != nil {
			panic(fmt.Sprintf("failed to register event schema: %v", err))
		}
	}
	return r
}

func domainSchemas() []*Schema {
	return []*Schema{
		{
			Type:        TypeBookAdded,
			Source:      "library",
			Description: "a book entered the catalog",
			Validator:   requireRefs(false, true),
		},
		{
			Type:        TypeBookRemoved,
			Source:      "library",
			Description: "a book left the catalog",
			Validator:   requireRefs(false, true),
		},
		{
			Type:        TypeBookBorrowed,
			Source:      "library",
			Description: "a borrowing was opened",
			Validator:   requireRefs(true, true),
		},
		{
			Type:        TypeBookReturned,
			Source:      "library",
			Description: "a borrowing was closed",
			Validator:   requireRefs(true, true),
		},
		{
			Type:        TypeUserRegistered,
			Source:      "library",
			Description: "a user joined the library",
			Validator:   requireRefs(true, false),
		},
		{
			Type:        TypeUserSuspended,
			Source:      "library",
			Description: "a user was suspended",
			Validator:   requireRefs(true, false),
		},
		{
			Type:        TypeUserReactivated,
			Source:      "library",
			Description: "a suspended user was reactivated",
			Validator:   requireRefs(true, false),
		},
		{
			Type:        TypeNotificationSent,
			Source:      "notification",
			Description: "a notification was recorded for a user",
			Validator:   requireRefs(true, false),
		},
	}
}

func requireRefs(user, book bool) func(Envelope) error {
	return func(evt Envelope) error {
		if user {
			ref, ok := evt.Payload.(UserReference)
			if !ok || ref.UserRef() == "" {
				return errors.New("user_id is required")
			}
		}
		if book {
			ref, ok := evt.Payload.(BookReference)
			if !ok || ref.BookRef() == "" {
				return errors.New("book_id is required")
			}
		}
		return nil
	}
}
