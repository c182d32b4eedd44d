package event_test

import (
	"errors"
	"testing"

	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary/event"
)

func TestRegistryRegister(t *testing.T) {
	r := event.NewRegistry()

	if err := r.Register(&event.Schema{}); err == nil {
		t.Error("expected error for empty type")
	}

	if err := r.Register(&event.Schema{Type: "order.created", Source: "orders"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !r.Has("order.created") {
		t.Error("expected schema to be registered")
	}
	schema, ok := r.Get("order.created")
	if !ok || schema.Source != "orders" {
		t.Errorf("unexpected schema: %+v", schema)
	}
}

func TestRegistryValidateUnknown(t *testing.T) {
	r := event.NewRegistry()

	err := r.Validate(event.New(event.NewGeneric("Nope", nil)))
	if !errors.Is(err, event.ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
}

func TestDefaultRegistryCoversDomainTypes(t *testing.T) {
	for _, typ := range event.DomainTypes {
		if !event.DefaultRegistry.Has(typ) {
			t.Errorf("expected schema for %s", typ)
		}
	}
	if got := len(event.DefaultRegistry.Types()); got != len(event.DomainTypes) {
		t.Errorf("expected %d types, got %d", len(event.DomainTypes), got)
	}
}

func TestDefaultRegistryValidators(t *testing.T) {
	tests := []struct {
		name    string
		payload event.Payload
		wantErr bool
	}{
		{"borrowed ok", event.BookBorrowed{UserID: "u", BookID: "b"}, false},
		{"borrowed missing book", event.BookBorrowed{UserID: "u"}, true},
		{"registered ok", event.UserRegistered{UserID: "u"}, false},
		{"registered missing user", event.UserRegistered{Email: "a@b"}, true},
		{"book added ok", event.BookAdded{BookID: "b"}, false},
		{"generic with refs", event.NewGeneric(event.TypeBookReturned, map[string]any{"user_id": "u", "book_id": "b"}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := event.DefaultRegistry.Validate(event.New(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
