package event

import (
	"errors"
	"fmt"
	"time"
)

// ErrHandlerFailure matches every *HandlerError via errors.Is.
var ErrHandlerFailure = errors.New("handler failure")

// HandlerError represents a failure raised while a handler processed an event.
type HandlerError struct {
	Event     Envelope  // The event that failed
	Service   string    // Owning service of the failing handler (if known)
	Message   string    // Error message
	Err       error     // Underlying error
	Timestamp time.Time // When the error occurred
}

// Error implements error interface.
func (e *HandlerError) Error() string {
	prefix := fmt.Sprintf("event %s (%s)", e.Event.ID(), e.Event.Type)
	if e.Service != "" {
		prefix += " in " + e.Service
	}
	if e.Err != nil {
		if e.Message == "" {
			return fmt.Sprintf("%s: %v", prefix, e.Err)
		}
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the underlying error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrHandlerFailure.
func (e *HandlerError) Is(target error) bool {
	return target == ErrHandlerFailure
}
