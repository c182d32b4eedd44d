package library

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Service operations. Match with errors.Is.
var (
	// ErrValidation indicates malformed or missing input.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicate indicates an ISBN or email is already registered.
	ErrDuplicate = errors.New("already exists")

	// ErrNotFound indicates a referenced user or book does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInactiveUser indicates the user is suspended.
	ErrInactiveUser = errors.New("user is not active")

	// ErrUnavailable indicates no copies of the book are left.
	ErrUnavailable = errors.New("no copies available")

	// ErrLimitExceeded indicates the user holds borrowing_limit open borrowings.
	ErrLimitExceeded = errors.New("borrowing limit reached")

	// ErrAlreadyBorrowed indicates the user already holds this book.
	ErrAlreadyBorrowed = errors.New("book already borrowed by user")

	// ErrNotBorrowed indicates the user holds no open borrowing of the book.
	ErrNotBorrowed = errors.New("book not borrowed by user")

	// ErrBookInUse indicates a book with open borrowings cannot be removed.
	ErrBookInUse = errors.New("book has open borrowings")
)

// ValidationError names the offending input field.
type ValidationError struct {
	// Field is the input that failed validation.
	Field string
	// Message describes the problem.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func notFound(entity, id string) error {
	return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
}

// Kind classifies Service errors for presentation layers.
type Kind int

const (
	// KindUnknown covers nil and errors not produced by this package.
	KindUnknown Kind = iota
	KindValidation
	KindDuplicate
	KindNotFound
	KindInactiveUser
	KindUnavailable
	KindLimitExceeded
	KindAlreadyBorrowed
	KindNotBorrowed
	KindBookInUse
)

var kinds = []struct {
	kind Kind
	err  error
	name string
}{
	{KindValidation, ErrValidation, "validation"},
	{KindDuplicate, ErrDuplicate, "duplicate"},
	{KindNotFound, ErrNotFound, "not_found"},
	{KindInactiveUser, ErrInactiveUser, "inactive_user"},
	{KindUnavailable, ErrUnavailable, "unavailable"},
	{KindLimitExceeded, ErrLimitExceeded, "limit_exceeded"},
	{KindAlreadyBorrowed, ErrAlreadyBorrowed, "already_borrowed"},
	{KindNotBorrowed, ErrNotBorrowed, "not_borrowed"},
	{KindBookInUse, ErrBookInUse, "book_in_use"},
}

// String returns the kind name.
func (k Kind) String() string {
	for _, entry := range kinds {
		if entry.kind == k {
			return entry.name
		}
	}
	return "unknown"
}

// KindOf classifies err.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, entry := range kinds {
		if errors.Is(err, entry.err) {
			return entry.kind
		}
	}
	return KindUnknown
}
