package library

import "time"

// UserType selects a user's borrowing limit.
type UserType string

// User types.
const (
	UserTypeStandard UserType = "standard"
	UserTypePremium  UserType = "premium"
)

// Status is a user's account state.
type Status string

// User statuses.
const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// Book is a catalog entry. AvailableCopies always equals TotalCopies minus
// the book's open borrowings.
type Book struct {
	ID              string    `json:"id"`
	ISBN            string    `json:"isbn"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	TotalCopies     int       `json:"total_copies"`
	AvailableCopies int       `json:"available_copies"`
	AddedAt         time.Time `json:"added_at"`
}

// User is a registered library member.
type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	UserType         UserType   `json:"user_type"`
	Status           Status     `json:"status"`
	BorrowingLimit   int        `json:"borrowing_limit"`
	RegisteredAt     time.Time  `json:"registered_at"`
	SuspendedAt      *time.Time `json:"suspended_at,omitempty"`
	SuspensionReason string     `json:"suspension_reason,omitempty"`
}

// Active reports whether the user may borrow.
func (u User) Active() bool {
	return u.Status == StatusActive
}

// Borrowing is one loan of one book to one user. It is open until
// ReturnedDate is set.
type Borrowing struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	BookID       string     `json:"book_id"`
	BorrowedDate time.Time  `json:"borrowed_date"`
	DueDate      time.Time  `json:"due_date"`
	ReturnedDate *time.Time `json:"returned_date"`
	LateFee      float64    `json:"late_fee"`
}

// Open reports whether the borrowing has not been returned.
func (b Borrowing) Open() bool {
	return b.ReturnedDate == nil
}

// Overdue reports whether an open borrowing is past its due date at now.
func (b Borrowing) Overdue(now time.Time) bool {
	return b.Open() && now.After(b.DueDate)
}

// clone returns a copy that shares no pointers with b.
func (b Borrowing) clone() Borrowing {
	if b.ReturnedDate != nil {
		t := *b.ReturnedDate
		b.ReturnedDate = &t
	}
	return b
}

func (u User) clone() User {
	if u.SuspendedAt != nil {
		t := *u.SuspendedAt
		u.SuspendedAt = &t
	}
	return u
}

// BorrowingDetail is an open borrowing enriched with book data.
type BorrowingDetail struct {
	Borrowing
	BookTitle  string `json:"book_title"`
	BookAuthor string `json:"book_author"`
	PastDue    bool   `json:"past_due"`
}

// State is a point-in-time copy of the library, in insertion order.
type State struct {
	Books      []Book      `json:"books"`
	Users      []User      `json:"users"`
	Borrowings []Borrowing `json:"borrowings"`
}
