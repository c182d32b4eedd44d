package event

import "time"

// Event type tags.
const (
	TypeBookAdded        = "BookAdded"
	TypeBookRemoved      = "BookRemoved"
	TypeBookBorrowed     = "BookBorrowed"
	TypeBookReturned     = "BookReturned"
	TypeUserRegistered   = "UserRegistered"
	TypeUserSuspended    = "UserSuspended"
	TypeUserReactivated  = "UserReactivated"
	TypeNotificationSent = "NotificationSent"
)

// DomainTypes lists every event type emitted by the services in this module.
var DomainTypes = []string{
	TypeBookAdded,
	TypeBookRemoved,
	TypeBookBorrowed,
	TypeBookReturned,
	TypeUserRegistered,
	TypeUserSuspended,
	TypeUserReactivated,
	TypeNotificationSent,
}

// BookAdded is emitted when a book enters the catalog.
type BookAdded struct {
	BookID string `json:"book_id"`
	ISBN   string `json:"isbn"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Copies int    `json:"copies"`
}

func (BookAdded) EventType() string { return TypeBookAdded }
func (e BookAdded) BookRef() string { return e.BookID }

// BookRemoved is emitted when a book leaves the catalog.
type BookRemoved struct {
	BookID      string    `json:"book_id"`
	ISBN        string    `json:"isbn"`
	Title       string    `json:"title"`
	RemovedDate time.Time `json:"removed_date"`
}

func (BookRemoved) EventType() string { return TypeBookRemoved }
func (e BookRemoved) BookRef() string { return e.BookID }

// UserRegistered is emitted when a user joins the library.
type UserRegistered struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	UserType string `json:"user_type"`
}

func (UserRegistered) EventType() string { return TypeUserRegistered }
func (e UserRegistered) UserRef() string { return e.UserID }

// BookBorrowed is emitted when a borrowing is opened.
type BookBorrowed struct {
	UserID       string    `json:"user_id"`
	BookID       string    `json:"book_id"`
	BookTitle    string    `json:"book_title"`
	BorrowingID  string    `json:"borrowing_id"`
	BorrowedDate time.Time `json:"borrowed_date"`
	DueDate      time.Time `json:"due_date"`
	UserName     string    `json:"user_name"`
	UserEmail    string    `json:"user_email"`
}

func (BookBorrowed) EventType() string { return TypeBookBorrowed }
func (e BookBorrowed) UserRef() string { return e.UserID }
func (e BookBorrowed) BookRef() string { return e.BookID }

// BookReturned is emitted when a borrowing is closed.
type BookReturned struct {
	UserID       string    `json:"user_id"`
	BookID       string    `json:"book_id"`
	BookTitle    string    `json:"book_title"`
	BorrowingID  string    `json:"borrowing_id"`
	ReturnedDate time.Time `json:"returned_date"`
	LateFee      float64   `json:"late_fee"`
	UserName     string    `json:"user_name"`
	UserEmail    string    `json:"user_email"`
}

func (BookReturned) EventType() string { return TypeBookReturned }
func (e BookReturned) UserRef() string { return e.UserID }
func (e BookReturned) BookRef() string { return e.BookID }

// UserSuspended is emitted when a user loses borrowing privileges.
type UserSuspended struct {
	UserID        string    `json:"user_id"`
	Reason        string    `json:"reason"`
	SuspendedDate time.Time `json:"suspended_date"`
	UserName      string    `json:"user_name"`
	UserEmail     string    `json:"user_email"`
}

func (UserSuspended) EventType() string { return TypeUserSuspended }
func (e UserSuspended) UserRef() string { return e.UserID }

// UserReactivated is emitted when a suspended user is made active again.
type UserReactivated struct {
	UserID          string    `json:"user_id"`
	ReactivatedDate time.Time `json:"reactivated_date"`
	UserName        string    `json:"user_name"`
	UserEmail       string    `json:"user_email"`
}

func (UserReactivated) EventType() string { return TypeUserReactivated }
func (e UserReactivated) UserRef() string { return e.UserID }

// NotificationSent is emitted by the notification service for every
// message it records. Only the audit log consumes it.
type NotificationSent struct {
	NotificationID string    `json:"notification_id"`
	UserID         string    `json:"user_id"`
	Type           string    `json:"type"`
	SentDate       time.Time `json:"sent_date"`
}

func (NotificationSent) EventType() string { return TypeNotificationSent }
func (e NotificationSent) UserRef() string { return e.UserID }
