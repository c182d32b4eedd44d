// Package library owns books, users, and borrowings.
//
// Service is the only component that mutates primary domain state. Every
// successful operation emits exactly one domain event; a failing operation
// returns a domain error and neither mutates state nor emits.
package library

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary/event"
	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary/observability"
)

// ServiceName identifies the library service in logs and snapshots.
const ServiceName = "LibraryService"

// Config configures the library rules.
type Config struct {
	// LoanPeriod is added to the borrow time to get the due date.
	// Default: 14 days
	LoanPeriod time.Duration

	// LateFeePerDay is charged per whole day past the due date.
	// Values <= 0 select the default. Default: 0.50
	LateFeePerDay float64

	// StandardLimit and PremiumLimit cap open borrowings per user.
	// Defaults: 3 and 5
	StandardLimit int
	PremiumLimit  int

	// Logger receives structured logs. Nil disables logging.
	Logger *slog.Logger

	// Clock returns the current time. Default: time.Now
	Clock func() time.Time

	// NewID generates entity identifiers. Default: uuid.NewString
	NewID func() string
}

func (c Config) withDefaults() Config {
	if c.LoanPeriod <= 0 {
		c.LoanPeriod = 14 * 24 * time.Hour
	}
	if c.LateFeePerDay <= 0 {
		c.LateFeePerDay = 0.50
	}
	if c.StandardLimit <= 0 {
		c.StandardLimit = 3
	}
	if c.PremiumLimit <= 0 {
		c.PremiumLimit = 5
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.NewID == nil {
		c.NewID = uuid.NewString
	}
	return c
}

// Service manages the library catalog, members, and loans.
// All methods are safe for concurrent use.
type Service struct {
	config  Config
	emitter event.Emitter
	logger  *slog.Logger

	mu         sync.RWMutex
	books      map[string]*Book
	bookOrder  []string
	isbns      map[string]string // isbn -> book id
	users      map[string]*User
	userOrder  []string
	emails     map[string]string // email -> user id
	borrowings []*Borrowing
}

// New creates a library service publishing through emitter.
func New(emitter event.Emitter, config Config) *Service {
	config = config.withDefaults()
	s := &Service{
		config:  config,
		emitter: emitter,
		logger:  observability.ServiceLogger(config.Logger, ServiceName),
	}
	s.resetLocked()
	return s
}

// BorrowingLimit returns the open-borrowing cap for userType.
func (s *Service) BorrowingLimit(userType UserType) int {
	if userType == UserTypePremium {
		return s.config.PremiumLimit
	}
	return s.config.StandardLimit
}

// AddBook adds copies of a new title to the catalog and emits BookAdded.
func (s *Service) AddBook(ctx context.Context, isbn, title, author string, copies int) (Book, error) {
	isbn, title, author = strings.TrimSpace(isbn), strings.TrimSpace(title), strings.TrimSpace(author)

	switch {
	case isbn == "":
		return Book{}, s.reject("add_book", invalid("isbn", "is required"))
	case title == "":
		return Book{}, s.reject("add_book", invalid("title", "is required"))
	case author == "":
		return Book{}, s.reject("add_book", invalid("author", "is required"))
	case copies <= 0:
		return Book{}, s.reject("add_book", invalid("copies", "must be positive"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.isbns[isbn]; exists {
		return Book{}, s.reject("add_book", fmt.Errorf("isbn %s: %w", isbn, ErrDuplicate))
	}

	book := &Book{
		ID:              s.config.NewID(),
		ISBN:            isbn,
		Title:           title,
		Author:          author,
		TotalCopies:     copies,
		AvailableCopies: copies,
		AddedAt:         s.config.Clock(),
	}
	s.books[book.ID] = book
	s.bookOrder = append(s.bookOrder, book.ID)
	s.isbns[isbn] = book.ID

	s.emitter.Emit(ctx, event.BookAdded{
		BookID: book.ID,
		ISBN:   book.ISBN,
		Title:  book.Title,
		Author: book.Author,
		Copies: book.TotalCopies,
	})
	observability.LogOperation(s.logger, "add_book", slog.String("book_id", book.ID), slog.String("isbn", isbn))
	return *book, nil
}

// RemoveBook takes a book out of the catalog and emits BookRemoved.
// Books with open borrowings cannot be removed.
func (s *Service) RemoveBook(ctx context.Context, bookID string) (Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[bookID]
	if !ok {
		return Book{}, s.reject("remove_book", notFound("book", bookID))
	}
	if book.AvailableCopies < book.TotalCopies {
		return Book{}, s.reject("remove_book", fmt.Errorf("book %s has %d open: %w", bookID, book.TotalCopies-book.AvailableCopies, ErrBookInUse))
	}

	delete(s.books, bookID)
	delete(s.isbns, book.ISBN)
	s.bookOrder = removeID(s.bookOrder, bookID)

	s.emitter.Emit(ctx, event.BookRemoved{
		BookID:      book.ID,
		ISBN:        book.ISBN,
		Title:       book.Title,
		RemovedDate: s.config.Clock(),
	})
	observability.LogOperation(s.logger, "remove_book", slog.String("book_id", bookID))
	return *book, nil
}

// RegisterUser creates an active member and emits UserRegistered.
// An empty userType means standard.
func (s *Service) RegisterUser(ctx context.Context, email, name string, userType UserType) (User, error) {
	email, name = strings.TrimSpace(email), strings.TrimSpace(name)
	if userType == "" {
		userType = UserTypeStandard
	}

	switch {
	case email == "":
		return User{}, s.reject("register_user", invalid("email", "is required"))
	case !strings.Contains(email, "@"):
		return User{}, s.reject("register_user", invalid("email", "must contain @"))
	case name == "":
		return User{}, s.reject("register_user", invalid("name", "is required"))
	case userType != UserTypeStandard && userType != UserTypePremium:
		return User{}, s.reject("register_user", invalid("user_type", "must be standard or premium"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.emails[email]; exists {
		return User{}, s.reject("register_user", fmt.Errorf("email %s: %w", email, ErrDuplicate))
	}

	user := &User{
		ID:             s.config.NewID(),
		Email:          email,
		Name:           name,
		UserType:       userType,
		Status:         StatusActive,
		BorrowingLimit: s.BorrowingLimit(userType),
		RegisteredAt:   s.config.Clock(),
	}
	s.users[user.ID] = user
	s.userOrder = append(s.userOrder, user.ID)
	s.emails[email] = user.ID

	s.emitter.Emit(ctx, event.UserRegistered{
		UserID:   user.ID,
		Email:    user.Email,
		Name:     user.Name,
		UserType: string(user.UserType),
	})
	observability.LogOperation(s.logger, "register_user", slog.String("user_id", user.ID))
	return user.clone(), nil
}

// BorrowBook opens a borrowing and emits BookBorrowed.
//
// Checks run in this order: user exists, book exists, user active, a copy
// is available, the user is under their limit, the user does not already
// hold the book.
func (s *Service) BorrowBook(ctx context.Context, userID, bookID string) (Borrowing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return Borrowing{}, s.reject("borrow_book", notFound("user", userID))
	}
	book, ok := s.books[bookID]
	if !ok {
		return Borrowing{}, s.reject("borrow_book", notFound("book", bookID))
	}
	if !user.Active() {
		return Borrowing{}, s.reject("borrow_book", fmt.Errorf("user %s: %w", userID, ErrInactiveUser))
	}
	if book.AvailableCopies <= 0 {
		return Borrowing{}, s.reject("borrow_book", fmt.Errorf("%q: %w", book.Title, ErrUnavailable))
	}

	open := 0
	holding := false
	for _, b := range s.borrowings {
		if b.UserID != userID || !b.Open() {
			continue
		}
		open++
		if b.BookID == bookID {
			holding = true
		}
	}
	if open >= user.BorrowingLimit {
		return Borrowing{}, s.reject("borrow_book", fmt.Errorf("user %s (limit %d): %w", userID, user.BorrowingLimit, ErrLimitExceeded))
	}
	if holding {
		return Borrowing{}, s.reject("borrow_book", fmt.Errorf("user %s, book %s: %w", userID, bookID, ErrAlreadyBorrowed))
	}

	now := s.config.Clock()
	borrowing := &Borrowing{
		ID:           s.config.NewID(),
		UserID:       userID,
		BookID:       bookID,
		BorrowedDate: now,
		DueDate:      now.Add(s.config.LoanPeriod),
	}
	s.borrowings = append(s.borrowings, borrowing)
	book.AvailableCopies--

	s.emitter.Emit(ctx, event.BookBorrowed{
		UserID:       userID,
		BookID:       bookID,
		BookTitle:    book.Title,
		BorrowingID:  borrowing.ID,
		BorrowedDate: borrowing.BorrowedDate,
		DueDate:      borrowing.DueDate,
		UserName:     user.Name,
		UserEmail:    user.Email,
	})
	observability.LogOperation(s.logger, "borrow_book",
		slog.String("user_id", userID),
		slog.String("book_id", bookID),
		slog.String("borrowing_id", borrowing.ID),
	)
	return borrowing.clone(), nil
}

// ReturnBook closes the user's open borrowing of the book, charges any late
// fee, and emits BookReturned.
func (s *Service) ReturnBook(ctx context.Context, userID, bookID string) (Borrowing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var borrowing *Borrowing
	for _, b := range s.borrowings {
		if b.UserID == userID && b.BookID == bookID && b.Open() {
			borrowing = b
			break
		}
	}
	if borrowing == nil {
		return Borrowing{}, s.reject("return_book", fmt.Errorf("user %s, book %s: %w", userID, bookID, ErrNotBorrowed))
	}

	now := s.config.Clock()
	borrowing.ReturnedDate = &now
	borrowing.LateFee = s.LateFee(borrowing.DueDate, now)

	var title string
	if book, ok := s.books[bookID]; ok {
		book.AvailableCopies++
		title = book.Title
	}
	var userName, userEmail string
	if user, ok := s.users[userID]; ok {
		userName, userEmail = user.Name, user.Email
	}

	s.emitter.Emit(ctx, event.BookReturned{
		UserID:       userID,
		BookID:       bookID,
		BookTitle:    title,
		BorrowingID:  borrowing.ID,
		ReturnedDate: now,
		LateFee:      borrowing.LateFee,
		UserName:     userName,
		UserEmail:    userEmail,
	})
	observability.LogOperation(s.logger, "return_book",
		slog.String("borrowing_id", borrowing.ID),
		slog.Float64("late_fee", borrowing.LateFee),
	)
	return borrowing.clone(), nil
}

// LateFee returns the fee for returning at returned a loan due at due:
// whole days late times the daily fee.
func (s *Service) LateFee(due, returned time.Time) float64 {
	if !returned.After(due) {
		return 0
	}
	daysLate := math.Floor(returned.Sub(due).Hours() / 24)
	return daysLate * s.config.LateFeePerDay
}

// SuspendUser revokes borrowing privileges and emits UserSuspended.
func (s *Service) SuspendUser(ctx context.Context, userID, reason string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return User{}, s.reject("suspend_user", notFound("user", userID))
	}

	now := s.config.Clock()
	user.Status = StatusSuspended
	user.SuspendedAt = &now
	user.SuspensionReason = reason

	s.emitter.Emit(ctx, event.UserSuspended{
		UserID:        userID,
		Reason:        reason,
		SuspendedDate: now,
		UserName:      user.Name,
		UserEmail:     user.Email,
	})
	observability.LogOperation(s.logger, "suspend_user", slog.String("user_id", userID))
	return user.clone(), nil
}

// ReactivateUser restores a suspended user and emits UserReactivated.
func (s *Service) ReactivateUser(ctx context.Context, userID string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return User{}, s.reject("reactivate_user", notFound("user", userID))
	}
	if user.Active() {
		return User{}, s.reject("reactivate_user", invalid("status", "user is already active"))
	}

	user.Status = StatusActive
	user.SuspendedAt = nil
	user.SuspensionReason = ""

	s.emitter.Emit(ctx, event.UserReactivated{
		UserID:          userID,
		ReactivatedDate: s.config.Clock(),
		UserName:        user.Name,
		UserEmail:       user.Email,
	})
	observability.LogOperation(s.logger, "reactivate_user", slog.String("user_id", userID))
	return user.clone(), nil
}

// GetUserBorrowings returns the user's open borrowings with book details,
// oldest first. Unknown users have none.
func (s *Service) GetUserBorrowings(userID string) []BorrowingDetail {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.config.Clock()
	var out []BorrowingDetail
	for _, b := range s.borrowings {
		if b.UserID != userID || !b.Open() {
			continue
		}
		detail := BorrowingDetail{Borrowing: b.clone(), PastDue: b.Overdue(now)}
		if book, ok := s.books[b.BookID]; ok {
			detail.BookTitle = book.Title
			detail.BookAuthor = book.Author
		}
		out = append(out, detail)
	}
	return out
}

// Book returns a copy of the book.
func (s *Service) Book(bookID string) (Book, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	book, ok := s.books[bookID]
	if !ok {
		return Book{}, false
	}
	return *book, true
}

// User returns a copy of the user.
func (s *Service) User(userID string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return User{}, false
	}
	return user.clone(), true
}

// Books returns every book in insertion order.
func (s *Service) Books() []Book {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.booksLocked(false)
}

// AvailableBooks returns books with at least one copy on the shelf.
func (s *Service) AvailableBooks() []Book {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.booksLocked(true)
}

func (s *Service) booksLocked(availableOnly bool) []Book {
	out := make([]Book, 0, len(s.bookOrder))
	for _, id := range s.bookOrder {
		book := s.books[id]
		if availableOnly && book.AvailableCopies <= 0 {
			continue
		}
		out = append(out, *book)
	}
	return out
}

// Users returns every user in registration order.
func (s *Service) Users() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]User, 0, len(s.userOrder))
	for _, id := range s.userOrder {
		out = append(out, s.users[id].clone())
	}
	return out
}

// Borrowings returns every borrowing, open and returned, oldest first.
func (s *Service) Borrowings() []Borrowing {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Borrowing, 0, len(s.borrowings))
	for _, b := range s.borrowings {
		out = append(out, b.clone())
	}
	return out
}

// State returns a deep copy of the library.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := State{
		Books:      s.booksLocked(false),
		Users:      make([]User, 0, len(s.userOrder)),
		Borrowings: make([]Borrowing, 0, len(s.borrowings)),
	}
	for _, id := range s.userOrder {
		state.Users = append(state.Users, s.users[id].clone())
	}
	for _, b := range s.borrowings {
		state.Borrowings = append(state.Borrowings, b.clone())
	}
	return state
}

// SnapshotName implements snapshot.Source.
func (s *Service) SnapshotName() string { return "library" }

// SnapshotState implements snapshot.Source.
func (s *Service) SnapshotState() any { return s.State() }

// Reset discards every book, user, and borrowing.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Service) resetLocked() {
	s.books = make(map[string]*Book)
	s.bookOrder = nil
	s.isbns = make(map[string]string)
	s.users = make(map[string]*User)
	s.userOrder = nil
	s.emails = make(map[string]string)
	s.borrowings = nil
}

func (s *Service) reject(op string, err error) error {
	observability.LogOperationRejected(s.logger, op, err)
	return err
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}
