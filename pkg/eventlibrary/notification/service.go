// Package notification sends user-facing messages in reaction to library
// events. It keeps its own mirror of users, a notification log, and
// per-user delivery preferences.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary/broker"
	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary/event"
	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary/observability"
)

// ServiceName identifies the notification service in registrations and logs.
const ServiceName = "NotificationService"

// Type classifies a notification.
type Type string

// Notification types.
const (
	TypeWelcome            Type = "welcome"
	TypeBorrowConfirmation Type = "borrow_confirmation"
	TypeDueDateReminder    Type = "due_date_reminder"
	TypeReturnConfirmation Type = "return_confirmation"
)

// StatusSent is the only delivery status; there is no real transport.
const StatusSent = "sent"

// Notification is one recorded message.
type Notification struct {
	ID       string    `json:"notification_id"`
	UserID   string    `json:"user_id"`
	Message  string    `json:"message"`
	Type     Type      `json:"type"`
	SentDate time.Time `json:"sent_date"`
	Status   string    `json:"status"`
}

// User is the notification service's copy of a registered user.
type User struct {
	ID           string    `json:"user_id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	UserType     string    `json:"user_type"`
	RegisteredAt time.Time `json:"registered_at"`
}

// DefaultPreferences returns the preferences given to newly registered users.
func DefaultPreferences() map[string]bool {
	return map[string]bool{
		"email":     true,
		"sms":       false,
		"reminders": true,
	}
}

// State is a deep copy of the service's data.
type State struct {
	Users         map[string]User            `json:"users"`
	Notifications []Notification             `json:"notifications"`
	Preferences   map[string]map[string]bool `json:"preferences"`
}

// Config configures the notification service.
type Config struct {
	// Logger receives structured logs. Nil disables logging.
	Logger *slog.Logger

	// Clock returns the current time. Default: time.Now
	Clock func() time.Time

	// NewID generates notification identifiers. Default: uuid.NewString
	NewID func() string
}

// Service records notifications. All methods are safe for concurrent use.
type Service struct {
	config  Config
	emitter event.Emitter
	logger  *slog.Logger

	mu            sync.RWMutex
	users         map[string]User
	notifications []Notification
	preferences   map[string]map[string]bool
}

// New creates a notification service publishing NotificationSent through emitter.
func New(emitter event.Emitter, config Config) *Service {
	if config.Clock == nil {
		config.Clock = time.Now
	}
	if config.NewID == nil {
		config.NewID = uuid.NewString
	}
	s := &Service{
		config:  config,
		emitter: emitter,
		logger:  observability.ServiceLogger(config.Logger, ServiceName),
	}
	s.Reset()
	return s
}

// Register subscribes the service's handlers.
func (s *Service) Register(b *broker.Broker) {
	b.Register(event.TypeUserRegistered, event.Typed(s.handleUserRegistered), ServiceName)
	b.Register(event.TypeBookBorrowed, event.Typed(s.handleBookBorrowed), ServiceName)
	b.Register(event.TypeBookReturned, event.Typed(s.handleBookReturned), ServiceName)
}

func (s *Service) handleUserRegistered(ctx context.Context, p event.UserRegistered, meta event.Metadata) error {
	if p.UserID == "" {
		return errors.New("user registered without user_id")
	}

	s.mu.Lock()
	s.users[p.UserID] = User{
		ID:           p.UserID,
		Email:        p.Email,
		Name:         p.Name,
		UserType:     p.UserType,
		RegisteredAt: meta.Timestamp,
	}
	if _, ok := s.preferences[p.UserID]; !ok {
		s.preferences[p.UserID] = DefaultPreferences()
	}
	s.mu.Unlock()

	ctx = event.ContextWithCorrelationID(ctx, meta.CorrelationID)
	s.SendNotification(ctx, p.UserID, fmt.Sprintf("Welcome to the library, %s!", p.Name), TypeWelcome)
	return nil
}

func (s *Service) handleBookBorrowed(ctx context.Context, p event.BookBorrowed, meta event.Metadata) error {
	due := p.DueDate.Format(time.DateOnly)
	ctx = event.ContextWithCorrelationID(ctx, meta.CorrelationID)

	s.SendNotification(ctx, p.UserID,
		fmt.Sprintf("You have borrowed %q. Please return it by %s.", p.BookTitle, due),
		TypeBorrowConfirmation)
	s.SendNotification(ctx, p.UserID,
		fmt.Sprintf("Reminder: %q is due on %s.", p.BookTitle, due),
		TypeDueDateReminder)
	return nil
}

func (s *Service) handleBookReturned(ctx context.Context, p event.BookReturned, meta event.Metadata) error {
	message := fmt.Sprintf("Thank you for returning %q.", p.BookTitle)
	if p.LateFee > 0 {
		message += fmt.Sprintf(" A late fee of $%.2f has been charged.", p.LateFee)
	}

	ctx = event.ContextWithCorrelationID(ctx, meta.CorrelationID)
	s.SendNotification(ctx, p.UserID, message, TypeReturnConfirmation)
	return nil
}

// SendNotification records a message for userID and emits NotificationSent.
// The event joins the correlation chain carried by ctx.
func (s *Service) SendNotification(ctx context.Context, userID, message string, typ Type) Notification {
	n := Notification{
		ID:       s.config.NewID(),
		UserID:   userID,
		Message:  message,
		Type:     typ,
		SentDate: s.config.Clock(),
		Status:   StatusSent,
	}

	s.mu.Lock()
	s.notifications = append(s.notifications, n)
	s.mu.Unlock()

	s.emitter.Emit(ctx, event.NotificationSent{
		NotificationID: n.ID,
		UserID:         userID,
		Type:           string(typ),
		SentDate:       n.SentDate,
	})
	observability.LogOperation(s.logger, "send_notification",
		slog.String("user_id", userID),
		slog.String("type", string(typ)),
	)
	return n
}

// UserNotifications returns the user's notifications in send order.
func (s *Service) UserNotifications(userID string) []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

// Notifications returns every notification in send order.
func (s *Service) Notifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}

// SetPreferences replaces the user's preferences. Preferences are recorded
// but do not suppress delivery.
func (s *Service) SetPreferences(userID string, prefs map[string]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preferences[userID] = copyPrefs(prefs)
}

// Preferences returns a copy of the user's preferences.
func (s *Service) Preferences(userID string) (map[string]bool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefs, ok := s.preferences[userID]
	if !ok {
		return nil, false
	}
	return copyPrefs(prefs), true
}

// User returns the mirrored user.
func (s *Service) User(userID string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	return u, ok
}

// State returns a deep copy of the service's data.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := State{
		Users:         make(map[string]User, len(s.users)),
		Notifications: make([]Notification, len(s.notifications)),
		Preferences:   make(map[string]map[string]bool, len(s.preferences)),
	}
	for id, u := range s.users {
		state.Users[id] = u
	}
	copy(state.Notifications, s.notifications)
	for id, prefs := range s.preferences {
		state.Preferences[id] = copyPrefs(prefs)
	}
	return state
}

// SnapshotName implements snapshot.Source.
func (s *Service) SnapshotName() string { return "notification" }

// SnapshotState implements snapshot.Source.
func (s *Service) SnapshotState() any { return s.State() }

// Reset discards every user, notification, and preference.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users = make(map[string]User)
	s.notifications = nil
	s.preferences = make(map[string]map[string]bool)
}

func copyPrefs(prefs map[string]bool) map[string]bool {
	out := make(map[string]bool, len(prefs))
	for k, v := range prefs {
		out[k] = v
	}
	return out
}
