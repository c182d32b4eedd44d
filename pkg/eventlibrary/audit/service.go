// Package audit keeps the append-only log of every event that passed
// through the broker, and answers event-sourcing queries over it: entity
// audit trails, correlation chains, point-in-time replay selection, and
// rapid-borrowing anomaly detection. It also captures snapshots of the
// other services' state into a snapshot.Store.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary/broker"
	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary/event"
	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary/observability"
	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary/snapshot"
)

// ServiceName identifies the audit service in registrations and logs.
const ServiceName = "AuditService"

// Entity types accepted by AuditTrail.
const (
	EntityUser = "user"
	EntityBook = "book"
)

// AnomalyRapidBorrowing flags a user borrowing too often within the window.
const AnomalyRapidBorrowing = "rapid_borrowing"

// Default anomaly detection parameters.
const (
	DefaultAnomalyWindow    = time.Hour
	DefaultAnomalyThreshold = 5
)

// ErrUnknownEntityType is returned by AuditTrail for entity types other
// than EntityUser and EntityBook.
var ErrUnknownEntityType = errors.New("unknown entity type")

// Entry is one audit log record.
type Entry struct {
	EventType     string        `json:"event_type"`
	Payload       event.Payload `json:"payload"`
	Timestamp     time.Time     `json:"timestamp"`
	CorrelationID string        `json:"correlation_id"`
	EventID       string        `json:"event_id"`
	AuditLoggedAt time.Time     `json:"audit_logged_at"`
}

func (e Entry) userID() string {
	if ref, ok := e.Payload.(event.UserReference); ok {
		return ref.UserRef()
	}
	return ""
}

func (e Entry) bookID() string {
	if ref, ok := e.Payload.(event.BookReference); ok {
		return ref.BookRef()
	}
	return ""
}

// Reconstruction summarizes the events that would be replayed to rebuild
// state as of TargetDate.
type Reconstruction struct {
	TargetDate     time.Time `json:"target_date"`
	EventsReplayed int       `json:"events_replayed"`
	Events         []Entry   `json:"events"`
}

// Anomaly is one detected irregularity.
type Anomaly struct {
	Type        string    `json:"type"`
	UserID      string    `json:"user_id"`
	BorrowCount int       `json:"borrow_count"`
	DetectedAt  time.Time `json:"detected_at"`
}

// Config configures the audit service.
type Config struct {
	// Store receives snapshots. Default: a new snapshot.MemoryStore
	Store snapshot.Store

	// Sources are captured by CreateSnapshot, in order.
	Sources []snapshot.Source

	// AnomalyWindow is how far back DetectAnomalies looks. Default: 1h
	AnomalyWindow time.Duration

	// AnomalyThreshold is the borrow count a user must exceed within the
	// window to be flagged. Default: 5
	AnomalyThreshold int

	// Metrics records snapshot sizes. Default: observability.NoopMetrics
	Metrics observability.MetricsRecorder

	// Logger receives structured logs. Nil disables logging.
	Logger *slog.Logger

	// Clock returns the current time. Default: time.Now
	Clock func() time.Time

	// NewID generates snapshot identifiers. Default: uuid.NewString
	NewID func() string
}

// Service is the audit log. All methods are safe for concurrent use.
type Service struct {
	config Config
	logger *slog.Logger

	mu      sync.RWMutex
	entries []Entry
	sources []snapshot.Source
}

// New creates an audit service.
func New(config Config) *Service {
	if config.Store == nil {
		config.Store = snapshot.NewMemoryStore()
	}
	if config.AnomalyWindow <= 0 {
		config.AnomalyWindow = DefaultAnomalyWindow
	}
	if config.AnomalyThreshold <= 0 {
		config.AnomalyThreshold = DefaultAnomalyThreshold
	}
	if config.Metrics == nil {
		config.Metrics = observability.NoopMetrics{}
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	if config.NewID == nil {
		config.NewID = uuid.NewString
	}
	return &Service{
		config:  config,
		logger:  observability.ServiceLogger(config.Logger, ServiceName),
		sources: append([]snapshot.Source(nil), config.Sources...),
	}
}

// Register subscribes the service to every event type, including types
// added after registration.
func (s *Service) Register(b *broker.Broker) {
	b.RegisterAll(event.HandlerFunc(s.handle), ServiceName)
}

func (s *Service) handle(_ context.Context, evt event.Envelope) error {
	s.LogEvent(evt.Type, evt.Payload, evt.Meta)
	return nil
}

// AddSource adds a component captured by CreateSnapshot.
func (s *Service) AddSource(src snapshot.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources = append(s.sources, src)
}

// LogEvent appends an entry. A zero metadata timestamp falls back to the
// time of logging.
func (s *Service) LogEvent(eventType string, payload event.Payload, meta event.Metadata) Entry {
	now := s.config.Clock()
	ts := meta.Timestamp
	if ts.IsZero() {
		ts = now
	}
	if payload != nil {
		payload = event.Copy(payload)
	}

	entry := Entry{
		EventType:     eventType,
		Payload:       payload,
		Timestamp:     ts,
		CorrelationID: meta.CorrelationID,
		EventID:       meta.EventID,
		AuditLoggedAt: now,
	}

	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.mu.Unlock()
	return entry
}

// Entries returns the audit log in append order.
func (s *Service) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// CreateSnapshot captures every source under a fresh ID and saves it.
func (s *Service) CreateSnapshot(ctx context.Context) (snapshot.Snapshot, error) {
	done := observability.TimedOperation()

	s.mu.RLock()
	sources := append([]snapshot.Source(nil), s.sources...)
	s.mu.RUnlock()

	snap, err := snapshot.Build(s.config.NewID(), s.config.Clock(), sources...)
	if err != nil {
		observability.LogSnapshotError(s.logger, "build", err)
		return snapshot.Snapshot{}, fmt.Errorf("build snapshot: %w", err)
	}
	if err := s.config.Store.Save(ctx, snap); err != nil {
		observability.LogSnapshotError(s.logger, "save", err)
		return snapshot.Snapshot{}, fmt.Errorf("save snapshot %s: %w", snap.ID, err)
	}

	size := snap.Size()
	s.config.Metrics.RecordSnapshot(ctx, size)
	observability.LogSnapshot(s.logger, snap.ID, len(snap.Components), int(size))
	observability.LogOperation(s.logger, "create_snapshot",
		slog.String("snapshot_id", snap.ID),
		slog.Float64("duration_ms", done()),
	)
	return snap, nil
}

// Snapshot loads a stored snapshot.
func (s *Service) Snapshot(ctx context.Context, id string) (snapshot.Snapshot, error) {
	return s.config.Store.Load(ctx, id)
}

// Snapshots lists stored snapshots in creation order.
func (s *Service) Snapshots(ctx context.Context) ([]snapshot.Info, error) {
	return s.config.Store.List(ctx)
}

// ReconstructState selects the entries with timestamps at or before target,
// in chronological order. It does not rebuild service state.
func (s *Service) ReconstructState(target time.Time) Reconstruction {
	s.mu.RLock()
	var selected []Entry
	for _, e := range s.entries {
		if !e.Timestamp.After(target) {
			selected = append(selected, e)
		}
	}
	s.mu.RUnlock()

	sortChronological(selected)
	observability.LogOperation(s.logger, "reconstruct_state",
		slog.Time("target_date", target),
		slog.Int("events_replayed", len(selected)),
	)
	return Reconstruction{
		TargetDate:     target,
		EventsReplayed: len(selected),
		Events:         selected,
	}
}

// AuditTrail returns the entries whose payload references the entity, in
// chronological order. Entries with equal timestamps keep their log order.
func (s *Service) AuditTrail(entityType, entityID string) ([]Entry, error) {
	var ref func(Entry) string
	switch entityType {
	case EntityUser:
		ref = Entry.userID
	case EntityBook:
		ref = Entry.bookID
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntityType, entityType)
	}

	s.mu.RLock()
	var trail []Entry
	for _, e := range s.entries {
		if ref(e) == entityID {
			trail = append(trail, e)
		}
	}
	s.mu.RUnlock()

	sortChronological(trail)
	return trail, nil
}

// CorrelationTrail returns every entry in one causal chain, in chronological order.
// An empty ID matches nothing.
func (s *Service) CorrelationTrail(correlationID string) []Entry {
	if correlationID == "" {
		return nil
	}
	s.mu.RLock()
	var trail []Entry
	for _, e := range s.entries {
		if e.CorrelationID == correlationID {
			trail = append(trail, e)
		}
	}
	s.mu.RUnlock()

	sortChronological(trail)
	return trail
}

// DetectAnomalies flags users with more BookBorrowed entries than the
// threshold inside the window ending now. Results are ordered by user ID.
func (s *Service) DetectAnomalies() []Anomaly {
	now := s.config.Clock()
	cutoff := now.Add(-s.config.AnomalyWindow)

	counts := make(map[string]int)
	s.mu.RLock()
	for _, e := range s.entries {
		if e.EventType != event.TypeBookBorrowed || !e.Timestamp.After(cutoff) {
			continue
		}
		if user := e.userID(); user != "" {
			counts[user]++
		}
	}
	s.mu.RUnlock()

	var anomalies []Anomaly
	for user, n := range counts {
		if n > s.config.AnomalyThreshold {
			anomalies = append(anomalies, Anomaly{
				Type:        AnomalyRapidBorrowing,
				UserID:      user,
				BorrowCount: n,
				DetectedAt:  now,
			})
		}
	}
	sort.Slice(anomalies, func(i, j int) bool {
		return anomalies[i].UserID < anomalies[j].UserID
	})
	for _, a := range anomalies {
		observability.LogAnomaly(s.logger, a.Type, a.UserID, a.BorrowCount)
	}
	return anomalies
}

// Reset discards the audit log and every stored snapshot.
func (s *Service) Reset() {
	s.mu.Lock()
	s.entries = nil
	s.mu.Unlock()

	if err := s.config.Store.Clear(context.Background()); err != nil {
		observability.LogSnapshotError(s.logger, "clear", err)
	}
}

func sortChronological(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
}
