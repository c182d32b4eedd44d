// Package analytics derives usage metrics from library events.
//
// The service keeps an append-only log of the events it consumed plus
// running counters, and answers report queries from that local state only.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary/broker"
	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary/event"
	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary/observability"
)

// ServiceName identifies the analytics service in registrations and logs.
const ServiceName = "AnalyticsService"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Record is one consumed event. Payload is the event data encoded when the
// event was consumed, so records never share memory with other handlers.
type Record struct {
	Type      string              `json:"type"`
	Timestamp time.Time           `json:"timestamp"`
	UserID    string              `json:"user_id,omitempty"`
	BookID    string              `json:"book_id,omitempty"`
	Payload   jsoniter.RawMessage `json:"data"`
}

// Decode unmarshals the record's event data into out.
func (r Record) Decode(out any) error {
	if err := json.Unmarshal(r.Payload, out); err != nil {
		return fmt.Errorf("decode %s record: %w", r.Type, err)
	}
	return nil
}

func (r Record) clone() Record {
	r.Payload = append(jsoniter.RawMessage(nil), r.Payload...)
	return r
}

// PerformanceStat is the running processing time of one event type.
type PerformanceStat struct {
	TotalTime float64 `json:"total_time"`
	Count     int     `json:"count"`
	Average   float64 `json:"average"`
}

// Metrics are the running counters.
type Metrics struct {
	TotalBorrows   int                        `json:"total_borrows"`
	TotalReturns   int                        `json:"total_returns"`
	TotalLateFees  float64                    `json:"total_late_fees"`
	TotalUsers     int                        `json:"total_users"`
	BookPopularity map[string]int             `json:"book_popularity"`
	UserTypes      map[string]int             `json:"user_types"`
	Performance    map[string]PerformanceStat `json:"performance"`
}

func newMetrics() Metrics {
	return Metrics{
		BookPopularity: make(map[string]int),
		UserTypes:      make(map[string]int),
		Performance:    make(map[string]PerformanceStat),
	}
}

func (m Metrics) clone() Metrics {
	out := m
	out.BookPopularity = copyCounts(m.BookPopularity)
	out.UserTypes = copyCounts(m.UserTypes)
	out.Performance = make(map[string]PerformanceStat, len(m.Performance))
	for k, v := range m.Performance {
		out.Performance[k] = v
	}
	return out
}

// Period is an inclusive time range.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t lies within the period, bounds included.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// Report summarizes activity within a period.
type Report struct {
	Period       Period         `json:"period"`
	TotalBorrows int            `json:"total_borrows"`
	TotalReturns int            `json:"total_returns"`
	ActiveUsers  int            `json:"active_users"`
	PopularBooks map[string]int `json:"popular_books"`
	GeneratedAt  time.Time      `json:"generated_at"`
}

// BookPopularity is one row of the popularity ranking.
type BookPopularity struct {
	BookID  string `json:"book_id"`
	Title   string `json:"title"`
	Borrows int    `json:"borrows"`
}

// State is a deep copy of the service's data.
type State struct {
	Events  []Record `json:"events"`
	Metrics Metrics  `json:"metrics"`
}

// Config configures the analytics service.
type Config struct {
	// Logger receives structured logs. Nil disables logging.
	Logger *slog.Logger

	// Clock stamps generated reports. Default: time.Now
	Clock func() time.Time
}

// Service aggregates library activity. All methods are safe for concurrent use.
type Service struct {
	config Config
	logger *slog.Logger

	mu      sync.RWMutex
	events  []Record
	metrics Metrics
	titles  map[string]string
}

// New creates an analytics service.
func New(config Config) *Service {
	if config.Clock == nil {
		config.Clock = time.Now
	}
	s := &Service{
		config: config,
		logger: observability.ServiceLogger(config.Logger, ServiceName),
	}
	s.Reset()
	return s
}

// Register subscribes the service's handlers.
func (s *Service) Register(b *broker.Broker) {
	b.Register(event.TypeBookBorrowed, event.Typed(s.handleBookBorrowed), ServiceName)
	b.Register(event.TypeBookReturned, event.Typed(s.handleBookReturned), ServiceName)
	b.Register(event.TypeUserRegistered, event.Typed(s.handleUserRegistered), ServiceName)
}

func (s *Service) handleBookBorrowed(_ context.Context, p event.BookBorrowed, meta event.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.append(p, meta, p.UserID, p.BookID); err != nil {
		return err
	}
	s.metrics.TotalBorrows++
	s.metrics.BookPopularity[p.BookID]++
	if p.BookTitle != "" {
		s.titles[p.BookID] = p.BookTitle
	}
	return nil
}

func (s *Service) handleBookReturned(_ context.Context, p event.BookReturned, meta event.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.append(p, meta, p.UserID, p.BookID); err != nil {
		return err
	}
	s.metrics.TotalReturns++
	if p.LateFee > 0 {
		s.metrics.TotalLateFees += p.LateFee
	}
	return nil
}

func (s *Service) handleUserRegistered(_ context.Context, p event.UserRegistered, meta event.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.append(p, meta, p.UserID, ""); err != nil {
		return err
	}
	s.metrics.TotalUsers++
	s.metrics.UserTypes[p.UserType]++
	return nil
}

func (s *Service) append(p event.Payload, meta event.Metadata, userID, bookID string) error {
	data, err := json.Marshal(event.Copy(p))
	if err != nil {
		return fmt.Errorf("encode %s: %w", p.EventType(), err)
	}
	s.events = append(s.events, Record{
		Type:      p.EventType(),
		Timestamp: meta.Timestamp,
		UserID:    userID,
		BookID:    bookID,
		Payload:   data,
	})
	return nil
}

// GenerateUsageReport summarizes events with timestamps in [start, end].
// PopularBooks is the all-time popularity count, not limited to the period.
func (s *Service) GenerateUsageReport(start, end time.Time) Report {
	s.mu.RLock()
	defer s.mu.RUnlock()

	period := Period{Start: start, End: end}
	report := Report{
		Period:       period,
		PopularBooks: copyCounts(s.metrics.BookPopularity),
		GeneratedAt:  s.config.Clock(),
	}

	users := make(map[string]struct{})
	for _, rec := range s.events {
		if !period.Contains(rec.Timestamp) {
			continue
		}
		switch rec.Type {
		case event.TypeBookBorrowed:
			report.TotalBorrows++
		case event.TypeBookReturned:
			report.TotalReturns++
		}
		if rec.UserID != "" {
			users[rec.UserID] = struct{}{}
		}
	}
	report.ActiveUsers = len(users)

	observability.LogOperation(s.logger, "generate_usage_report",
		slog.Int("total_borrows", report.TotalBorrows),
		slog.Int("active_users", report.ActiveUsers),
	)
	return report
}

// BookPopularity ranks books by borrow count, most borrowed first. Ties
// are ordered by book ID.
func (s *Service) BookPopularity() []BookPopularity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]BookPopularity, 0, len(s.metrics.BookPopularity))
	for id, n := range s.metrics.BookPopularity {
		out = append(out, BookPopularity{BookID: id, Title: s.titles[id], Borrows: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Borrows != out[j].Borrows {
			return out[i].Borrows > out[j].Borrows
		}
		return out[i].BookID < out[j].BookID
	})
	return out
}

// TrackPerformance adds one processing-time sample for eventType.
func (s *Service) TrackPerformance(eventType string, seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stat := s.metrics.Performance[eventType]
	stat.TotalTime += seconds
	stat.Count++
	stat.Average = stat.TotalTime / float64(stat.Count)
	s.metrics.Performance[eventType] = stat
}

// ObserveHandler adapts TrackPerformance to the broker's OnHandled hook.
func (s *Service) ObserveHandler(eventType, _ string, duration time.Duration, _ error) {
	s.TrackPerformance(eventType, duration.Seconds())
}

// Metrics returns a copy of the running counters.
func (s *Service) Metrics() Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metrics.clone()
}

// Events returns a copy of the event log.
func (s *Service) Events() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, len(s.events))
	for i, rec := range s.events {
		out[i] = rec.clone()
	}
	return out
}

// State returns a deep copy of the service's data.
func (s *Service) State() State {
	return State{Events: s.Events(), Metrics: s.Metrics()}
}

// SnapshotName implements snapshot.Source.
func (s *Service) SnapshotName() string { return "analytics" }

// SnapshotState implements snapshot.Source.
func (s *Service) SnapshotState() any { return s.State() }

// Reset discards the event log and every counter.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = nil
	s.metrics = newMetrics()
	s.titles = make(map[string]string)
}

func copyCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
