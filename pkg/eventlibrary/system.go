package eventlibrary

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary/analytics"
	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary/audit"
	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary/broker"
	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary/config"
	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary/event"
	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary/library"
	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary/notification"
	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary/observability"
	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary/snapshot"
)

// System is one broker with the four services attached to it.
type System struct {
	Broker        *broker.Broker
	Library       *library.Service
	Notifications *notification.Service
	Analytics     *analytics.Service
	Audit         *audit.Service

	settings  config.Settings
	logger    *slog.Logger
	store     snapshot.Store
	ownsStore bool

	mu          sync.Mutex
	initialized bool
}

// New builds a system from options. Handlers are not registered until
// Initialize is called.
func New(opts ...Option) (*System, error) {
	cfg := defaultSystemConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.settings.Validate(); err != nil {
		return nil, err
	}

	store, owned, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	var metrics observability.MetricsRecorder = observability.NoopMetrics{}
	if cfg.settings.Metrics {
		metrics = observability.NewMetricsRecorder()
	}
	var spans observability.SpanManager = observability.NoopSpanManager{}
	if cfg.settings.Tracing {
		spans = observability.NewSpanManager()
	}

	stats := analytics.New(analytics.Config{Logger: cfg.logger, Clock: cfg.clock})

	brokerConfig := broker.Config{
		Logger:         cfg.logger,
		Metrics:        metrics,
		Spans:          spans,
		Registry:       event.DefaultRegistry,
		ValidateEvents: cfg.settings.ValidateEvents,
		Clock:          cfg.clock,
	}
	if cfg.settings.TrackPerformance {
		brokerConfig.OnHandled = stats.ObserveHandler
	}
	b := broker.New(brokerConfig)

	lib := library.New(b, library.Config{
		LoanPeriod:    cfg.settings.LoanPeriod,
		LateFeePerDay: cfg.settings.LateFeePerDay,
		StandardLimit: cfg.settings.StandardLimit,
		PremiumLimit:  cfg.settings.PremiumLimit,
		Logger:        cfg.logger,
		Clock:         cfg.clock,
		NewID:         cfg.newID,
	})
	notes := notification.New(b, notification.Config{
		Logger: cfg.logger,
		Clock:  cfg.clock,
		NewID:  cfg.newID,
	})
	auditor := audit.New(audit.Config{
		Store:            store,
		Sources:          []snapshot.Source{lib, notes, stats},
		AnomalyWindow:    cfg.settings.AnomalyWindow,
		AnomalyThreshold: cfg.settings.AnomalyThreshold,
		Metrics:          metrics,
		Logger:           cfg.logger,
		Clock:            cfg.clock,
		NewID:            cfg.newID,
	})

	return &System{
		Broker:        b,
		Library:       lib,
		Notifications: notes,
		Analytics:     stats,
		Audit:         auditor,
		settings:      cfg.settings,
		logger:        cfg.logger,
		store:         store,
		ownsStore:     owned,
	}, nil
}

func openStore(cfg systemConfig) (snapshot.Store, bool, error) {
	if cfg.store != nil {
		return cfg.store, false, nil
	}
	if cfg.settings.SnapshotBackend == config.SnapshotBackendSQLite {
		store, err := snapshot.NewSQLiteStore(cfg.settings.SnapshotPath)
		if err != nil {
			return nil, false, fmt.Errorf("open snapshot store: %w", err)
		}
		return store, true, nil
	}
	return snapshot.NewMemoryStore(), true, nil
}

// Settings returns the settings the system was built with.
func (s *System) Settings() config.Settings {
	return s.settings
}

// Initialize registers every service's handlers with the broker. It is a
// no-op if the system is already initialized; ResetAll clears that state.
func (s *System) Initialize() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return
	}
	s.Notifications.Register(s.Broker)
	s.Analytics.Register(s.Broker)
	s.Audit.Register(s.Broker)
	s.initialized = true

	observability.LogOperation(s.logger, "initialize",
		slog.Int("registrations", s.Broker.RegistrationCount()),
	)
}

// ResetAll clears every service's state and the broker, including its
// registrations. Call Initialize again before emitting.
func (s *System) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Broker.Reset()
	s.Library.Reset()
	s.Notifications.Reset()
	s.Analytics.Reset()
	s.Audit.Reset()
	s.initialized = false

	observability.LogOperation(s.logger, "reset_all")
}

// Drain processes queued events until the queue is empty and returns the
// number processed.
func (s *System) Drain(ctx context.Context) int {
	return s.Broker.ProcessAll(ctx)
}

// Close releases the snapshot store if the system opened it.
func (s *System) Close() error {
	if !s.ownsStore {
		return nil
	}
	return s.store.Close()
}
