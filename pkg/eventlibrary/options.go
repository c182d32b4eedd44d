package eventlibrary

import (
	"log/slog"
	"time"

	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary/config"
	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary/snapshot"
)

// systemConfig holds configuration for building a System.
type systemConfig struct {
	settings config.Settings
	logger   *slog.Logger
	clock    func() time.Time
	newID    func() string
	store    snapshot.Store
}

func defaultSystemConfig() systemConfig {
	return systemConfig{
		settings: config.Defaults(),
		clock:    time.Now,
	}
}

// Option configures a System.
type Option func(*systemConfig)

// WithSettings replaces the default settings.
//
// Example:
//
//	settings, err := config.Load("library.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	sys, err := eventlibrary.New(eventlibrary.WithSettings(settings))
func WithSettings(s config.Settings) Option {
	return func(c *systemConfig) {
		c.settings = s
	}
}

// WithLogger sets the logger shared by the broker and every service.
// Default: no logging
func WithLogger(logger *slog.Logger) Option {
	return func(c *systemConfig) {
		c.logger = logger
	}
}

// WithClock sets the time source for event timestamps, due dates, and
// reports. Default: time.Now
func WithClock(clock func() time.Time) Option {
	return func(c *systemConfig) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithIDGenerator sets the generator for entity, notification, and
// snapshot IDs. Default: uuid.NewString
func WithIDGenerator(newID func() string) Option {
	return func(c *systemConfig) {
		c.newID = newID
	}
}

// WithSnapshotStore uses store instead of the backend named in settings.
// The caller keeps ownership: Close does not close it.
func WithSnapshotStore(store snapshot.Store) Option {
	return func(c *systemConfig) {
		c.store = store
	}
}
