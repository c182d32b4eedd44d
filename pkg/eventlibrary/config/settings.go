package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "EVENTLIBRARY_"

// Snapshot backends.
const (
	SnapshotBackendMemory = "memory"
	SnapshotBackendSQLite = "sqlite"
)

// ErrInvalidSettings is returned by Settings.Validate.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings holds the tunables of the library system.
type Settings struct {
	// Library rules.
	LoanPeriod    time.Duration
	LateFeePerDay float64
	StandardLimit int
	PremiumLimit  int

	// Audit anomaly detection: more than AnomalyThreshold borrows by one
	// user inside AnomalyWindow is flagged.
	AnomalyWindow    time.Duration
	AnomalyThreshold int

	// Snapshot storage.
	SnapshotBackend string
	SnapshotPath    string

	// Logging.
	LogLevel  string
	LogFormat string

	// Observability.
	Metrics bool
	Tracing bool

	// TrackPerformance feeds broker handler timings into analytics.
	TrackPerformance bool

	// ValidateEvents checks domain events against their schemas before dispatch.
	ValidateEvents bool
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Settings {
	return Settings{
		LoanPeriod:       14 * 24 * time.Hour,
		LateFeePerDay:    0.50,
		StandardLimit:    3,
		PremiumLimit:     5,
		AnomalyWindow:    time.Hour,
		AnomalyThreshold: 5,
		SnapshotBackend:  SnapshotBackendMemory,
		SnapshotPath:     ":memory:",
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

// FromConfig overlays values found in c onto Defaults.
//
//	library:
//	  loan_period: 14d
//	  late_fee_per_day: 0.5
//	  limits: {standard: 3, premium: 5}
//	audit:
//	  anomaly_window: 1h
//	  anomaly_threshold: 5
//	snapshot: {backend: sqlite, path: ./snapshots.db}
//	log: {level: debug, format: json}
//	observability: {metrics: true, tracing: true}
//	analytics: {track_performance: true}
//	broker: {validate_events: true}
func FromConfig(c Config) Settings {
	d := Defaults()
	return Settings{
		LoanPeriod:       c.Duration("library.loan_period", d.LoanPeriod),
		LateFeePerDay:    c.Float("library.late_fee_per_day", d.LateFeePerDay),
		StandardLimit:    c.Int("library.limits.standard", d.StandardLimit),
		PremiumLimit:     c.Int("library.limits.premium", d.PremiumLimit),
		AnomalyWindow:    c.Duration("audit.anomaly_window", d.AnomalyWindow),
		AnomalyThreshold: c.Int("audit.anomaly_threshold", d.AnomalyThreshold),
		SnapshotBackend:  c.String("snapshot.backend", d.SnapshotBackend),
		SnapshotPath:     c.String("snapshot.path", d.SnapshotPath),
		LogLevel:         c.String("log.level", d.LogLevel),
		LogFormat:        c.String("log.format", d.LogFormat),
		Metrics:          c.Bool("observability.metrics", d.Metrics),
		Tracing:          c.Bool("observability.tracing", d.Tracing),
		TrackPerformance: c.Bool("analytics.track_performance", d.TrackPerformance),
		ValidateEvents:   c.Bool("broker.validate_events", d.ValidateEvents),
	}
}

// WithEnv applies EVENTLIBRARY_* environment overrides. Unset or
// unparseable variables leave the current value in place.
func (s Settings) WithEnv() Settings {
	s.LoanPeriod = envDuration("LOAN_PERIOD", s.LoanPeriod)
	s.LateFeePerDay = envFloat("LATE_FEE_PER_DAY", s.LateFeePerDay)
	s.StandardLimit = envInt("STANDARD_LIMIT", s.StandardLimit)
	s.PremiumLimit = envInt("PREMIUM_LIMIT", s.PremiumLimit)
	s.AnomalyWindow = envDuration("ANOMALY_WINDOW", s.AnomalyWindow)
	s.AnomalyThreshold = envInt("ANOMALY_THRESHOLD", s.AnomalyThreshold)
	s.SnapshotBackend = getEnv("SNAPSHOT_BACKEND", s.SnapshotBackend)
	s.SnapshotPath = getEnv("SNAPSHOT_PATH", s.SnapshotPath)
	s.LogLevel = getEnv("LOG_LEVEL", s.LogLevel)
	s.LogFormat = getEnv("LOG_FORMAT", s.LogFormat)
	s.Metrics = envBool("METRICS", s.Metrics)
	s.Tracing = envBool("TRACING", s.Tracing)
	s.TrackPerformance = envBool("TRACK_PERFORMANCE", s.TrackPerformance)
	s.ValidateEvents = envBool("VALIDATE_EVENTS", s.ValidateEvents)
	return s
}

// Validate reports the first out-of-range setting.
func (s Settings) Validate() error {
	switch {
	case s.LoanPeriod <= 0:
		return fmt.Errorf("%w: loan period must be positive", ErrInvalidSettings)
	case s.LateFeePerDay <= 0:
		return fmt.Errorf("%w: late fee per day must be positive", ErrInvalidSettings)
	case s.StandardLimit <= 0 || s.PremiumLimit <= 0:
		return fmt.Errorf("%w: borrowing limits must be positive", ErrInvalidSettings)
	case s.AnomalyWindow <= 0:
		return fmt.Errorf("%w: anomaly window must be positive", ErrInvalidSettings)
	case s.AnomalyThreshold <= 0:
		return fmt.Errorf("%w: anomaly threshold must be positive", ErrInvalidSettings)
	}

	switch s.SnapshotBackend {
	case SnapshotBackendMemory:
	case SnapshotBackendSQLite:
		if s.SnapshotPath == "" {
			return fmt.Errorf("%w: sqlite snapshot backend needs a path", ErrInvalidSettings)
		}
	default:
		return fmt.Errorf("%w: unknown snapshot backend %q", ErrInvalidSettings, s.SnapshotBackend)
	}
	return nil
}

// SlogLevel maps LogLevel onto slog. Unknown names mean info.
func (s Settings) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Load reads settings from path (YAML or JSON) and applies environment
// overrides. An empty path means defaults plus environment.
func Load(path string) (Settings, error) {
	s := Defaults()
	if path != "" {
		c, err := FromFile(path)
		if err != nil {
			return Settings{}, err
		}
		s = FromConfig(c)
	}

	s = s.WithEnv()
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if n, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return n
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return f
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(strings.TrimSpace(getEnv(key, ""))); err == nil {
		return b
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if d, err := ParseDuration(getEnv(key, "")); err == nil && d > 0 {
		return d
	}
	return fallback
}
