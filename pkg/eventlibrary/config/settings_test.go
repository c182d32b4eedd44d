package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary/config"
)

func TestDefaults(t *testing.T) {
	s := config.Defaults()

	assert.Equal(t, 14*24*time.Hour, s.LoanPeriod)
	assert.Equal(t, 0.50, s.LateFeePerDay)
	assert.Equal(t, 3, s.StandardLimit)
	assert.Equal(t, 5, s.PremiumLimit)
	assert.Equal(t, time.Hour, s.AnomalyWindow)
	assert.Equal(t, 5, s.AnomalyThreshold)
	assert.Equal(t, config.SnapshotBackendMemory, s.SnapshotBackend)
	assert.False(t, s.TrackPerformance)
	assert.NoError(t, s.Validate())
}

func TestFromConfig(t *testing.T) {
	cfg, err := config.FromYAML([]byte(`
library:
  loan_period: 21d
  limits: {standard: 4, premium: 8}
audit:
  anomaly_threshold: 2
snapshot:
  backend: sqlite
  path: /tmp/snapshots.db
analytics:
  track_performance: true
broker:
  validate_events: true
`))
	require.NoError(t, err)

	s := config.FromConfig(cfg)
	assert.Equal(t, 21*24*time.Hour, s.LoanPeriod)
	assert.Equal(t, 4, s.StandardLimit)
	assert.Equal(t, 8, s.PremiumLimit)
	assert.Equal(t, 2, s.AnomalyThreshold)
	assert.Equal(t, config.SnapshotBackendSQLite, s.SnapshotBackend)
	assert.Equal(t, "/tmp/snapshots.db", s.SnapshotPath)
	assert.True(t, s.TrackPerformance)
	assert.True(t, s.ValidateEvents)

	// Untouched keys keep their defaults.
	assert.Equal(t, 0.50, s.LateFeePerDay)
	assert.Equal(t, time.Hour, s.AnomalyWindow)
}

func TestWithEnv(t *testing.T) {
	t.Setenv("EVENTLIBRARY_LOAN_PERIOD", "7d")
	t.Setenv("EVENTLIBRARY_LATE_FEE_PER_DAY", "1.5")
	t.Setenv("EVENTLIBRARY_PREMIUM_LIMIT", "10")
	t.Setenv("EVENTLIBRARY_LOG_LEVEL", "debug")
	t.Setenv("EVENTLIBRARY_METRICS", "true")
	t.Setenv("EVENTLIBRARY_STANDARD_LIMIT", "not-a-number")

	s := config.Defaults().WithEnv()
	assert.Equal(t, 7*24*time.Hour, s.LoanPeriod)
	assert.Equal(t, 1.5, s.LateFeePerDay)
	assert.Equal(t, 10, s.PremiumLimit)
	assert.Equal(t, 3, s.StandardLimit)
	assert.Equal(t, "debug", s.LogLevel)
	assert.True(t, s.Metrics)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Settings)
	}{
		{"zero loan period", func(s *config.Settings) { s.LoanPeriod = 0 }},
		{"zero fee", func(s *config.Settings) { s.LateFeePerDay = 0 }},
		{"zero limit", func(s *config.Settings) { s.StandardLimit = 0 }},
		{"zero window", func(s *config.Settings) { s.AnomalyWindow = 0 }},
		{"zero threshold", func(s *config.Settings) { s.AnomalyThreshold = 0 }},
		{"unknown backend", func(s *config.Settings) { s.SnapshotBackend = "redis" }},
		{"sqlite without path", func(s *config.Settings) {
			s.SnapshotBackend = config.SnapshotBackendSQLite
			s.SnapshotPath = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := config.Defaults()
			tt.mutate(&s)
			assert.ErrorIs(t, s.Validate(), config.ErrInvalidSettings)
		})
	}
}

func TestSlogLevel(t *testing.T) {
	s := config.Defaults()
	assert.Equal(t, slog.LevelInfo, s.SlogLevel())

	s.LogLevel = "debug"
	assert.Equal(t, slog.LevelDebug, s.SlogLevel())

	s.LogLevel = "WARN"
	assert.Equal(t, slog.LevelWarn, s.SlogLevel())

	s.LogLevel = "chatty"
	assert.Equal(t, slog.LevelInfo, s.SlogLevel())
}

func TestLoad(t *testing.T) {
	t.Run("no file", func(t *testing.T) {
		s, err := config.Load("")
		require.NoError(t, err)
		assert.Equal(t, config.Defaults().LoanPeriod, s.LoanPeriod)
	})

	t.Run("file and env", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "eventlibrary.yaml")
		require.NoError(t, os.WriteFile(path, []byte("audit:\n  anomaly_threshold: 3\n"), 0o600))
		t.Setenv("EVENTLIBRARY_ANOMALY_THRESHOLD", "4")

		s, err := config.Load(path)
		require.NoError(t, err)
		assert.Equal(t, 4, s.AnomalyThreshold)
	})

	t.Run("invalid result", func(t *testing.T) {
		t.Setenv("EVENTLIBRARY_SNAPSHOT_BACKEND", "tape")
		_, err := config.Load("")
		assert.ErrorIs(t, err, config.ErrInvalidSettings)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}
