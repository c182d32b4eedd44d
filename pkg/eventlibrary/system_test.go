package eventlibrary_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary"
	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary/analytics"
	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary/audit"
	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary/config"
	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary/event"
	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary/library"
	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary/notification"
	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary/snapshot"
)

var start = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newSystem(t *testing.T, opts ...eventlibrary.Option) (*eventlibrary.System, *clock) {
	t.Helper()
	c := &clock{now: start}
	opts = append([]eventlibrary.Option{eventlibrary.WithClock(c.Now)}, opts...)
	sys, err := eventlibrary.New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sys.Close() })
	sys.Initialize()
	return sys, c
}

func TestInitializeWiring(t *testing.T) {
	sys, _ := newSystem(t)
	b := sys.Broker

	assert.Equal(t, 7, b.RegistrationCount())
	services := func(typ string) []string {
		var out []string
		for _, reg := range b.Registrations(typ) {
			out = append(out, reg.Service)
		}
		return out
	}
	assert.Equal(t, []string{notification.ServiceName, "AnalyticsService", audit.ServiceName}, services(event.TypeUserRegistered))
	assert.Equal(t, []string{notification.ServiceName, "AnalyticsService", audit.ServiceName}, services(event.TypeBookBorrowed))
	assert.Equal(t, []string{audit.ServiceName}, services(event.TypeNotificationSent))
	assert.Equal(t, []string{audit.ServiceName}, services(event.TypeBookAdded))
}

func TestInitializeIsIdempotent(t *testing.T) {
	sys, _ := newSystem(t)

	sys.Initialize()
	assert.Equal(t, 7, sys.Broker.RegistrationCount())
}

func TestUserRegisteredDrain(t *testing.T) {
	sys, _ := newSystem(t)
	ctx := context.Background()

	user, err := sys.Library.RegisterUser(ctx, "new@example.com", "New User", library.UserTypeStandard)
	require.NoError(t, err)
	assert.Equal(t, 1, sys.Broker.Pending())

	processed := sys.Drain(ctx)
	assert.Equal(t, 2, processed, "UserRegistered then NotificationSent")
	assert.Empty(t, sys.Broker.FailedEvents())

	notes := sys.Notifications.UserNotifications(user.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, notification.TypeWelcome, notes[0].Type)

	m := sys.Analytics.Metrics()
	assert.Equal(t, 1, m.TotalUsers)
	assert.Equal(t, 1, m.UserTypes["standard"])

	entries := sys.Audit.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, event.TypeUserRegistered, entries[0].EventType)
	assert.Equal(t, event.TypeNotificationSent, entries[1].EventType)
	assert.Equal(t, entries[0].CorrelationID, entries[1].CorrelationID)
}

func TestBorrowReturnLifecycle(t *testing.T) {
	sys, c := newSystem(t)
	ctx := context.Background()

	book, err := sys.Library.AddBook(ctx, "978-0441013593", "Dune", "Frank Herbert", 1)
	require.NoError(t, err)
	alice, err := sys.Library.RegisterUser(ctx, "alice@example.com", "Alice", library.UserTypeStandard)
	require.NoError(t, err)
	bob, err := sys.Library.RegisterUser(ctx, "bob@example.com", "Bob", library.UserTypeStandard)
	require.NoError(t, err)

	_, err = sys.Library.BorrowBook(ctx, alice.ID, book.ID)
	require.NoError(t, err)
	_, err = sys.Library.BorrowBook(ctx, bob.ID, book.ID)
	assert.ErrorIs(t, err, library.ErrUnavailable)

	c.now = start.Add(17 * 24 * time.Hour)
	returned, err := sys.Library.ReturnBook(ctx, alice.ID, book.ID)
	require.NoError(t, err)
	assert.InDelta(t, 1.50, returned.LateFee, 1e-9)

	sys.Drain(ctx)
	assert.Empty(t, sys.Broker.FailedEvents())

	aliceNotes := sys.Notifications.UserNotifications(alice.ID)
	require.Len(t, aliceNotes, 4)
	assert.Contains(t, aliceNotes[3].Message, "late fee of $1.50")

	m := sys.Analytics.Metrics()
	assert.Equal(t, 1, m.TotalBorrows)
	assert.Equal(t, 1, m.TotalReturns)
	assert.InDelta(t, 1.50, m.TotalLateFees, 1e-9)

	trail, err := sys.Audit.AuditTrail(audit.EntityBook, book.ID)
	require.NoError(t, err)
	var types []string
	for _, e := range trail {
		types = append(types, e.EventType)
	}
	assert.Equal(t, []string{event.TypeBookAdded, event.TypeBookBorrowed, event.TypeBookReturned}, types)

	again, err := sys.Audit.AuditTrail(audit.EntityBook, book.ID)
	require.NoError(t, err)
	assert.Equal(t, trail, again)

	report := sys.Analytics.GenerateUsageReport(start, c.now)
	assert.Equal(t, 1, report.TotalBorrows)
	assert.Equal(t, 1, report.TotalReturns)
	assert.Equal(t, 2, report.ActiveUsers)
	assert.Equal(t, report, sys.Analytics.GenerateUsageReport(start, c.now))
}

func TestRapidBorrowingAnomaly(t *testing.T) {
	settings := config.Defaults()
	settings.PremiumLimit = 10
	sys, _ := newSystem(t, eventlibrary.WithSettings(settings))
	ctx := context.Background()

	user, err := sys.Library.RegisterUser(ctx, "fast@example.com", "Fast", library.UserTypePremium)
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		book, err := sys.Library.AddBook(ctx, fmt.Sprintf("isbn-%d", i), "Book", "Author", 1)
		require.NoError(t, err)
		_, err = sys.Library.BorrowBook(ctx, user.ID, book.ID)
		require.NoError(t, err)
	}
	sys.Drain(ctx)

	anomalies := sys.Audit.DetectAnomalies()
	require.Len(t, anomalies, 1)
	assert.Equal(t, user.ID, anomalies[0].UserID)
	assert.Equal(t, 6, anomalies[0].BorrowCount)
}

func TestCreateSnapshotCapturesEveryService(t *testing.T) {
	sys, _ := newSystem(t)
	ctx := context.Background()

	_, err := sys.Library.RegisterUser(ctx, "snap@example.com", "Snap", "")
	require.NoError(t, err)
	sys.Drain(ctx)

	snap, err := sys.Audit.CreateSnapshot(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"library", "notification", "analytics"}, snap.Names())

	var notes notification.State
	require.NoError(t, snap.Decode("notification", &notes))
	assert.Len(t, notes.Notifications, 1)

	var stats analytics.State
	require.NoError(t, snap.Decode("analytics", &stats))
	assert.Equal(t, 1, stats.Metrics.TotalUsers)
	require.Len(t, stats.Events, 1)

	var lib library.State
	require.NoError(t, snap.Decode("library", &lib))
	assert.Len(t, lib.Users, 1)
}

func TestSQLiteSnapshotBackend(t *testing.T) {
	settings := config.Defaults()
	settings.SnapshotBackend = config.SnapshotBackendSQLite
	settings.SnapshotPath = filepath.Join(t.TempDir(), "snapshots.db")
	sys, _ := newSystem(t, eventlibrary.WithSettings(settings))
	ctx := context.Background()

	snap, err := sys.Audit.CreateSnapshot(ctx)
	require.NoError(t, err)

	loaded, err := sys.Audit.Snapshot(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, loaded.ID)
}

func TestWithSnapshotStoreNotClosed(t *testing.T) {
	store := snapshot.NewMemoryStore()
	sys, err := eventlibrary.New(eventlibrary.WithSnapshotStore(store))
	require.NoError(t, err)
	sys.Initialize()

	_, err = sys.Audit.CreateSnapshot(context.Background())
	require.NoError(t, err)
	require.NoError(t, sys.Close())

	assert.Equal(t, 1, store.Len())
	_, err = store.List(context.Background())
	assert.NoError(t, err)
}

func TestInvalidSettings(t *testing.T) {
	settings := config.Defaults()
	settings.StandardLimit = 0

	_, err := eventlibrary.New(eventlibrary.WithSettings(settings))
	assert.ErrorIs(t, err, config.ErrInvalidSettings)
}

func TestResetAll(t *testing.T) {
	sys, _ := newSystem(t)
	ctx := context.Background()

	_, err := sys.Library.RegisterUser(ctx, "reset@example.com", "Reset", library.UserTypeStandard)
	require.NoError(t, err)
	sys.Drain(ctx)
	_, err = sys.Audit.CreateSnapshot(ctx)
	require.NoError(t, err)

	sys.ResetAll()

	assert.Zero(t, sys.Broker.RegistrationCount())
	assert.Zero(t, sys.Broker.Pending())
	assert.Empty(t, sys.Library.Users())
	assert.Empty(t, sys.Notifications.Notifications())
	assert.Zero(t, sys.Analytics.Metrics().TotalUsers)
	assert.Empty(t, sys.Audit.Entries())
	infos, err := sys.Audit.Snapshots(ctx)
	require.NoError(t, err)
	assert.Empty(t, infos)

	sys.Initialize()
	assert.Equal(t, 7, sys.Broker.RegistrationCount())

	_, err = sys.Library.RegisterUser(ctx, "reset@example.com", "Reset", library.UserTypeStandard)
	require.NoError(t, err, "email index was cleared")
}

func TestTrackPerformanceSetting(t *testing.T) {
	settings := config.Defaults()
	settings.TrackPerformance = true
	sys, _ := newSystem(t, eventlibrary.WithSettings(settings))
	ctx := context.Background()

	_, err := sys.Library.RegisterUser(ctx, "perf@example.com", "Perf", library.UserTypeStandard)
	require.NoError(t, err)
	sys.Drain(ctx)

	perf := sys.Analytics.Metrics().Performance
	assert.Equal(t, 3, perf[event.TypeUserRegistered].Count, "one sample per handler")
	assert.Equal(t, 1, perf[event.TypeNotificationSent].Count)
}

func TestValidateEventsSetting(t *testing.T) {
	settings := config.Defaults()
	settings.ValidateEvents = true
	sys, _ := newSystem(t, eventlibrary.WithSettings(settings))
	ctx := context.Background()

	sys.Broker.Emit(ctx, event.BookBorrowed{UserID: "u1"})
	sys.Drain(ctx)

	failed := sys.Broker.FailedEvents()
	require.Len(t, failed, 1)
	assert.Equal(t, "broker", failed[0].Service)
	assert.Empty(t, sys.Audit.Entries())
}
