package benchmarks

import (
	"context"
	"fmt"
	"testing"

	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary"
	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary/library"
)

func newSystem(b *testing.B) *eventlibrary.System {
	b.Helper()
	sys, err := eventlibrary.New()
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = sys.Close() })
	sys.Initialize()
	return sys
}

// BenchmarkBorrowReturn measures a borrow and return cycle, including the
// drain that fans both events out to every service.
func BenchmarkBorrowReturn(b *testing.B) {
	sys := newSystem(b)
	ctx := context.Background()
	book, err := sys.Library.AddBook(ctx, "978-0", "Dune", "Herbert", 1)
	if err != nil {
		b.Fatal(err)
	}
	user, err := sys.Library.RegisterUser(ctx, "bench@example.com", "Bench", library.UserTypeStandard)
	if err != nil {
		b.Fatal(err)
	}
	sys.Drain(ctx)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = sys.Library.BorrowBook(ctx, user.ID, book.ID)
		_, _ = sys.Library.ReturnBook(ctx, user.ID, book.ID)
		sys.Drain(ctx)
	}
}

// BenchmarkAuditTrail measures an audit trail query over 1000 entries.
func BenchmarkAuditTrail(b *testing.B) {
	sys := newSystem(b)
	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		_, _ = sys.Library.RegisterUser(ctx, fmt.Sprintf("u%d@example.com", i), "User", library.UserTypeStandard)
	}
	sys.Drain(ctx)
	target := sys.Library.Users()[500].ID

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = sys.Audit.AuditTrail("user", target)
	}
}

// BenchmarkCreateSnapshot measures capturing every service after 100 registrations.
func BenchmarkCreateSnapshot(b *testing.B) {
	sys := newSystem(b)
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		_, _ = sys.Library.RegisterUser(ctx, fmt.Sprintf("u%d@example.com", i), "User", library.UserTypeStandard)
	}
	sys.Drain(ctx)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = sys.Audit.CreateSnapshot(ctx)
	}
}
