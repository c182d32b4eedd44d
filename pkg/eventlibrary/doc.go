/*
Package eventlibrary wires an event-driven library system together.

# Overview

A library service owns books, users, and borrowings. Every change it makes
is published as an event to an in-process broker. Three downstream services
react to those events and keep their own state:

  - notification records user-facing messages (welcome, borrow and due date,
    return and late fee)
  - analytics counts borrows, returns, users, and book popularity
  - audit keeps an append-only log of every event, answers audit-trail and
    correlation queries, detects rapid borrowing, and captures snapshots

No service calls another directly. Events queue up on Emit and are
delivered only when the queue is drained.

# Basic Usage

	sys, err := eventlibrary.New()
	if err != nil {
	    log.Fatal(err)
	}
	defer sys.Close()
	sys.Initialize()

	ctx := context.Background()
	book, _ := sys.Library.AddBook(ctx, "978-0441013593", "Dune", "Frank Herbert", 2)
	user, _ := sys.Library.RegisterUser(ctx, "ada@example.com", "Ada", library.UserTypeStandard)
	if _, err := sys.Library.BorrowBook(ctx, user.ID, book.ID); err != nil {
	    log.Fatal(err)
	}

	sys.Drain(ctx)
	fmt.Println(len(sys.Notifications.UserNotifications(user.ID))) // 3

# Failure Handling

A handler that returns an error or panics is recorded as a broker.FailedEvent
and never stops delivery to the remaining handlers or events. Inspect them
with sys.Broker.FailedEvents().

# Configuration

Settings come from config.Load (YAML or JSON plus EVENTLIBRARY_* environment
overrides) and are passed with WithSettings. They select loan rules, anomaly
detection parameters, the snapshot backend (memory or SQLite), and whether
OpenTelemetry metrics and tracing are recorded.
*/
package eventlibrary
