package benchmarks

import (
	"context"
	"testing"

	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary/broker"
	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary/event"
)

func noopHandler() event.Handler {
	return event.HandlerFunc(func(context.Context, event.Envelope) error { return nil })
}

func buildBroker(handlers int) *broker.Broker {
	b := broker.New(broker.Config{})
	for i := 0; i < handlers; i++ {
		b.Register(event.TypeBookBorrowed, noopHandler(), nodeID(i))
	}
	return b
}

// BenchmarkEmit measures queueing one event.
func BenchmarkEmit(b *testing.B) {
	br := buildBroker(0)
	ctx := context.Background()
	payload := event.BookBorrowed{UserID: "u1", BookID: "b1"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		br.Emit(ctx, payload)
	}
}

// BenchmarkEmitProcess_1 emits and drains one event with one handler.
func BenchmarkEmitProcess_1(b *testing.B) {
	benchmarkEmitProcess(b, 1)
}

// BenchmarkEmitProcess_10 emits and drains one event with ten handlers.
func BenchmarkEmitProcess_10(b *testing.B) {
	benchmarkEmitProcess(b, 10)
}

// BenchmarkEmitProcess_100 emits and drains one event with a hundred handlers.
func BenchmarkEmitProcess_100(b *testing.B) {
	benchmarkEmitProcess(b, 100)
}

func benchmarkEmitProcess(b *testing.B, handlers int) {
	br := buildBroker(handlers)
	ctx := context.Background()
	payload := event.BookBorrowed{UserID: "u1", BookID: "b1"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		br.Emit(ctx, payload)
		br.ProcessAll(ctx)
	}
}

// BenchmarkProcess_Batch100 drains a queue of 100 events.
func BenchmarkProcess_Batch100(b *testing.B) {
	br := buildBroker(3)
	br.RegisterAll(noopHandler(), "audit")
	ctx := context.Background()
	payload := event.BookBorrowed{UserID: "u1", BookID: "b1"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		for j := 0; j < 100; j++ {
			br.Emit(ctx, payload)
		}
		b.StartTimer()
		br.ProcessAll(ctx)
	}
}

// BenchmarkProcess_Validated drains with schema validation enabled.
func BenchmarkProcess_Validated(b *testing.B) {
	br := broker.New(broker.Config{Registry: event.DefaultRegistry, ValidateEvents: true})
	br.Register(event.TypeBookBorrowed, noopHandler(), "bench")
	ctx := context.Background()
	payload := event.BookBorrowed{UserID: "u1", BookID: "b1"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		br.Emit(ctx, payload)
		br.ProcessAll(ctx)
	}
}
