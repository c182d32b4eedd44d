package event

import "sync"

// Queue is a FIFO of envelopes. It is safe for concurrent producers and
// consumers; ordering is strictly by arrival.
type Queue struct {
	mu    sync.Mutex
	items []Envelope
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends an envelope at the tail.
func (q *Queue) Push(evt Envelope) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, evt)
}

// Pop removes and returns the head envelope.
// Returns false when the queue is empty.
func (q *Queue) Pop() (Envelope, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Envelope{}, false
	}

	evt := q.items[0]
	q.items[0] = Envelope{} // release payload for GC
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return evt, true
}

// Peek returns the head envelope without removing it.
func (q *Queue) Peek() (Envelope, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Envelope{}, false
	}
	return q.items[0], true
}

// Len returns the number of queued envelopes.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Snapshot returns a copy of the queued envelopes in order.
func (q *Queue) Snapshot() []Envelope {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Envelope, len(q.items))
	copy(out, q.items)
	return out
}

// Clear drops every queued envelope.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}
