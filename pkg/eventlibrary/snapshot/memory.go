package snapshot

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps snapshots in process memory.
// Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]storedSnapshot
	seq    int
	closed bool
}

// storedSnapshot holds the encoded snapshot so callers never share
// component buffers with the store.
type storedSnapshot struct {
	encoded []byte
	info    Info
}

// NewMemoryStore creates an empty in-memory snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]storedSnapshot),
	}
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	encoded, err := Marshal(snap)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	m.seq++
	m.data[snap.ID] = storedSnapshot{
		encoded: encoded,
		info: Info{
			ID:        snap.ID,
			Sequence:  m.seq,
			CreatedAt: snap.CreatedAt,
			Size:      snap.Size(),
		},
	}
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context, id string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return Snapshot{}, ErrStoreClosed
	}

	stored, ok := m.data[id]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return Unmarshal(stored.encoded)
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	infos := make([]Info, 0, len(m.data))
	for _, stored := range m.data {
		infos = append(infos, stored.info)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Sequence < infos[j].Sequence
	})
	return infos, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	delete(m.data, id)
	return nil
}

// Clear implements Store.
func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	m.data = make(map[string]storedSnapshot)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.data = nil
	return nil
}

// Len returns the number of stored snapshots.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
