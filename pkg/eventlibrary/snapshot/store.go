package snapshot

import (
	"context"
	"errors"
	"time"
)

// Store persists snapshots.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores a snapshot, overwriting any snapshot with the same ID.
	Save(ctx context.Context, snap Snapshot) error

	// Load retrieves a snapshot.
	// Returns ErrNotFound if the snapshot doesn't exist.
	Load(ctx context.Context, id string) (Snapshot, error)

	// List returns metadata for every snapshot, ordered by sequence.
	// Returns empty slice (not error) if the store is empty.
	List(ctx context.Context) ([]Info, error)

	// Delete removes a snapshot.
	// Returns nil if the snapshot doesn't exist.
	Delete(ctx context.Context, id string) error

	// Clear removes every snapshot.
	Clear(ctx context.Context) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info provides metadata without decoding the full snapshot.
type Info struct {
	ID        string
	Sequence  int
	CreatedAt time.Time
	Size      int64
}

// Sentinel errors for store operations.
var (
	// ErrNotFound indicates a snapshot doesn't exist.
	ErrNotFound = errors.New("snapshot not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("snapshot store closed")
)
