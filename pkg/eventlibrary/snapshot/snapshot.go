// Package snapshot captures and stores point-in-time copies of service state.
//
// A Snapshot holds one JSON document per component (library, notification,
// analytics, ...). Components are serialized at capture time, so a stored
// snapshot never aliases live service state.
package snapshot

import (
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// FormatVersion is the snapshot encoding version written by Build.
const FormatVersion = 1

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// ErrEmptyID is returned when a snapshot has no identifier.
	ErrEmptyID = errors.New("snapshot id must not be empty")

	// ErrInvalidSnapshotJSON is returned when a component is not valid JSON.
	ErrInvalidSnapshotJSON = errors.New("snapshot json is not valid")

	// ErrDuplicateComponent is returned when two sources share a name.
	ErrDuplicateComponent = errors.New("duplicate snapshot component")

	// ErrComponentNotFound is returned by Decode for an unknown component.
	ErrComponentNotFound = errors.New("snapshot component not found")
)

// Source is implemented by services whose state can be captured.
// SnapshotState must return a value that is safe to serialize while the
// service keeps running, typically a deep copy.
type Source interface {
	SnapshotName() string
	SnapshotState() any
}

// Snapshot is a serialized capture of several components.
type Snapshot struct {
	Version    int                            `json:"version"`
	ID         string                         `json:"snapshot_id"`
	CreatedAt  time.Time                      `json:"timestamp"`
	Components map[string]jsoniter.RawMessage `json:"components"`
}

// Build captures every source under id.
func Build(id string, createdAt time.Time, sources ...Source) (Snapshot, error) {
	snap := Snapshot{
		Version:    FormatVersion,
		ID:         id,
		CreatedAt:  createdAt,
		Components: make(map[string]jsoniter.RawMessage, len(sources)),
	}

	for _, src := range sources {
		name := src.SnapshotName()
		if _, exists := snap.Components[name]; exists {
			return Snapshot{}, fmt.Errorf("%w: %s", ErrDuplicateComponent, name)
		}
		data, err := json.Marshal(src.SnapshotState())
		if err != nil {
			return Snapshot{}, fmt.Errorf("encode component %s: %w", name, err)
		}
		snap.Components[name] = data
	}

	if err := snap.Validate(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Validate ensures the snapshot can be stored.
func (s Snapshot) Validate() error {
	if s.ID == "" {
		return ErrEmptyID
	}
	for name, data := range s.Components {
		if !validComponent(data) {
			return fmt.Errorf("%w: component %s", ErrInvalidSnapshotJSON, name)
		}
	}
	return nil
}

// validComponent reports whether data is one complete JSON value. Decoding
// into a RawMessage accepts a bare top-level number, which Valid does not.
func validComponent(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	var raw jsoniter.RawMessage
	return json.Unmarshal(data, &raw) == nil
}

// Names returns the captured component names.
func (s Snapshot) Names() []string {
	names := make([]string, 0, len(s.Components))
	for name := range s.Components {
		names = append(names, name)
	}
	return names
}

// Decode unmarshals component name into out.
func (s Snapshot) Decode(name string, out any) error {
	data, ok := s.Components[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrComponentNotFound, name)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode component %s: %w", name, err)
	}
	return nil
}

// Size returns the total encoded size of every component in bytes.
func (s Snapshot) Size() int64 {
	var n int64
	for _, data := range s.Components {
		n += int64(len(data))
	}
	return n
}

// Marshal encodes the whole snapshot.
func Marshal(s Snapshot) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a snapshot produced by Marshal.
func Unmarshal(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return s, nil
}
