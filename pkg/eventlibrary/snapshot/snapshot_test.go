package snapshot_test

import (
	"errors"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventlibrary/pkg/eventlibrary/snapshot"
)

type fakeSource struct {
	name  string
	state any
}

func (f fakeSource) SnapshotName() string { return f.name }
func (f fakeSource) SnapshotState() any   { return f.state }

type counters struct {
	TotalBorrows int            `json:"total_borrows"`
	Popularity   map[string]int `json:"book_popularity"`
}

func TestBuild(t *testing.T) {
	created := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	state := counters{TotalBorrows: 2, Popularity: map[string]int{"b1": 2}}

	snap, err := snapshot.Build("snap-1", created,
		fakeSource{name: "analytics", state: state},
		fakeSource{name: "library", state: map[string]string{"k": "v"}},
	)
	require.NoError(t, err)

	assert.Equal(t, snapshot.FormatVersion, snap.Version)
	assert.Equal(t, "snap-1", snap.ID)
	assert.Equal(t, created, snap.CreatedAt)
	assert.ElementsMatch(t, []string{"analytics", "library"}, snap.Names())
	assert.Positive(t, snap.Size())

	// Later mutation of the source does not leak into the snapshot.
	state.Popularity["b1"] = 99

	var got counters
	require.NoError(t, snap.Decode("analytics", &got))
	assert.Equal(t, 2, got.TotalBorrows)
	assert.Equal(t, 2, got.Popularity["b1"])
}

func TestBuildErrors(t *testing.T) {
	t.Run("empty id", func(t *testing.T) {
		_, err := snapshot.Build("", time.Now())
		assert.ErrorIs(t, err, snapshot.ErrEmptyID)
	})

	t.Run("duplicate component", func(t *testing.T) {
		_, err := snapshot.Build("s", time.Now(),
			fakeSource{name: "library", state: 1},
			fakeSource{name: "library", state: 2},
		)
		assert.ErrorIs(t, err, snapshot.ErrDuplicateComponent)
	})

	t.Run("unencodable state", func(t *testing.T) {
		_, err := snapshot.Build("s", time.Now(), fakeSource{name: "bad", state: make(chan int)})
		assert.Error(t, err)
	})
}

func TestDecodeUnknownComponent(t *testing.T) {
	snap, err := snapshot.Build("s", time.Now())
	require.NoError(t, err)

	var out map[string]any
	err = snap.Decode("missing", &out)
	assert.True(t, errors.Is(err, snapshot.ErrComponentNotFound))
}

func TestValidateRejectsInvalidJSON(t *testing.T) {
	for _, raw := range []string{`{not json`, ``, `1 2`} {
		snap := snapshot.Snapshot{ID: "s", Components: map[string]jsoniter.RawMessage{"x": jsoniter.RawMessage(raw)}}
		assert.ErrorIs(t, snap.Validate(), snapshot.ErrInvalidSnapshotJSON, "component %q", raw)
	}
}

func TestBuildScalarState(t *testing.T) {
	for _, state := range []any{1, 2.5, -7, "text", true, nil} {
		snap, err := snapshot.Build("s", time.Now(), fakeSource{name: "library", state: state})
		require.NoError(t, err, "state %v", state)
		require.NoError(t, snap.Validate())
	}

	snap, err := snapshot.Build("s", time.Now(), fakeSource{name: "library", state: 3})
	require.NoError(t, err)
	var n int
	require.NoError(t, snap.Decode("library", &n))
	assert.Equal(t, 3, n)
}

func TestMarshalRoundTrip(t *testing.T) {
	created := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	snap, err := snapshot.Build("snap-rt", created, fakeSource{name: "library", state: []int{1, 2, 3}})
	require.NoError(t, err)

	data, err := snapshot.Marshal(snap)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"snapshot_id":"snap-rt"`)

	back, err := snapshot.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, back.ID)
	assert.True(t, snap.CreatedAt.Equal(back.CreatedAt))

	var ints []int
	require.NoError(t, back.Decode("library", &ints))
	assert.Equal(t, []int{1, 2, 3}, ints)

	_, err = snapshot.Unmarshal([]byte("nope"))
	assert.Error(t, err)
}
