package identity

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/mixer/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPaths(dir string) Paths {
	return Paths{
		MachineID:    filepath.Join(dir, "machine-id"),
		Registered:   filepath.Join(dir, ".registered"),
		Unregistered: filepath.Join(dir, ".unregistered"),
		LastUpload:   filepath.Join(dir, ".lastupload"),
	}
}

func TestMachineID(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := New(log.NewNopLogger(), testPaths(dir))

	first, err := s.MachineID(false)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	again, err := s.MachineID(false)
	require.NoError(t, err)
	assert.Equal(t, first, again, "existing id should be reused")

	raw, err := os.ReadFile(filepath.Join(dir, "machine-id"))
	require.NoError(t, err)
	assert.Equal(t, first, string(raw))

	regenerated, err := s.MachineID(true)
	require.NoError(t, err)
	assert.NotEqual(t, first, regenerated)

	require.NoError(t, s.DeleteMachineID())
	require.NoError(t, s.DeleteMachineID(), "deleting twice is fine")

	fresh, err := s.MachineID(false)
	require.NoError(t, err)
	assert.NotEqual(t, regenerated, fresh)
}

func TestMarkerTransitions(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)
	s := New(log.NewNopLogger(), testPaths(t.TempDir()), WithClock(clock.NewMockClock(now)))

	state, _, err := s.State()
	require.NoError(t, err)
	assert.Equal(t, StateUnknown, state)

	require.NoError(t, s.WriteRegistered())
	state, ts, err := s.State()
	require.NoError(t, err)
	assert.Equal(t, StateRegistered, state)
	assert.Equal(t, now.Format(time.ANSIC), ts)

	require.NoError(t, s.WriteUnregistered("2024-01-01T00:00:00Z"))
	state, ts, err = s.State()
	require.NoError(t, err)
	assert.Equal(t, StateUnregistered, state)
	assert.Equal(t, "2024-01-01T00:00:00Z", ts)

	// registering again clears the unregistered marker
	require.NoError(t, s.WriteRegistered())
	state, _, err = s.State()
	require.NoError(t, err)
	assert.Equal(t, StateRegistered, state)

	require.NoError(t, s.WriteUnregistered(""))
	_, ts, err = s.State()
	require.NoError(t, err)
	assert.Equal(t, now.Format(time.ANSIC), ts)
}

func TestLastUpload(t *testing.T) {
	t.Parallel()

	now := time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)
	s := New(log.NewNopLogger(), testPaths(t.TempDir()), WithClock(clock.NewMockClock(now)))

	last, err := s.LastUpload()
	require.NoError(t, err)
	assert.Empty(t, last)

	require.NoError(t, s.WriteLastUpload())
	last, err = s.LastUpload()
	require.NoError(t, err)
	assert.Equal(t, now.Format(time.ANSIC), last)
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "registered", StateRegistered.String())
	assert.Equal(t, "unregistered", StateUnregistered.String())
	assert.Equal(t, "unknown", StateUnknown.String())
}
