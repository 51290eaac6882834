package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	storagebbolt "github.com/insights-client/insights-client/pkg/storage/bbolt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLedger(t *testing.T, opts ...Option) *Ledger {
	t.Helper()

	db, err := storagebbolt.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := storagebbolt.NewStore(log.NewNopLogger(), db, BucketName)
	require.NoError(t, err)

	return New(log.NewNopLogger(), store, opts...)
}

func TestAddAndRecent(t *testing.T) {
	t.Parallel()

	l := setupLedger(t)
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, l.Add(Record{RunID: "run1", Attempt: 1, StartedAt: start, StatusCode: 503, Error: "server returned 503"}))
	require.NoError(t, l.Add(Record{RunID: "run1", Attempt: 2, StartedAt: start.Add(time.Minute), StatusCode: 201, Duration: 3 * time.Second}))
	require.NoError(t, l.Add(Record{RunID: "run2", Attempt: 1, StartedAt: start.Add(time.Hour), Error: "could not connect"}))

	records, err := l.Recent(0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "run2", records[0].RunID, "newest first")
	assert.Equal(t, 2, records[1].Attempt)
	assert.Equal(t, 3*time.Second, records[1].Duration)
	assert.True(t, records[1].StartedAt.Equal(start.Add(time.Minute)))

	records, err = l.Recent(1)
	require.NoError(t, err)
	require.Len(t, records, 1)

	last, err := l.LastSuccess()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "run1", last.RunID)
	assert.Equal(t, 201, last.StatusCode)
}

func TestRetention(t *testing.T) {
	t.Parallel()

	l := setupLedger(t, WithMaxRecords(3))
	start := time.Now()

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Add(Record{RunID: "run", Attempt: i + 1, StartedAt: start.Add(time.Duration(i) * time.Second)}))
	}

	records, err := l.Recent(0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, 5, records[0].Attempt)

	n, err := l.Len()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, records[2].Attempt)
}

func TestLastSuccessEmpty(t *testing.T) {
	t.Parallel()

	l := setupLedger(t)

	last, err := l.LastSuccess()
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestSucceeded(t *testing.T) {
	t.Parallel()

	assert.True(t, Record{StatusCode: 201}.Succeeded())
	assert.True(t, Record{StatusCode: 200}.Succeeded())
	assert.False(t, Record{StatusCode: 412}.Succeeded())
	assert.False(t, Record{StatusCode: 201, Error: "writing marker"}.Succeeded())
	assert.False(t, Record{Error: "could not connect"}.Succeeded())
}
