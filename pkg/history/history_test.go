package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlite/mrlite/pkg/types"
)

func testConfig() *types.JobConfig {
	return &types.JobConfig{
		Identity:         "wc-bob-2026-08-02-10-30",
		NumMapWorkers:    2,
		NumReduceWorkers: 1,
	}
}

func TestNewRecordModes(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, "batch", NewRecord(cfg).Mode)

	cfg.Incremental = true
	assert.Equal(t, "incremental", NewRecord(cfg).Mode)

	cfg.MapOnly = true
	assert.Equal(t, "map-only", NewRecord(cfg).Mode)
}

func TestPutGetRoundTrip(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	rec := NewRecord(testConfig())
	require.NoError(t, store.Put(rec))

	// Finalize the same record.
	rec.Phase = types.PhaseDone
	rec.FinishedAt = time.Now()
	require.NoError(t, store.Put(rec))

	got, err := store.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Identity, got.Identity)
	assert.Equal(t, types.PhaseDone, got.Phase)
	assert.False(t, got.FinishedAt.IsZero())
}

func TestGetUnknownRunFails(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Get("no-such-run")
	assert.Error(t, err)
}

func TestListNewestFirst(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	older := NewRecord(testConfig())
	older.StartedAt = time.Now().Add(-time.Hour)
	newer := NewRecord(testConfig())

	require.NoError(t, store.Put(older))
	require.NoError(t, store.Put(newer))

	records, err := store.List()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, newer.ID, records[0].ID)
	assert.Equal(t, older.ID, records[1].ID)
}
