package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteSlot_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	slot, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	defer slot.Close()

	_, ok, err := slot.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, slot.Put(ctx, "k", []byte("v1")))
	require.NoError(t, slot.Put(ctx, "k", []byte("v2")))

	value, ok, err := slot.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", string(value))

	require.NoError(t, slot.Delete(ctx, "k"))
	_, ok, err = slot.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	// deleting a missing key is not an error
	require.NoError(t, slot.Delete(ctx, "k"))
}

func TestSQLiteSlot_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "queue.db")

	slot, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, NewQueueStore(slot, "", nil).Save(ctx, sampleQueue()))
	require.NoError(t, slot.Close())

	reopened, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := NewQueueStore(reopened, "", nil).Load(ctx)
	require.NoError(t, err)
	assertSameQueue(t, sampleQueue(), loaded)
}
