package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresSlot_QueueRoundTrip(t *testing.T) {
	SkipIfNoTestDB(t)

	ts := NewTestPostgresSlot(t)
	defer ts.Close()
	ts.Cleanup(t)

	ctx := context.Background()
	store := NewQueueStore(ts.PostgresSlot, "", nil)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)

	require.NoError(t, store.Save(ctx, sampleQueue()))
	require.NoError(t, store.Save(ctx, sampleQueue()[:1]))

	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	assertSameQueue(t, sampleQueue()[:1], loaded)

	require.NoError(t, store.Clear(ctx))
	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}
