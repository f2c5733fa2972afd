package store_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/2beens/gymprogress/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_GetSetDelete(t *testing.T) {
	kv := store.NewMemory()
	ctx := context.Background()

	_, err := kv.Get(ctx, "progress_state:u1")
	assert.ErrorIs(t, err, store.ErrKeyNotFound)

	require.NoError(t, kv.Set(ctx, "progress_state:u1", []byte("state")))
	val, err := kv.Get(ctx, "progress_state:u1")
	require.NoError(t, err)
	assert.Equal(t, "state", string(val))

	require.NoError(t, kv.Delete(ctx, "progress_state:u1"))
	_, err = kv.Get(ctx, "progress_state:u1")
	assert.ErrorIs(t, err, store.ErrKeyNotFound)
}

func TestMemory_ScanPrefix(t *testing.T) {
	kv := store.NewMemory()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("exercise_session:u1:s%d", i)
		require.NoError(t, kv.Set(ctx, key, []byte(fmt.Sprintf("v%d", i))))
	}
	require.NoError(t, kv.Set(ctx, "exercise_session:u2:s0", []byte("other user")))
	require.NoError(t, kv.Set(ctx, "exercise_stats:u1:squat", []byte("stats")))

	values, err := kv.ScanPrefix(ctx, "exercise_session:u1:")
	require.NoError(t, err)
	assert.Len(t, values, 5)

	keys, err := kv.ScanKeys(ctx, "exercise_session:u1:")
	require.NoError(t, err)
	assert.Len(t, keys, 5)

	values, err = kv.ScanPrefix(ctx, "exercise_session:ghost:")
	require.NoError(t, err)
	assert.Empty(t, values)
}
