package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreGetSet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "sess-1", "auth_token")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, store.Set(ctx, "sess-1", "auth_token", "tok-abc"))

	value, err := store.Get(ctx, "sess-1", "auth_token")
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", value)

	// Other sessions are isolated
	_, err = store.Get(ctx, "sess-2", "auth_token")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMemoryStoreOverwrite(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "sess-1", "user", `{"email":"a@vet.example"}`))
	require.NoError(t, store.Set(ctx, "sess-1", "user", `{"email":"b@vet.example"}`))

	value, err := store.Get(ctx, "sess-1", "user")
	require.NoError(t, err)
	assert.Equal(t, `{"email":"b@vet.example"}`, value)
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "sess-1", "auth_token", "tok"))
	require.NoError(t, store.Set(ctx, "sess-1", "user", "u"))

	require.NoError(t, store.Delete(ctx, "sess-1", "auth_token", "missing_key"))

	_, err := store.Get(ctx, "sess-1", "auth_token")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	value, err := store.Get(ctx, "sess-1", "user")
	require.NoError(t, err)
	assert.Equal(t, "u", value)

	// Deleting from an unknown session is not an error
	assert.NoError(t, store.Delete(ctx, "no-such-session", "auth_token"))
}

func TestMemoryStoreClear(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "sess-1", "auth_token", "tok"))
	require.NoError(t, store.Set(ctx, "sess-1", "access_token", "at"))
	require.NoError(t, store.Clear(ctx, "sess-1"))

	_, err := store.Get(ctx, "sess-1", "auth_token")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	_, err = store.Get(ctx, "sess-1", "access_token")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			sid := fmt.Sprintf("sess-%d", n%4)
			_ = store.Set(ctx, sid, "auth_token", fmt.Sprintf("tok-%d", n))
			_, _ = store.Get(ctx, sid, "auth_token")
			_ = store.Delete(ctx, sid, "auth_token")
		}(i)
	}
	wg.Wait()
}
