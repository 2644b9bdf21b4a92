package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreEntryExpires(t *testing.T) {
	store := NewMemoryRevocationStore()
	ctx := context.Background()

	require.NoError(t, store.Revoke(ctx, "hash-1", 10*time.Millisecond))

	revoked, err := store.IsRevoked(ctx, "hash-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	time.Sleep(25 * time.Millisecond)

	// The entry lapsed with its token; lookup evicts it.
	revoked, err = store.IsRevoked(ctx, "hash-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestMemoryStoreSweepsOnWrite(t *testing.T) {
	store := NewMemoryRevocationStore()
	ctx := context.Background()

	require.NoError(t, store.Revoke(ctx, "stale", 5*time.Millisecond))
	time.Sleep(15 * time.Millisecond)
	require.NoError(t, store.Revoke(ctx, "fresh", time.Hour))

	store.mu.RLock()
	_, staleKept := store.entries["stale"]
	_, freshKept := store.entries["fresh"]
	store.mu.RUnlock()
	assert.False(t, staleKept)
	assert.True(t, freshKept)
}

func TestMemoryStorePurge(t *testing.T) {
	store := NewMemoryRevocationStore()
	ctx := context.Background()

	require.NoError(t, store.Revoke(ctx, "a", time.Hour))
	require.NoError(t, store.Revoke(ctx, "b", time.Hour))
	require.NoError(t, store.Purge(ctx))

	for _, h := range []string{"a", "b"} {
		revoked, err := store.IsRevoked(ctx, h)
		require.NoError(t, err)
		assert.False(t, revoked)
	}
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	store := NewMemoryRevocationStore()
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			_ = store.Revoke(ctx, "shared", time.Hour)
		}
	}()
	for i := 0; i < 200; i++ {
		_, _ = store.IsRevoked(ctx, "shared")
	}
	<-done

	revoked, err := store.IsRevoked(ctx, "shared")
	require.NoError(t, err)
	assert.True(t, revoked)
}
