package auth

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInMemoryBadger(t *testing.T) *badger.DB {
	t.Helper()

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMemoryRevocationStore(t *testing.T) {
	ctx := context.Background()

	t.Run("absent token", func(t *testing.T) {
		store := NewMemoryRevocationStore()

		revoked, err := store.Contains(ctx, "tok")
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("live entry", func(t *testing.T) {
		store := NewMemoryRevocationStore()
		require.NoError(t, store.Add(ctx, "tok", time.Now().Add(time.Hour)))

		revoked, err := store.Contains(ctx, "tok")
		require.NoError(t, err)
		assert.True(t, revoked)
		assert.Equal(t, 1, store.Len())
	})

	t.Run("expired entry is evicted on lookup", func(t *testing.T) {
		store := NewMemoryRevocationStore()
		now := time.Now()
		store.now = func() time.Time { return now }

		require.NoError(t, store.Add(ctx, "tok", now.Add(time.Minute)))
		require.NoError(t, store.Add(ctx, "other", now.Add(-time.Minute)))
		assert.Equal(t, 2, store.Len())

		store.now = func() time.Time { return now.Add(2 * time.Minute) }

		revoked, err := store.Contains(ctx, "tok")
		require.NoError(t, err)
		assert.False(t, revoked)
		// only the looked-up entry is pruned
		assert.Equal(t, 1, store.Len())
	})
}

func TestBadgerRevocationStore(t *testing.T) {
	ctx := context.Background()
	store := NewBadgerRevocationStore(newInMemoryBadger(t))

	revoked, err := store.Contains(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, store.Add(ctx, "tok", time.Now().Add(time.Hour)))

	revoked, err = store.Contains(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, revoked)

	// already expired tokens are not stored at all
	require.NoError(t, store.Add(ctx, "stale", time.Now().Add(-time.Minute)))
	revoked, err = store.Contains(ctx, "stale")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestTokenService_WithBadgerStore(t *testing.T) {
	ctx := context.Background()
	svc := newTestTokenService(NewBadgerRevocationStore(newInMemoryBadger(t)))

	token, err := svc.Issue(principalFixture(), 0)
	require.NoError(t, err)

	svc.Revoke(ctx, token)
	assert.True(t, svc.IsRevoked(ctx, token))
}
