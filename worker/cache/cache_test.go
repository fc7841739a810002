package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hdrEnhancer/pkg/task"
)

func newTestCoordinator(t *testing.T) (*Coordinator, func(key string)) {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	client, err := Connect(context.Background(), addr, os.Getenv("TEST_REDIS_PASSWORD"))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	set := func(key string) {
		require.NoError(t, client.Set(context.Background(), key, "1", time.Minute).Err())
		t.Cleanup(func() { client.Del(context.Background(), key) })
	}
	return NewCoordinator(client), set
}

func TestCoordinator_Revocation(t *testing.T) {
	c, set := newTestCoordinator(t)
	ctx := context.Background()
	handle := uuid.NewString()

	revoked, err := c.IsRevoked(ctx, handle)
	require.NoError(t, err)
	assert.False(t, revoked)

	set(task.RevokedKey(handle))

	revoked, err = c.IsRevoked(ctx, handle)
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = c.IsRevoked(ctx, "")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestCoordinator_Lock(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()
	id := uuid.NewString()

	token, err := c.AcquireLock(ctx, id, time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	second, err := c.AcquireLock(ctx, id, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, second, "second delivery must not take the lock")

	// A stale token does not release someone else's lock.
	require.NoError(t, c.ReleaseLock(ctx, id, "stale"))
	third, err := c.AcquireLock(ctx, id, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, third)

	require.NoError(t, c.ReleaseLock(ctx, id, token))
	again, err := c.AcquireLock(ctx, id, time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, again)
	require.NoError(t, c.ReleaseLock(ctx, id, again))
}
