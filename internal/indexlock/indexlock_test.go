package indexlock

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newLocker(t *testing.T, wait time.Duration) (*RedisLocker, *mr.Miniredis) {
	t.Helper()
	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	l := New(client, 5*time.Second, wait)
	l.poll = 5 * time.Millisecond
	return l, m
}

func TestAcquireRelease(t *testing.T) {
	ctx := context.Background()
	l, m := newLocker(t, 0)

	lock, err := l.Acquire(ctx, "users")
	require.NoError(t, err)
	require.Equal(t, "indexsync:users", lock.Key())
	require.True(t, m.Exists("indexsync:users"))

	_, err = l.Acquire(ctx, "users")
	require.ErrorIs(t, err, ErrNotAcquired)

	// other collections are independent
	other, err := l.Acquire(ctx, "posts")
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lock.Release(ctx))
	require.False(t, m.Exists("indexsync:users"))

	again, err := l.Acquire(ctx, "users")
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestReleaseKeepsForeignLock(t *testing.T) {
	ctx := context.Background()
	l, m := newLocker(t, 0)

	lock, err := l.Acquire(ctx, "users")
	require.NoError(t, err)

	// lease expires and another process takes it
	m.FastForward(6 * time.Second)
	theirs, err := l.Acquire(ctx, "users")
	require.NoError(t, err)

	require.NoError(t, lock.Release(ctx))
	require.True(t, m.Exists("indexsync:users"), "stale holder must not delete the new lease")
	require.NoError(t, theirs.Release(ctx))
}

func TestAcquireWaitsForRelease(t *testing.T) {
	ctx := context.Background()
	l, _ := newLocker(t, time.Second)

	lock, err := l.Acquire(ctx, "users")
	require.NoError(t, err)
	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = lock.Release(context.Background())
	}()

	next, err := l.Acquire(ctx, "users")
	require.NoError(t, err)
	require.NoError(t, next.Release(ctx))
}

func TestAcquireRespectsContext(t *testing.T) {
	l, _ := newLocker(t, time.Minute)
	_, err := l.Acquire(context.Background(), "users")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "users")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
