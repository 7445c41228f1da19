package indexlock

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFileLocker(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "locks")
	l, err := NewFileLocker(dir, 0)
	require.NoError(t, err)

	lock, err := l.Acquire(ctx, "users")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "indexsync-users.lock"), lock.Key())

	_, err = l.Acquire(ctx, "users")
	require.ErrorIs(t, err, ErrNotAcquired)

	other, err := l.Acquire(ctx, "posts")
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lock.Release(ctx))
	again, err := l.Acquire(ctx, "users")
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestFileLockerWaits(t *testing.T) {
	ctx := context.Background()
	l, err := NewFileLocker(t.TempDir(), time.Second)
	require.NoError(t, err)
	l.poll = 5 * time.Millisecond

	lock, err := l.Acquire(ctx, "users")
	require.NoError(t, err)
	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = lock.Release(context.Background())
	}()
	next, err := l.Acquire(ctx, "users")
	require.NoError(t, err)
	require.NoError(t, next.Release(ctx))

	held, err := l.Acquire(ctx, "busy")
	require.NoError(t, err)
	defer held.Release(ctx)
	short, err := NewFileLocker(l.dir, 30*time.Millisecond)
	require.NoError(t, err)
	_, err = short.Acquire(ctx, "busy")
	require.ErrorIs(t, err, ErrNotAcquired)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = short.Acquire(cctx, "busy")
	require.ErrorIs(t, err, context.Canceled)
}
