package indexlock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// FileLocker keeps leases as flock(2) locks on files in one directory. It
// only coordinates processes on the same host and its leases never expire;
// the OS drops them when the holder exits.
type FileLocker struct {
	dir  string
	wait time.Duration
	poll time.Duration
}

// NewFileLocker stores lock files in dir, creating it if needed.
func NewFileLocker(dir string, wait time.Duration) (*FileLocker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("index lock dir: %w", err)
	}
	return &FileLocker{dir: dir, wait: wait, poll: 100 * time.Millisecond}, nil
}

type fileLock struct {
	f *flock.Flock
}

func (l *FileLocker) Acquire(ctx context.Context, name string) (Lock, error) {
	base := strings.ReplaceAll(KeyPrefix+name, ":", "-") + ".lock"
	f := flock.New(filepath.Join(l.dir, base))

	var ok bool
	var err error
	if l.wait <= 0 {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		ok, err = f.TryLock()
	} else {
		wctx, cancel := context.WithTimeout(ctx, l.wait)
		ok, err = f.TryLockContext(wctx, l.poll)
		cancel()
		if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrNotAcquired
		}
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return &fileLock{f: f}, nil
}

func (k *fileLock) Key() string { return k.f.Path() }

// Release unlocks the file. The file itself is left in place.
func (k *fileLock) Release(context.Context) error {
	return k.f.Unlock()
}
