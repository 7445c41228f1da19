// Package indexlock provides named leases that keep concurrently starting
// processes from building the same collection's indexes at once. Leases live
// in Redis when it is available, or in lock files for processes sharing a
// host.
package indexlock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// KeyPrefix is prepended to the collection name to form the lock key.
const KeyPrefix = "indexsync:"

// ErrNotAcquired means another holder kept the lock for the whole wait.
var ErrNotAcquired = errors.New("index lock is held elsewhere")

// Locker hands out named leases.
type Locker interface {
	Acquire(ctx context.Context, name string) (Lock, error)
}

// Lock is one held lease.
type Lock interface {
	// Key identifies the lease in its backend.
	Key() string
	Release(ctx context.Context) error
}

// release deletes the key only while it still holds our token.
var release = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	poll   time.Duration
}

// New returns a RedisLocker whose leases expire after ttl. Acquire waits up
// to wait for a held lock to free up.
func New(client *redis.Client, ttl, wait time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{client: client, ttl: ttl, wait: wait, poll: 100 * time.Millisecond}
}

type redisLock struct {
	client *redis.Client
	key    string
	token  string
}

// Acquire takes the lock for name.
func (l *RedisLocker) Acquire(ctx context.Context, name string) (Lock, error) {
	key := KeyPrefix + name
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return &redisLock{client: l.client, key: key, token: token}, nil
		}
		if !time.Now().Before(deadline) {
			return nil, ErrNotAcquired
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.poll):
		}
	}
}

func (k *redisLock) Key() string { return k.key }

// Release gives the lock up. Releasing a lease that already expired, or
// that someone else now holds, is a no-op.
func (k *redisLock) Release(ctx context.Context) error {
	return release.Run(ctx, k.client, []string{k.key}, k.token).Err()
}
