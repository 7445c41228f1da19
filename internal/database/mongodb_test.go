package database

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// lazyClient builds a client without a server; the driver only dials when a
// command runs.
func lazyClient(t *testing.T) *mongo.Client {
	t.Helper()
	c, err := mongo.Connect(context.Background(), options.Client().ApplyURI("mongodb://127.0.0.1:1").SetServerSelectionTimeout(50*time.Millisecond))
	require.NoError(t, err)
	return c
}

func TestConnectMongoInvalidURI(t *testing.T) {
	_, err := ConnectMongo(context.Background(), "not-a-uri", time.Second)
	require.Error(t, err)
	require.Contains(t, err.Error(), "mongo connect")
}

func TestDatabaseName(t *testing.T) {
	require.Equal(t, "app", NewPool("mongodb://localhost:27017/app", "", 0).DatabaseName())
	require.Equal(t, "explicit", NewPool("mongodb://localhost:27017/app", "explicit", 0).DatabaseName())
	require.Equal(t, DefaultDatabase, NewPool("mongodb://localhost:27017", "", 0).DatabaseName())
}

func TestPoolRetriesAfterFailure(t *testing.T) {
	var calls atomic.Int32
	p := NewPool("mongodb://example", "db", time.Second)
	p.connect = func(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("mongo ping: unreachable")
		}
		return lazyClient(t), nil
	}

	_, err := p.Database(context.Background())
	require.Error(t, err)
	require.False(t, p.Connected())

	db, err := p.Database(context.Background())
	require.NoError(t, err)
	require.Equal(t, "db", db.Name())
	require.True(t, p.Connected())
	require.Equal(t, int32(2), calls.Load())

	require.NoError(t, p.Close(context.Background()))
	_, err = p.Database(context.Background())
	require.ErrorIs(t, err, ErrClosed)
}

func TestPoolConnectsOnce(t *testing.T) {
	var calls, hooks atomic.Int32
	p := NewPool("mongodb://example", "db", time.Second)
	p.connect = func(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return lazyClient(t), nil
	}
	p.OnConnect(func(ctx context.Context, db *mongo.Database) error {
		hooks.Add(1)
		return errors.New("hook errors are only logged")
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Database(context.Background())
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), calls.Load())
	require.Equal(t, int32(1), hooks.Load())
	require.NoError(t, p.Close(context.Background()))
}

func TestCloseWithoutConnect(t *testing.T) {
	p := NewPool("mongodb://example", "", 0)
	require.NoError(t, p.Close(context.Background()))
}
