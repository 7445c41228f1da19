package app

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/gogotex/mongomodel/internal/config"
	"github.com/gogotex/mongomodel/internal/indexlock"
	"github.com/gogotex/mongomodel/internal/users"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	return &config.Config{IndexSync: config.IndexSyncConfig{OnStartup: true, LockTTL: time.Second}}
}

func TestNewFallsBackToMemory(t *testing.T) {
	ctx := context.Background()
	a := New(ctx, memoryConfig())
	require.Nil(t, a.Pool)
	require.NotNil(t, a.Memory)
	require.Nil(t, a.Redis)
	require.Equal(t, "users", a.Users.CollectionName())

	require.NoError(t, a.SyncOnConnect(ctx))
	names, err := a.Users.IndexNames(ctx)
	require.NoError(t, err)
	require.Contains(t, names, "username_1")
	require.Equal(t, []string{"documents", "users"}, a.Memory.CollectionNames())
	docIdx, err := a.Docs.IndexNames(ctx)
	require.NoError(t, err)
	require.Contains(t, docIdx, "owner_id_1_name_1")

	u, err := a.Users.Save(ctx, &users.User{Username: "z", Email: "z@example.com"})
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)

	deps := a.Ready(ctx)
	require.Len(t, deps, 1)
	require.NoError(t, deps["store"])
	require.NoError(t, a.Close(ctx))
}

func TestNewWithMongoDoesNotConnect(t *testing.T) {
	cfg := memoryConfig()
	cfg.MongoDB = config.MongoDBConfig{URI: "mongodb://127.0.0.1:1/app", Timeout: 50 * time.Millisecond}
	a := New(context.Background(), cfg)
	require.NotNil(t, a.Pool)
	require.Nil(t, a.Memory)
	require.Equal(t, "app", a.Pool.DatabaseName())
	require.False(t, a.Pool.Connected())
	require.NoError(t, a.SyncOnConnect(context.Background()))
	require.NoError(t, a.Close(context.Background()))
}

func TestNewWithRedis(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	cfg := memoryConfig()
	cfg.Redis = config.RedisConfig{Host: m.Host(), Port: m.Port()}
	ctx := context.Background()
	a := New(ctx, cfg)
	require.NotNil(t, a.Redis)
	require.NotNil(t, a.Locker)

	require.NoError(t, a.SyncIndexes(ctx))
	require.False(t, m.Exists("indexsync:users"))
	require.False(t, m.Exists("indexsync:documents"))

	deps := a.Ready(ctx)
	require.NoError(t, deps["redis"])
	require.NoError(t, a.Close(ctx))
}

func TestNewWithUnreachableRedis(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	host, port := m.Host(), m.Port()
	m.Close()

	cfg := memoryConfig()
	cfg.Redis = config.RedisConfig{Host: host, Port: port}
	a := New(context.Background(), cfg)
	require.Nil(t, a.Redis)
	require.Nil(t, a.Locker)
	require.Error(t, a.Ready(context.Background())["redis"])
}

func TestNewUsesFileLocksWithoutRedis(t *testing.T) {
	cfg := memoryConfig()
	cfg.IndexSync.LockDir = t.TempDir()
	a := New(context.Background(), cfg)
	require.Nil(t, a.Redis)
	require.IsType(t, &indexlock.FileLocker{}, a.Locker)
	require.NoError(t, a.SyncIndexes(context.Background()))
}
