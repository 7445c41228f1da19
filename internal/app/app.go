// Package app wires configuration into the store, Redis and the record models
// shared by the HTTP service and the index sync command.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gogotex/mongomodel/internal/config"
	"github.com/gogotex/mongomodel/internal/database"
	"github.com/gogotex/mongomodel/internal/document"
	"github.com/gogotex/mongomodel/internal/indexlock"
	"github.com/gogotex/mongomodel/internal/indexsync"
	"github.com/gogotex/mongomodel/internal/memstore"
	"github.com/gogotex/mongomodel/internal/users"
	"github.com/gogotex/mongomodel/pkg/logger"
	"github.com/gogotex/mongomodel/pkg/model"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// App holds the process-wide dependencies.
type App struct {
	Config *config.Config
	Pool   *database.Pool  // nil when running on the in-memory store
	Memory *memstore.Store // nil when MongoDB is configured
	Redis  *redis.Client   // nil when Redis is not configured or unreachable
	Locker indexlock.Locker // nil disables coordination
	Users  *model.Model[users.User, *users.User]
	Docs   *model.Model[document.Document, *document.Document]
}

// New builds the dependencies without contacting MongoDB. Redis is pinged
// once; when it does not answer the features that need it are disabled.
func New(ctx context.Context, cfg *config.Config) *App {
	a := &App{Config: cfg}

	if addr := cfg.Redis.Addr(); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := client.Ping(pctx).Err()
		cancel()
		if err != nil {
			logger.Warnf("failed to connect to Redis (%s): %v", addr, err)
			_ = client.Close()
		} else {
			logger.Infof("connected to Redis: %s", addr)
			a.Redis = client
			a.Locker = indexlock.New(client, cfg.IndexSync.LockTTL, 0)
		}
	}

	if a.Locker == nil && cfg.IndexSync.LockDir != "" {
		fl, err := indexlock.NewFileLocker(cfg.IndexSync.LockDir, 0)
		if err != nil {
			logger.Warnf("index sync runs without a lock: %v", err)
		} else {
			a.Locker = fl
		}
	}

	opts := []model.Option{model.WithLogger(logger.With(map[string]interface{}{"component": "model"}))}
	if cfg.MongoDB.URI != "" {
		a.Pool = database.NewPool(cfg.MongoDB.URI, cfg.MongoDB.Database, cfg.MongoDB.Timeout)
		a.Users = model.New[users.User](a.Pool, opts...)
		a.Docs = model.New[document.Document](a.Pool, opts...)
	} else {
		a.Memory = memstore.New("mongomodel")
		ucol := a.Memory.Collection(model.CollectionName("User"))
		a.Users = model.NewWithCollection[users.User](ucol, ucol.Indexes(), opts...)
		dcol := a.Memory.Collection(model.CollectionName("Document"))
		a.Docs = model.NewWithCollection[document.Document](dcol, dcol.Indexes(), opts...)
	}
	return a
}

// Targets lists every model whose indexes are managed.
func (a *App) Targets() []indexsync.Target {
	return []indexsync.Target{a.Users, a.Docs}
}

// SyncIndexes runs the index synchronizer over every model.
func (a *App) SyncIndexes(ctx context.Context) error {
	return indexsync.Run(ctx, a.Locker, a.Targets()...)
}

// SyncOnConnect arranges for SyncIndexes to run once the pool first
// connects. On the in-memory store it runs immediately.
func (a *App) SyncOnConnect(ctx context.Context) error {
	if a.Pool == nil {
		return a.SyncIndexes(ctx)
	}
	a.Pool.OnConnect(func(ctx context.Context, _ *mongo.Database) error {
		return a.SyncIndexes(ctx)
	})
	return nil
}

// Ready reports the availability of each dependency.
func (a *App) Ready(ctx context.Context) map[string]error {
	deps := map[string]error{"store": nil}
	if a.Pool != nil {
		deps["store"] = a.Pool.Ping(ctx)
	}
	if a.Config.Redis.Addr() != "" {
		if a.Redis == nil {
			deps["redis"] = errors.New("not connected")
		} else {
			deps["redis"] = a.Redis.Ping(ctx).Err()
		}
	}
	return deps
}

// Close releases the MongoDB and Redis clients.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Pool != nil {
		if err := a.Pool.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	return errors.Join(errs...)
}
