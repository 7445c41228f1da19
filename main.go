package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gogotex/mongomodel/handlers"
	"github.com/gogotex/mongomodel/internal/app"
	"github.com/gogotex/mongomodel/internal/config"
	dochandler "github.com/gogotex/mongomodel/internal/document/handler"
	docrepo "github.com/gogotex/mongomodel/internal/document/repository"
	docservice "github.com/gogotex/mongomodel/internal/document/service"
	"github.com/gogotex/mongomodel/internal/users"
	"github.com/gogotex/mongomodel/pkg/logger"
	"github.com/gogotex/mongomodel/pkg/metrics"
	"github.com/gogotex/mongomodel/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var startTime = time.Now()

func main() {
	// initialize logging (can be controlled with LOG_LEVEL env: debug|info|warn|error|fatal)
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level)
	logger.SetOutput(os.Stdout, cfg.Log.Format)
	logger.Infof("config loaded: mongo=%v redis=%v", cfg.MongoDB.URI != "", cfg.Redis.Host != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := app.New(ctx, cfg)
	if cfg.IndexSync.OnStartup {
		if err := a.SyncOnConnect(ctx); err != nil {
			logger.Errorf("index sync: %v", err)
		}
	}
	if a.Pool != nil {
		// connect eagerly so the on-connect hooks run before traffic arrives
		go func() {
			if err := a.Pool.Ping(ctx); err != nil {
				logger.Warnf("initial MongoDB ping failed, will retry on first request: %v", err)
			}
		}()
	}

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.AccessLog(), gin.Recovery())
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && a.Redis != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(a.Redis, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// readiness: 200 only when every configured dependency answers
	r.GET("/ready", func(c *gin.Context) {
		rctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		ready := true
		deps := map[string]bool{}
		for name, err := range a.Ready(rctx) {
			deps[name] = err == nil
			if err != nil {
				logger.Warnf("readiness: %s unavailable: %v", name, err)
				ready = false
			}
		}
		uptime := time.Since(startTime).String()
		if !ready {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "deps": deps, "uptime": uptime})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "deps": deps, "uptime": uptime})
	})

	handlers.RegisterSwagger(r)
	userSvc := users.NewService(users.NewModelUserRepository(a.Users))
	handlers.RegisterUserRoutes(r, handlers.NewUserHandler(userSvc))
	docSvc := docservice.New(docrepo.New(a.Docs), userSvc)
	userSvc.OnDelete(func(ctx context.Context, id string) error {
		n, err := docSvc.DeleteOwned(ctx, id)
		if err == nil && n > 0 {
			logger.Infof("removed %d document(s) of deleted user %s", n, id)
		}
		return err
	})
	dochandler.RegisterDocumentRoutes(r, docSvc)

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("Starting users service on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	if err := a.Close(sctx); err != nil {
		logger.Errorf("closing dependencies: %v", err)
	}
}
