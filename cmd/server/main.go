package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"localeloop/internal/config"
	"localeloop/internal/db"
	"localeloop/internal/logger"
	"localeloop/internal/metrics"
	"localeloop/internal/router"
	"localeloop/internal/services"
	"localeloop/internal/store"
	"localeloop/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log := logger.New(cfg.IsProduction())
	defer log.Sync()

	if !cfg.DotEnvLoaded {
		log.Info("No .env file found, using environment variables")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalw("invalid configuration", "error", err)
	}
	if cfg.UsesDefaultSessionSecret() {
		log.Warn("SESSION_SECRET not set, using the development default")
	}

	// Initialize Database
	if err := db.Init(cfg.DB, log); err != nil {
		log.Fatalw("database init failed", "error", err)
	}
	defer db.Close(db.DB)

	cache := newCache(cfg.Redis, log)
	storage := store.NewStorage(db.DB)

	var uploader services.Uploader
	if u, err := services.NewCloudinaryUploader(cfg.CloudinaryURL); err != nil {
		log.Warnw("image uploads disabled", "error", err)
	} else {
		uploader = u
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), logger.GinLogger(log), metrics.Middleware())

	// Setup Sessions
	sessionStore := cookie.NewStore([]byte(cfg.SessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   30 * 24 * 3600,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("localeloop_session", sessionStore))

	router.RegisterRoutes(r, router.Deps{
		Loops:      services.NewLoopService(storage, cache, log),
		Engagement: services.NewEngagementService(storage, log),
		Search:     services.NewSearchService(storage, cache),
		Users:      services.NewUserService(storage, log),
		Uploader:   uploader,
		Google:     cfg.Google,
		SiteURL:    cfg.SiteURL,
		Ping:       db.Ping,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infow("LocaleLoop server starting", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}
}

// newCache 配置了 REDIS_ADDR 时使用 Redis，连接失败回落到进程内 LRU
func newCache(cfg config.RedisConfig, log *zap.SugaredLogger) utils.Cache {
	if cfg.Addr == "" {
		return utils.GetCache()
	}
	rc, err := utils.NewRedisCache(cfg.Addr, cfg.Password, cfg.DB)
	if err != nil {
		log.Warnw("redis unavailable, falling back to local cache", "addr", cfg.Addr, "error", err)
		return utils.GetCache()
	}
	log.Infow("Redis cache connected", "addr", cfg.Addr)
	return rc
}
