package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Jeet1511/FF-LIKE/internal/config"
	"github.com/Jeet1511/FF-LIKE/internal/handlers"
	"github.com/Jeet1511/FF-LIKE/internal/middleware"
	"github.com/Jeet1511/FF-LIKE/internal/models"
	"github.com/Jeet1511/FF-LIKE/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := config.Load(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg := config.AppConfig

	if err := models.InitDB(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	db := models.GetDB()

	envDefaults := *cfg
	cfg.RefreshFromDB(func(key string) string { return models.GetConfigValue(db, key, "") })
	loc := cfg.Location()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	activity, closeActivity := newActivityLog(ctx, cfg, loc)
	defer closeActivity()

	platform := services.NewGamePlatformClient(cfg.GameAPIBaseURL, cfg.UpstreamTimeout)
	accounts := services.NewAccountService(db)
	tokens := services.NewTokenService(db, accounts, platform, services.TokenOptions{
		UpstreamTimeout: cfg.UpstreamTimeout,
		RefreshMargin:   cfg.TokenRefreshMargin,
		SweepInterval:   cfg.TokenSweepInterval,
		Concurrency:     cfg.RefreshConcurrency,
	})
	quota := services.NewQuotaService(db, cfg.DailyLikeCap, loc, nil)
	dispatch := services.NewDispatchService(accounts, tokens, quota, platform, activity, services.DispatchOptions{
		Workers:         cfg.DispatchWorkers,
		UpstreamTimeout: cfg.UpstreamTimeout,
		UpstreamRPS:     cfg.UpstreamRPS,
		UpstreamBurst:   cfg.UpstreamBurst,
	})
	stats := services.NewStatsService(db, tokens, activity, loc, nil)
	users := services.NewUserService(db, cfg.JWTSecret)

	settings := services.NewSettingsService(db, func(key string) string {
		if key == "daily_like_cap" {
			return strconv.Itoa(quota.Cap())
		}
		return startupSetting(cfg, key)
	}, func(key string) string {
		return startupSetting(&envDefaults, key)
	})
	settings.OnChange(func(key, value string) {
		if key == "daily_like_cap" {
			if v, err := strconv.Atoi(value); err == nil {
				quota.SetCap(v)
			}
		}
	})

	tokens.Start(ctx)

	likeLimiter := middleware.NewLimiterStore(cfg.LikeRPS, cfg.LikeBurst, 15*time.Minute)
	likeLimiter.StartJanitor(ctx, 2*time.Minute)

	gin.SetMode(cfg.GinMode)
	r := gin.Default()
	handlers.SetupRouter(r, handlers.Deps{
		Accounts:    accounts,
		Tokens:      tokens,
		Quota:       quota,
		Dispatch:    dispatch,
		Stats:       stats,
		Users:       users,
		Settings:    settings,
		LikeLimiter: likeLimiter,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("🚀 FF-LIKE engine starting on port %s (tz=%s, cap=%d)", cfg.ServerPort, cfg.Timezone, cfg.DailyLikeCap)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[WARN] http shutdown: %v", err)
	}
	tokens.Wait()
}

// newActivityLog uses Redis when REDIS_ADDR is set and reachable, the
// activities table otherwise.
func newActivityLog(ctx context.Context, cfg *config.Config, loc *time.Location) (services.ActivityLog, func()) {
	sqlLog := services.NewSQLActivityLog(models.GetDB(), cfg.ActivityRetention, loc)
	if cfg.RedisAddr == "" {
		return sqlLog, func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Printf("[WARN] redis %s unreachable, activity log falls back to database: %v", cfg.RedisAddr, err)
		_ = rdb.Close()
		return sqlLog, func() {}
	}
	log.Printf("✅ Activity log using redis at %s", cfg.RedisAddr)
	return services.NewRedisActivityLog(rdb, cfg.ActivityRetention, loc), func() { _ = rdb.Close() }
}

// startupSetting reports values fixed at startup.
func startupSetting(cfg *config.Config, key string) string {
	switch key {
	case "daily_like_cap":
		return strconv.Itoa(cfg.DailyLikeCap)
	case "activity_retention":
		return strconv.Itoa(cfg.ActivityRetention)
	case "token_refresh_margin":
		return cfg.TokenRefreshMargin.String()
	case "token_sweep_interval":
		return cfg.TokenSweepInterval.String()
	}
	return ""
}
