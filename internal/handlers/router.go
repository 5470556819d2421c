package handlers

import (
	"github.com/Jeet1511/FF-LIKE/internal/middleware"
	"github.com/Jeet1511/FF-LIKE/internal/services"
	"github.com/gin-gonic/gin"
)

// Deps are the services behind the HTTP surface.
type Deps struct {
	Accounts *services.AccountService
	Tokens   *services.TokenService
	Quota    *services.QuotaService
	Dispatch *services.DispatchService
	Stats    *services.StatsService
	Users    *services.UserService
	Settings *services.SettingsService

	// LikeLimiter throttles /like per client IP; nil disables it.
	LikeLimiter *middleware.LimiterStore
}

// SetupRouter registers the public and admin routes on r.
func SetupRouter(r *gin.Engine, d Deps) {
	r.Use(middleware.RequestID(), middleware.CORSMiddleware())

	likeHandler := NewLikeHandler(d.Dispatch, d.Quota, d.Tokens, d.Stats)
	authHandler := NewAuthHandler(d.Users)
	accountHandler := NewAccountHandler(d.Accounts, d.Tokens)
	tokenHandler := NewTokenHandler(d.Tokens)
	dashboardHandler := NewDashboardHandler(d.Stats, d.Quota)
	settingsHandler := NewSettingsHandler(d.Settings)

	r.GET("/", likeHandler.Home)
	if d.LikeLimiter != nil {
		r.GET("/like", middleware.RateLimit(d.LikeLimiter), likeHandler.Like)
	} else {
		r.GET("/like", likeHandler.Like)
	}
	r.GET("/daily-stats/:uid", likeHandler.DailyStats)
	r.GET("/mongodb-stats", likeHandler.StorageStats)
	r.GET("/force-refresh", likeHandler.ForceRefresh)
	r.GET("/token-stats", likeHandler.TokenStats)
	r.GET("/debug-request/:uid/:server", likeHandler.DebugRequest)

	admin := r.Group("/admin")
	{
		admin.POST("/login", authHandler.Login)

		auth := admin.Group("")
		auth.Use(middleware.AuthMiddleware(d.Users))
		{
			auth.GET("/verify", authHandler.Verify)
			auth.POST("/change-password", authHandler.ChangePassword)

			auth.GET("/dashboard/stats", dashboardHandler.Stats)
			auth.GET("/dashboard/recent-likes", dashboardHandler.RecentLikes)
			auth.GET("/usage/:uid", dashboardHandler.Usage)
			auth.GET("/servers", accountHandler.Servers)

			auth.GET("/accounts", accountHandler.List)
			auth.GET("/accounts/:id", accountHandler.Get)
			auth.POST("/accounts", accountHandler.Create)
			auth.PUT("/accounts/:id", accountHandler.Update)
			auth.DELETE("/accounts/:id", accountHandler.Delete)
			auth.POST("/accounts/:id/refresh", accountHandler.Refresh)

			auth.POST("/tokens/refresh", tokenHandler.Refresh)
			auth.GET("/tokens/status", tokenHandler.Status)

			auth.GET("/settings", settingsHandler.List)
			auth.PUT("/settings/:key", settingsHandler.Update)
			auth.DELETE("/settings/:key", settingsHandler.Delete)
		}
	}
}
