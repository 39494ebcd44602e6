package router

import (
	"localeloop/internal/config"
	"localeloop/internal/handlers"
	"localeloop/internal/middleware"
	"localeloop/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps 路由需要的 service 和外部依赖
type Deps struct {
	Loops      *services.LoopService
	Engagement *services.EngagementService
	Search     *services.SearchService
	Users      *services.UserService
	Uploader   services.Uploader
	Google     config.GoogleConfig
	SiteURL    string
	Ping       handlers.PingFunc
}

// RegisterRoutes 需要在 sessions 中间件之后调用
func RegisterRoutes(r *gin.Engine, d Deps) {
	// Handlers
	authHandler := handlers.NewAuthHandler(d.Users, d.Google, d.SiteURL)
	loopHandler := handlers.NewLoopHandler(d.Loops, d.Search)
	engagementHandler := handlers.NewEngagementHandler(d.Engagement)
	userHandler := handlers.NewUserHandler(d.Users, d.Loops)
	imageHandler := handlers.NewImageHandler(d.Uploader)
	adminHandler := handlers.NewAdminHandler(d.Loops)
	healthHandler := handlers.NewHealthHandler(d.Ping)

	r.GET("/healthz", healthHandler.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(middleware.LoadUser(d.Users))

	r.GET("/auth/google", authHandler.GoogleLogin)             // 发起 Google 登录
	r.GET("/auth/google/callback", authHandler.GoogleCallback) // Google 回调

	api := r.Group("/api")

	// 公共路由 (Public Routes)
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/logout", authHandler.Logout)
	api.GET("/me", authHandler.Me)

	api.GET("/loops", loopHandler.Search)            // 搜索/筛选
	api.GET("/loops/filters", loopHandler.Filters)   // 城市和标签
	api.GET("/loops/featured", loopHandler.Featured) // 精选
	api.GET("/loops/popular", loopHandler.Popular)   // 最多点赞
	api.GET("/loops/:slug", loopHandler.Detail)      // Loop 详情
	api.GET("/stats", loopHandler.Stats)
	api.GET("/users/:name", userHandler.Profile) // 用户主页
	api.GET("/comments", engagementHandler.ListComments)

	// 受保护路由 (Protected Routes)
	authorized := api.Group("")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.POST("/loops", loopHandler.Create)
		authorized.POST("/likes/:loopId", engagementHandler.ToggleLike)
		authorized.POST("/comments", engagementHandler.CreateComment)
		authorized.DELETE("/comments/:id", engagementHandler.DeleteComment)
		authorized.POST("/comments/:id/like", engagementHandler.ToggleCommentLike)
		authorized.POST("/uploads", imageHandler.Upload)
		authorized.POST("/admin/loops/:id/featured", adminHandler.SetFeatured)
	}

	// 仪表盘路由 (Dashboard Routes)
	dashboard := api.Group("/dashboard")
	dashboard.Use(middleware.AuthRequired())
	{
		dashboard.GET("", userHandler.Dashboard)
		dashboard.GET("/loops/:id", loopHandler.Edit)
		dashboard.PUT("/loops/:id", loopHandler.Update)
		dashboard.DELETE("/loops/:id", loopHandler.Delete)
		dashboard.PUT("/loops/:id/order", loopHandler.Reorder)
	}
}
