package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/ArtJustine/scheduler-sub001/config"
	"github.com/ArtJustine/scheduler-sub001/controllers"
	"github.com/ArtJustine/scheduler-sub001/media"
	"github.com/ArtJustine/scheduler-sub001/middleware"
	"github.com/ArtJustine/scheduler-sub001/oauthflow"
	"github.com/ArtJustine/scheduler-sub001/platforms"
	"github.com/ArtJustine/scheduler-sub001/scheduler"
	"github.com/ArtJustine/scheduler-sub001/store"
	"github.com/ArtJustine/scheduler-sub001/utils"
)

// Services are the dependencies the HTTP layer is built from.
type Services struct {
	DB         *gorm.DB
	Posts      *store.PostStore
	Creds      *store.CredentialStore
	Workspaces *store.WorkspaceStore
	Blacklist  *utils.TokenBlacklist
	Registry   *platforms.Registry
	Flow       *oauthflow.Flow
	Sweeper    *scheduler.Sweeper
	// Media is nil when object storage is not configured.
	Media media.Store
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(cfg config.AppConfig, svc Services) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	gl := utils.NewGinLogger(cfg)
	r.Use(ginzap.Ginzap(gl, time.RFC3339, true))
	r.Use(ginzap.RecoveryWithZap(gl, true))
	r.Use(middleware.RequestID(), middleware.Metrics())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", middleware.WorkspaceHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authController := controllers.NewAuthController(svc.DB, svc.Blacklist, cfg.JWTSecret)
	postController := controllers.NewPostController(svc.Posts, svc.Sweeper, svc.Registry)
	connController := controllers.NewConnectionController(svc.Flow, svc.Creds, svc.Registry, cfg.FrontendURL)
	cronController := controllers.NewCronController(svc.Sweeper)
	mediaController := controllers.NewMediaController(svc.Media)
	workspaceController := controllers.NewWorkspaceController(svc.Workspaces)
	statsController := controllers.NewStatsController(svc.Posts, svc.Creds)

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)
	authed := middleware.AuthRequired(cfg.JWTSecret, svc.Blacklist)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(limiter.Middleware())
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", authed, authController.Logout)
	authGroup.GET("/me", authed, authController.Me)

	// public: the state value authenticates the callback
	api.GET("/oauth/:platform/callback", connController.Callback)

	cron := api.Group("/cron")
	cron.Use(middleware.CronSecret(cfg.CronSecret))
	cron.POST("/publish", cronController.Publish)
	cron.GET("/publish", cronController.Publish)

	account := api.Group("")
	account.Use(authed, limiter.Middleware())
	account.GET("/workspaces", workspaceController.List)
	account.POST("/workspaces", workspaceController.Create)

	protected := api.Group("")
	protected.Use(authed, limiter.Middleware(), middleware.WorkspaceRequired(svc.Workspaces))

	protected.GET("/posts", postController.ListPosts)
	protected.POST("/posts", postController.CreatePost)
	protected.GET("/posts/:id", postController.GetPost)
	protected.PUT("/posts/:id", postController.UpdatePost)
	protected.DELETE("/posts/:id", postController.DeletePost)
	protected.POST("/posts/:id/publish-now", postController.PublishNow)

	protected.GET("/connections", connController.List)
	protected.GET("/connections/:platform/connect", connController.Connect)
	protected.DELETE("/connections/:platform", connController.Disconnect)

	protected.POST("/media", mediaController.Upload)
	protected.GET("/stats", statsController.GetStats)

	r.NoRoute(func(ctx *gin.Context) {
		if strings.HasPrefix(ctx.Request.URL.Path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
			return
		}
		ctx.JSON(http.StatusNotFound, gin.H{"message": "not found"})
	})

	return r
}
