package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/pulsefeed/pulsefeed-backend/internal/handlers"
	"github.com/pulsefeed/pulsefeed-backend/internal/middleware"
	"github.com/pulsefeed/pulsefeed-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log             *logger.Logger
	ArticleHandler  *handlers.ArticleHandler
	TrendingHandler *handlers.TrendingHandler
	UserHandler     *handlers.UserHandler
	AdminHandler    *handlers.AdminHandler
	AllowOrigins    []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Log != nil {
		router.Use(middleware.RequestLogger(cfg.Log))
	}

	// Cors
	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", handlers.UserIDHeader},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		// Articles
		api.GET("/articles", cfg.ArticleHandler.List)
		api.GET("/articles/search", cfg.ArticleHandler.Search)
		api.GET("/articles/:id", cfg.ArticleHandler.GetByID)
		api.GET("/articles/:id/similar", cfg.ArticleHandler.Similar)
		api.POST("/articles/:id/view", cfg.ArticleHandler.RecordView)
		// Trending
		api.GET("/trending", cfg.TrendingHandler.Top)
		// Users
		api.POST("/users", cfg.UserHandler.Create)
		api.GET("/users/preferences", cfg.UserHandler.GetPreferences)
		api.PUT("/users/preferences", cfg.UserHandler.SetPreferences)
		api.DELETE("/users/preferences", cfg.UserHandler.ClearPreferences)
		// Feed
		api.GET("/feed", cfg.UserHandler.Feed)
		api.GET("/feed/search", cfg.UserHandler.SearchFeed)
	}

	admin := api.Group("/admin")
	{
		admin.POST("/ingest", cfg.AdminHandler.Ingest)
		admin.POST("/trending/refresh", cfg.AdminHandler.RefreshTrending)
		admin.GET("/cache/stats", cfg.AdminHandler.CacheStats)
		admin.DELETE("/cache", cfg.AdminHandler.ClearCache)
		admin.GET("/engagement/:id", cfg.AdminHandler.Engagement)
	}

	return router
}
