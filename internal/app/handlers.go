package app

import (
	"github.com/gin-gonic/gin"

	"github.com/pulsefeed/pulsefeed-backend/internal/handlers"
	"github.com/pulsefeed/pulsefeed-backend/internal/platform/logger"
	"github.com/pulsefeed/pulsefeed-backend/internal/server"
)

type Handlers struct {
	Article  *handlers.ArticleHandler
	Trending *handlers.TrendingHandler
	User     *handlers.UserHandler
	Admin    *handlers.AdminHandler
}

func wireHandlers(log *logger.Logger, svcs Services, st State) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Article:  handlers.NewArticleHandler(log, svcs.Article, svcs.Similarity, svcs.Personalization),
		Trending: handlers.NewTrendingHandler(svcs.Trending, svcs.Article),
		User:     handlers.NewUserHandler(svcs.Personalization),
		Admin:    handlers.NewAdminHandler(svcs.Ingestion, svcs.Trending, st.Cache, st.Tracker),
	}
}

func wireRouter(log *logger.Logger, cfg Config, h Handlers) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		Log:             log,
		ArticleHandler:  h.Article,
		TrendingHandler: h.Trending,
		UserHandler:     h.User,
		AdminHandler:    h.Admin,
		AllowOrigins:    cfg.AllowOrigins,
	})
}
