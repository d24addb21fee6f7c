package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/pulsefeed/pulsefeed-backend/internal/domain"
	"github.com/pulsefeed/pulsefeed-backend/internal/services"
)

type TrendingHandler struct {
	trendingService services.TrendingService
	articleService  services.ArticleService
}

func NewTrendingHandler(trendingService services.TrendingService, articleService services.ArticleService) *TrendingHandler {
	return &TrendingHandler{trendingService: trendingService, articleService: articleService}
}

type rankedArticle struct {
	Article *domain.Article `json:"article"`
	Score   float64         `json:"score"`
}

func (th *TrendingHandler) Top(c *gin.Context) {
	limit := intQuery(c, "limit", 20)
	entries := th.trendingService.Top(c.Request.Context(), limit)

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ArticleID)
	}
	rows, err := th.articleService.GetByIDs(c.Request.Context(), ids)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	byID := make(map[string]*domain.Article, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	ranked := make([]rankedArticle, 0, len(entries))
	for _, e := range entries {
		row, ok := byID[e.ArticleID]
		if !ok {
			continue
		}
		ranked = append(ranked, rankedArticle{Article: row, Score: e.Score})
	}
	RespondOK(c, gin.H{
		"trending": ranked,
		"built_at": th.trendingService.LastBuiltAt(),
	})
}
