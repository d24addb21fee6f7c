package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pulsefeed/pulsefeed-backend/internal/data/repos/article"
	"github.com/pulsefeed/pulsefeed-backend/internal/domain"
	"github.com/pulsefeed/pulsefeed-backend/internal/platform/logger"
	"github.com/pulsefeed/pulsefeed-backend/internal/services"
)

// UserIDHeader carries the caller's identity; there is no auth layer in
// front of this service.
const UserIDHeader = "X-User-ID"

type ArticleHandler struct {
	log                    *logger.Logger
	articleService         services.ArticleService
	similarityService      services.SimilarityService
	personalizationService services.PersonalizationService
}

func NewArticleHandler(
	baseLog *logger.Logger,
	articleService services.ArticleService,
	similarityService services.SimilarityService,
	personalizationService services.PersonalizationService,
) *ArticleHandler {
	return &ArticleHandler{
		log:                    baseLog.With("handler", "ArticleHandler"),
		articleService:         articleService,
		similarityService:      similarityService,
		personalizationService: personalizationService,
	}
}

func (ah *ArticleHandler) List(c *gin.Context) {
	params := queryParamsFrom(c)
	page, err := ah.articleService.List(c.Request.Context(), params)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, page)
}

func (ah *ArticleHandler) Search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		RespondError(c, http.StatusBadRequest, "validation_error", errFieldRequired("q"))
		return
	}
	params := queryParamsFrom(c)
	params.Text = q
	page, err := ah.articleService.List(c.Request.Context(), params)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, page)
}

// GetByID also records a view against the caller when the user header is
// present, so plain reads advance both the viewed set and engagement.
func (ah *ArticleHandler) GetByID(c *gin.Context) {
	id := c.Param("id")
	row, err := ah.articleService.GetByID(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	if userID, ok := optionalUserID(c); ok {
		if err := ah.personalizationService.RecordView(c.Request.Context(), userID, id); err != nil {
			// The read itself already succeeded; do not fail it now.
			ah.log.Warn("implicit view record failed", "article_id", id, "user_id", userID, "error", err)
		}
	}
	RespondOK(c, gin.H{"article": row})
}

func (ah *ArticleHandler) Similar(c *gin.Context) {
	id := c.Param("id")
	k := intQuery(c, "k", 0)
	similar, err := ah.similarityService.SimilarTo(c.Request.Context(), id, k)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"similar": similar})
}

func (ah *ArticleHandler) RecordView(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	if err := ah.personalizationService.RecordView(c.Request.Context(), userID, c.Param("id")); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"recorded": true})
}

func queryParamsFrom(c *gin.Context) article.QueryParams {
	params := article.QueryParams{
		Page:     intQuery(c, "page", 1),
		PageSize: intQuery(c, "page_size", 20),
	}
	if topic := strings.TrimSpace(c.Query("topic")); topic != "" {
		params.Topics = strings.Split(topic, ",")
	}
	if src := strings.TrimSpace(c.Query("source")); src != "" {
		params.Sources = strings.Split(src, ",")
	}
	if sent := strings.TrimSpace(c.Query("sentiment")); sent != "" {
		for _, v := range strings.Split(sent, ",") {
			params.Sentiments = append(params.Sentiments, domain.Sentiment(strings.ToLower(strings.TrimSpace(v))))
		}
	}
	return params
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func optionalUserID(c *gin.Context) (uuid.UUID, bool) {
	raw := strings.TrimSpace(c.GetHeader(UserIDHeader))
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func requireUserID(c *gin.Context) (uuid.UUID, bool) {
	raw := strings.TrimSpace(c.GetHeader(UserIDHeader))
	if raw == "" {
		RespondError(c, http.StatusBadRequest, "validation_error", errFieldRequired(UserIDHeader+" header"))
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", err)
		return uuid.Nil, false
	}
	return id, true
}
