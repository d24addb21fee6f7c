package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pulsefeed/pulsefeed-backend/internal/cache"
	"github.com/pulsefeed/pulsefeed-backend/internal/domain"
	"github.com/pulsefeed/pulsefeed-backend/internal/engagement"
	pkgerrors "github.com/pulsefeed/pulsefeed-backend/internal/pkg/errors"
	"github.com/pulsefeed/pulsefeed-backend/internal/services"
)

type AdminHandler struct {
	ingestionService services.IngestionService
	trendingService  services.TrendingService
	store            cache.Store
	tracker          engagement.Tracker
}

func NewAdminHandler(
	ingestionService services.IngestionService,
	trendingService services.TrendingService,
	store cache.Store,
	tracker engagement.Tracker,
) *AdminHandler {
	return &AdminHandler{
		ingestionService: ingestionService,
		trendingService:  trendingService,
		store:            store,
		tracker:          tracker,
	}
}

// Ingest runs a batch from the request body, or a full source cycle when the
// body is empty.
func (ah *AdminHandler) Ingest(c *gin.Context) {
	var in struct {
		Articles []domain.RawArticle `json:"articles"`
	}
	if err := c.ShouldBindJSON(&in); err != nil && !errors.Is(err, io.EOF) {
		RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}

	var report *services.BatchReport
	var err error
	if len(in.Articles) > 0 {
		report = ah.ingestionService.RunBatch(c.Request.Context(), in.Articles)
	} else {
		report, err = ah.ingestionService.RunCycle(c.Request.Context())
	}
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"report": report})
}

func (ah *AdminHandler) RefreshTrending(c *gin.Context) {
	if err := ah.trendingService.Refresh(c.Request.Context()); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"refreshed": true, "built_at": ah.trendingService.LastBuiltAt()})
}

func (ah *AdminHandler) CacheStats(c *gin.Context) {
	stats, err := ah.store.Stats(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"cache": stats})
}

// ClearCache clears one namespace or, with scope=all, every one of them.
// The response reports how many entries were dropped.
func (ah *AdminHandler) ClearCache(c *gin.Context) {
	scope := strings.ToLower(strings.TrimSpace(c.Query("scope")))
	if scope == "" {
		RespondError(c, http.StatusBadRequest, "validation_error", errFieldRequired("scope"))
		return
	}

	var cleared int64
	var err error
	if scope == "all" {
		cleared, err = ah.store.ClearAll(c.Request.Context())
	} else {
		ns := cache.Namespace(scope)
		if !cache.ValidNamespace(ns) {
			RespondError(c, http.StatusBadRequest, "validation_error", pkgerrors.Validation("scope", "unknown namespace"))
			return
		}
		cleared, err = ah.store.ClearNamespace(c.Request.Context(), ns)
	}
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"scope": scope, "cleared": cleared})
}

func (ah *AdminHandler) Engagement(c *gin.Context) {
	rec, err := ah.tracker.Record(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	if rec == nil {
		RespondOK(c, gin.H{"engagement": nil})
		return
	}
	RespondOK(c, gin.H{"engagement": rec})
}
