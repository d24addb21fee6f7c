package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/pulsefeed/pulsefeed-backend/internal/services"
)

type UserHandler struct {
	personalizationService services.PersonalizationService
}

func NewUserHandler(personalizationService services.PersonalizationService) *UserHandler {
	return &UserHandler{personalizationService: personalizationService}
}

func (uh *UserHandler) Create(c *gin.Context) {
	userID := uh.personalizationService.NewUser()
	state, _ := uh.personalizationService.State(c.Request.Context(), userID)
	RespondOK(c, gin.H{"user_id": userID, "state": state})
}

func (uh *UserHandler) GetPreferences(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	prefs, err := uh.personalizationService.GetPreferences(c.Request.Context(), userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	state, err := uh.personalizationService.State(c.Request.Context(), userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"preferences": prefs, "state": state})
}

func (uh *UserHandler) SetPreferences(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var in services.PreferencesInput
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondError(c, 400, "validation_error", err)
		return
	}
	prefs, err := uh.personalizationService.SetPreferences(c.Request.Context(), userID, in)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"preferences": prefs, "state": services.StatePersonalized})
}

func (uh *UserHandler) ClearPreferences(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	if err := uh.personalizationService.ClearPreferences(c.Request.Context(), userID); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"cleared": true})
}

func (uh *UserHandler) Feed(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	page, err := uh.personalizationService.Feed(c.Request.Context(), userID, intQuery(c, "page", 1), intQuery(c, "page_size", 0))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, page)
}

func (uh *UserHandler) SearchFeed(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	page, err := uh.personalizationService.Search(c.Request.Context(), userID, c.Query("q"), intQuery(c, "page", 1), intQuery(c, "page_size", 0))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, page)
}
