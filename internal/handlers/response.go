package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	pkgerrors "github.com/pulsefeed/pulsefeed-backend/internal/pkg/errors"
	"github.com/pulsefeed/pulsefeed-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func errFieldRequired(name string) error {
	return pkgerrors.Validation(name, "required")
}

// RespondServiceError translates the service error taxonomy into HTTP.
// PreferencesRequired is a signal, not a failure, hence 428.
func RespondServiceError(c *gin.Context, err error) {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		RespondError(c, ae.Status, ae.Code, ae.Err)
		return
	}
	switch {
	case pkgerrors.IsValidation(err):
		RespondError(c, http.StatusBadRequest, "validation_error", err)
	case errors.Is(err, pkgerrors.ErrNotFound):
		RespondError(c, http.StatusNotFound, "not_found", err)
	case errors.Is(err, pkgerrors.ErrPreferencesRequired):
		RespondError(c, http.StatusPreconditionRequired, "preferences_required", err)
	case errors.Is(err, pkgerrors.ErrMissingEmbedding):
		RespondError(c, http.StatusUnprocessableEntity, "missing_embedding", err)
	case errors.Is(err, pkgerrors.ErrStoreUnavailable),
		errors.Is(err, pkgerrors.ErrEnrichmentUnavailable),
		errors.Is(err, pkgerrors.ErrEmbeddingUnavailable):
		RespondError(c, http.StatusServiceUnavailable, "service_unavailable", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal_error", err)
	}
}
