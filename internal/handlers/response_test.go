package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	pkgerrors "github.com/pulsefeed/pulsefeed-backend/internal/pkg/errors"
)

func TestRespondServiceErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{pkgerrors.Validation("topics", "too many"), http.StatusBadRequest, "validation_error"},
		{pkgerrors.ErrNotFound, http.StatusNotFound, "not_found"},
		{fmt.Errorf("wrap: %w", pkgerrors.ErrNotFound), http.StatusNotFound, "not_found"},
		{pkgerrors.ErrPreferencesRequired, http.StatusPreconditionRequired, "preferences_required"},
		{pkgerrors.ErrMissingEmbedding, http.StatusUnprocessableEntity, "missing_embedding"},
		{pkgerrors.ErrStoreUnavailable, http.StatusServiceUnavailable, "service_unavailable"},
		{pkgerrors.ErrEnrichmentUnavailable, http.StatusServiceUnavailable, "service_unavailable"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		RespondServiceError(c, tc.err)

		if w.Code != tc.wantStatus {
			t.Fatalf("%v: expected status %d, got %d", tc.err, tc.wantStatus, w.Code)
		}
		var envelope ErrorEnvelope
		if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("%v: decode envelope: %v", tc.err, err)
		}
		if envelope.Error.Code != tc.wantCode {
			t.Fatalf("%v: expected code %q, got %q", tc.err, tc.wantCode, envelope.Error.Code)
		}
	}
}

func TestRequireUserID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/feed", nil)

	if _, ok := requireUserID(c); ok {
		t.Fatalf("missing header must not resolve a user")
	}
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing header, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/feed", nil)
	c.Request.Header.Set(UserIDHeader, "not-a-uuid")
	if _, ok := requireUserID(c); ok {
		t.Fatalf("malformed header must not resolve a user")
	}

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/feed", nil)
	c.Request.Header.Set(UserIDHeader, "7b9cf2a4-6f3e-4a20-9b4b-111111111111")
	id, ok := requireUserID(c)
	if !ok || id.String() != "7b9cf2a4-6f3e-4a20-9b4b-111111111111" {
		t.Fatalf("expected parsed user id, ok=%v id=%v", ok, id)
	}
}
