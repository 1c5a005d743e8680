package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/learnforge/assessment-core/internal/services"
)

func TestHandleServiceError_StatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewBaseHandler(slog.New(slog.NewTextHandler(io.Discard, nil)))

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"assessment not found", services.ErrAssessmentNotFound, http.StatusNotFound},
		{"attempt not found", services.ErrAttemptNotFound, http.StatusNotFound},
		{"validation", services.NewValidationError("points", "too large"), http.StatusBadRequest},
		{"question mismatch", services.ErrQuestionNotInAssessment, http.StatusBadRequest},
		{"permission", services.NewPermissionError("u", "attempt", "view", "not owner"), http.StatusForbidden},
		{"duplicate order", services.ErrDuplicateOrder, http.StatusConflict},
		{"attempt limit", services.ErrAttemptLimitExceeded, http.StatusConflict},
		{"already completed", services.ErrAttemptCompleted, http.StatusConflict},
		{"expired", services.ErrAttemptExpired, http.StatusGone},
		{"lock timeout", services.ErrLockWaitTimeout, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			h.handleServiceError(c, tt.err)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestHandleServiceError_RetryableSetsRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewBaseHandler(slog.New(slog.NewTextHandler(io.Discard, nil)))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	h.handleServiceError(c, services.ErrLockWaitTimeout)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}
