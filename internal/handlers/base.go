package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/learnforge/assessment-core/internal/services"
)

// ErrorResponse is the error body every endpoint returns.
type ErrorResponse struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// BaseHandler carries the helpers shared by all handlers.
type BaseHandler struct {
	logger *slog.Logger
}

func NewBaseHandler(logger *slog.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	args = append(args, "path", c.FullPath(), "method", c.Request.Method)
	h.logger.InfoContext(c.Request.Context(), msg, args...)
}

// parseIDParam reads a positive uint path parameter; on failure it writes the
// 400 response itself and returns 0.
func (h *BaseHandler) parseIDParam(c *gin.Context, name string) uint {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + name + " parameter",
		})
		return 0
	}
	return uint(id)
}

// requireUserID reads the authenticated user from context; on failure it
// writes the 401 response itself and returns "".
func (h *BaseHandler) requireUserID(c *gin.Context) string {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return ""
	}
	id, ok := userID.(string)
	if !ok || id == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return ""
	}
	return id
}

// handleServiceError maps the service error taxonomy onto HTTP statuses.
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case errors.Is(err, services.ErrAssessmentNotFound),
		errors.Is(err, services.ErrQuestionNotFound),
		errors.Is(err, services.ErrAnswerNotFound),
		errors.Is(err, services.ErrAttemptNotFound),
		errors.Is(err, services.ErrAttemptAnswerNotFound),
		errors.Is(err, services.ErrUserNotFound):
		status = http.StatusNotFound
		message = err.Error()

	case services.IsValidationError(err),
		errors.Is(err, services.ErrQuestionNotInAssessment),
		errors.Is(err, services.ErrNotManuallyGradable):
		status = http.StatusBadRequest
		message = err.Error()

	case services.IsPermissionError(err):
		status = http.StatusForbidden
		message = err.Error()

	case errors.Is(err, services.ErrDuplicateOrder),
		errors.Is(err, services.ErrLessonAlreadyHasAssessment),
		errors.Is(err, services.ErrAttemptLimitExceeded),
		errors.Is(err, services.ErrAttemptCompleted),
		errors.Is(err, services.ErrAttemptInProgress):
		status = http.StatusConflict
		message = err.Error()

	case errors.Is(err, services.ErrAttemptExpired):
		status = http.StatusGone
		message = err.Error()

	case services.IsRetryable(err):
		status = http.StatusServiceUnavailable
		message = err.Error()
		c.Header("Retry-After", "1")

	default:
		h.logger.ErrorContext(c.Request.Context(), "Unhandled service error",
			"error", err,
			"path", c.FullPath())
	}

	c.JSON(status, ErrorResponse{Message: message})
}
