package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/learnforge/assessment-core/internal/export"
	"github.com/learnforge/assessment-core/internal/services"
)

// GradingHandler exposes manual grading, stats and result export.
type GradingHandler struct {
	BaseHandler
	grading  services.GradingService
	exporter *export.ResultsExporter
}

func NewGradingHandler(grading services.GradingService, exporter *export.ResultsExporter, logger *slog.Logger) *GradingHandler {
	return &GradingHandler{
		BaseHandler: NewBaseHandler(logger),
		grading:     grading,
		exporter:    exporter,
	}
}

func (h *GradingHandler) OverrideGrade(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	var req services.OverrideGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid request payload", Details: err.Error()})
		return
	}
	graderID := h.requireUserID(c)
	if graderID == "" {
		return
	}

	h.LogRequest(c, "Overriding grade", "attempt_answer_id", id)

	answer, err := h.grading.OverrideGrade(c.Request.Context(), id, &req, graderID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, answer)
}

func (h *GradingHandler) ListPendingManual(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}
	graderID := h.requireUserID(c)
	if graderID == "" {
		return
	}

	pending, err := h.grading.ListPendingManual(c.Request.Context(), attemptID, graderID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, pending)
}

func (h *GradingHandler) Stats(c *gin.Context) {
	assessmentID := h.parseIDParam(c, "id")
	if assessmentID == 0 {
		return
	}
	actorID := h.requireUserID(c)
	if actorID == "" {
		return
	}

	stats, err := h.grading.Stats(c.Request.Context(), assessmentID, actorID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *GradingHandler) ExportResults(c *gin.Context) {
	assessmentID := h.parseIDParam(c, "id")
	if assessmentID == 0 {
		return
	}
	actorID := h.requireUserID(c)
	if actorID == "" {
		return
	}

	// Stats carries the role check; reuse it as the export gate.
	if _, err := h.grading.Stats(c.Request.Context(), assessmentID, actorID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	data, err := h.exporter.ExportAssessmentResults(c.Request.Context(), assessmentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("assessment_%d_results.xlsx", assessmentID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
