package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/learnforge/assessment-core/internal/models"
	"github.com/learnforge/assessment-core/internal/repositories"
)

// ResultsExporter writes the completed attempts of an assessment to an xlsx
// workbook for instructor download.
type ResultsExporter struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewResultsExporter(repo repositories.Repository, logger *slog.Logger) *ResultsExporter {
	return &ResultsExporter{
		repo:   repo,
		logger: logger,
	}
}

var resultHeaders = []string{
	"Attempt ID", "User", "Attempt #", "Score", "Max Score", "Percent",
	"Passed", "End Reason", "Started At", "Completed At", "Time Taken (s)",
}

// ExportAssessmentResults builds the workbook in memory and returns its bytes.
func (e *ResultsExporter) ExportAssessmentResults(ctx context.Context, assessmentID uint) ([]byte, error) {
	assessment, err := e.repo.Assessment().GetByID(ctx, nil, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}

	attempts, err := e.repo.Attempt().ListCompletedByAssessment(ctx, nil, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			e.logger.Warn("Failed to close workbook", "error", err)
		}
	}()

	const sheet = "Results"
	f.SetSheetName("Sheet1", sheet)

	for col, header := range resultHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, err
		}
	}

	for row, attempt := range attempts {
		if err := e.writeAttemptRow(ctx, f, sheet, row+2, attempt); err != nil {
			return nil, err
		}
	}

	e.logger.Info("Exported assessment results",
		"assessment_id", assessmentID,
		"title", assessment.Title,
		"attempts", len(attempts))

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *ResultsExporter) writeAttemptRow(ctx context.Context, f *excelize.File, sheet string, row int, attempt *models.AssessmentAttempt) error {
	userLabel := attempt.UserID
	if user, err := e.repo.User().GetByID(ctx, attempt.UserID); err == nil && user.DisplayName != "" {
		userLabel = user.DisplayName
	}

	values := []interface{}{
		attempt.ID,
		userLabel,
		attempt.AttemptNumber,
		attempt.Score,
		attempt.MaxScore,
		fmt.Sprintf("%.1f%%", attempt.ScorePercentage()),
		attempt.IsPassed,
		derefOr(attempt.EndReason, ""),
		formatTime(attempt.StartedAt),
		formatTime(attempt.CompletedAt),
		attempt.TimeTakenSeconds,
	}

	for col, value := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, value); err != nil {
			return err
		}
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
