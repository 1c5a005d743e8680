package services

import (
	"context"

	"github.com/learnforge/assessment-core/internal/models"
	"github.com/learnforge/assessment-core/internal/validator"
)

// Request DTOs live with the validator so its rules and the shapes stay
// together; the aliases keep service signatures local.
type (
	AssessmentCreateRequest = validator.AssessmentCreateRequest
	AssessmentUpdateRequest = validator.AssessmentUpdateRequest
	QuestionCreateRequest   = validator.QuestionCreateRequest
	AnswerCreateRequest     = validator.AnswerCreateRequest
	StartAttemptRequest     = validator.StartAttemptRequest
	SubmitAnswerRequest     = validator.SubmitAnswerRequest
	FinalizeAttemptRequest  = validator.FinalizeAttemptRequest
	OverrideGradeRequest    = validator.OverrideGradeRequest
)

// AttemptResult is the finalized view of an attempt.
type AttemptResult struct {
	Attempt         *models.AssessmentAttempt `json:"attempt"`
	ScorePercentage float64                   `json:"score_percentage"`
	PendingManual   int                       `json:"pending_manual"`
}

// AssessmentStats summarizes completed attempts for one assessment.
type AssessmentStats struct {
	AssessmentID    uint    `json:"assessment_id"`
	TotalAttempts   int     `json:"total_attempts"`
	PassedAttempts  int     `json:"passed_attempts"`
	AverageScore    float64 `json:"average_score"`
	AveragePercent  float64 `json:"average_percent"`
	HighestScore    int     `json:"highest_score"`
	DistinctUsers   int     `json:"distinct_users"`
	PassRatePercent float64 `json:"pass_rate_percent"`
}

// ContentService manages assessments and their questions and answers.
// Mutations require the instructor or admin role.
type ContentService interface {
	CreateAssessment(ctx context.Context, req *AssessmentCreateRequest, actorID string) (*models.Assessment, error)
	GetAssessment(ctx context.Context, id uint) (*models.Assessment, error)
	GetAssessmentByLesson(ctx context.Context, lessonID uint) (*models.Assessment, error)
	UpdateAssessment(ctx context.Context, id uint, req *AssessmentUpdateRequest, actorID string) (*models.Assessment, error)
	DeleteAssessment(ctx context.Context, id uint, actorID string) error

	AddQuestion(ctx context.Context, assessmentID uint, req *QuestionCreateRequest, actorID string) (*models.Question, error)
	GetQuestion(ctx context.Context, id uint) (*models.Question, error)
	ListQuestions(ctx context.Context, assessmentID uint) ([]*models.Question, error)
	DeleteQuestion(ctx context.Context, id uint, actorID string) error

	AddAnswer(ctx context.Context, questionID uint, req *AnswerCreateRequest, actorID string) (*models.Answer, error)
	DeleteAnswer(ctx context.Context, id uint, actorID string) error

	// MaxScore is the sum of the assessment's question points.
	MaxScore(ctx context.Context, assessmentID uint) (int, error)
}

// AttemptService runs the attempt lifecycle: start, answer, finalize.
type AttemptService interface {
	Start(ctx context.Context, req *StartAttemptRequest, userID string) (*models.AssessmentAttempt, error)
	GetByID(ctx context.Context, attemptID uint, userID string) (*models.AssessmentAttempt, error)
	ListByUser(ctx context.Context, assessmentID uint, userID string) ([]*models.AssessmentAttempt, error)

	SubmitAnswer(ctx context.Context, attemptID uint, req *SubmitAnswerRequest, userID string) (*models.AttemptAnswer, error)

	// Finalize closes the attempt and computes its score, exactly once.
	// Calling it again on a finalized attempt fails with ErrAttemptCompleted.
	Finalize(ctx context.Context, attemptID uint, req *FinalizeAttemptRequest, userID string) (*AttemptResult, error)

	// Result returns the finalized outcome without mutating anything.
	Result(ctx context.Context, attemptID uint, userID string) (*AttemptResult, error)

	// TimeRemaining reports the seconds left on an in-progress attempt,
	// 0 when untimed or already expired.
	TimeRemaining(ctx context.Context, attemptID uint, userID string) (int, error)

	// CanStart checks the attempt limit without starting anything.
	CanStart(ctx context.Context, assessmentID uint, userID string) (bool, error)
	AttemptCount(ctx context.Context, assessmentID uint, userID string) (int, error)
}

// GradingService is the instructor-side manual grading surface.
type GradingService interface {
	OverrideGrade(ctx context.Context, attemptAnswerID uint, req *OverrideGradeRequest, graderID string) (*models.AttemptAnswer, error)
	ListPendingManual(ctx context.Context, attemptID uint, graderID string) ([]*models.AttemptAnswer, error)
	Stats(ctx context.Context, assessmentID uint, actorID string) (*AssessmentStats, error)
}
