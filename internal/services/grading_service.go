package services

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/learnforge/assessment-core/internal/cache"
	"github.com/learnforge/assessment-core/internal/models"
	"github.com/learnforge/assessment-core/internal/repositories"
	"github.com/learnforge/assessment-core/internal/validator"
)

type gradingService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	cache     *cache.CacheManager
}

func NewGradingService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, v *validator.Validator, cm *cache.CacheManager) GradingService {
	return &gradingService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: v,
		cache:     cm,
	}
}

func (s *gradingService) requireGrader(ctx context.Context, graderID, action string) error {
	user, err := s.repo.User().GetByID(ctx, graderID)
	if err != nil {
		return fmt.Errorf("failed to resolve grader: %w", err)
	}
	if user.Role != models.RoleInstructor && user.Role != models.RoleAdmin {
		return NewPermissionError(graderID, "attempt answer", action, "requires instructor role")
	}
	return nil
}

// OverrideGrade records an instructor's judgment on one response. It never
// re-runs automatic grading, and it may run after the attempt was finalized:
// the attempt's aggregate score is recomputed from the stored points.
func (s *gradingService) OverrideGrade(ctx context.Context, attemptAnswerID uint, req *OverrideGradeRequest, graderID string) (*models.AttemptAnswer, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, NewValidationError("request", err.Error())
	}
	if err := s.requireGrader(ctx, graderID, "grade"); err != nil {
		return nil, err
	}

	var (
		answer  *models.AttemptAnswer
		attempt *models.AssessmentAttempt
	)
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		answer, err = s.repo.Attempt().GetAnswerByID(ctx, tx, attemptAnswerID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrAttemptAnswerNotFound
			}
			return err
		}

		attempt, err = s.repo.Attempt().GetByIDForUpdate(ctx, tx, answer.AttemptID)
		if err != nil {
			return err
		}

		question, err := s.repo.Question().GetByID(ctx, tx, answer.QuestionID)
		if err != nil {
			return err
		}
		if question.Type.IsAutoGradable() {
			return ErrNotManuallyGradable
		}
		if req.PointsEarned > question.Points {
			return NewValidationError("points_earned",
				fmt.Sprintf("exceeds question worth of %d points", question.Points))
		}

		answer.PointsEarned = req.PointsEarned
		answer.IsCorrect = req.IsCorrect
		answer.Feedback = req.Feedback
		answer.ManuallyGraded = true
		if err := s.repo.Attempt().UpdateAnswer(ctx, tx, answer); err != nil {
			return err
		}

		if !attempt.IsCompleted {
			return nil
		}

		// Regrade the finalized aggregate from stored points.
		score, err := s.repo.Attempt().SumPointsEarned(ctx, tx, attempt.ID)
		if err != nil {
			return err
		}
		assessment, err := s.repo.Assessment().GetByID(ctx, tx, attempt.AssessmentID)
		if err != nil {
			return err
		}
		attempt.Score = score
		attempt.IsPassed = attempt.ScorePercentage() >= float64(assessment.PassingScore)
		return s.repo.Attempt().Update(ctx, tx, attempt)
	})
	if err != nil {
		if repositories.IsLockTimeoutError(err) {
			return nil, ErrLockWaitTimeout
		}
		return nil, err
	}

	cache.InvalidateAttemptCache(ctx, s.cache, attempt.ID, attempt.AssessmentID)
	s.logger.Info("Grade overridden",
		"attempt_answer_id", attemptAnswerID,
		"attempt_id", attempt.ID,
		"points_earned", req.PointsEarned,
		"grader_id", graderID)
	return answer, nil
}

// ListPendingManual returns the attempt's responses still waiting for a
// human grade.
func (s *gradingService) ListPendingManual(ctx context.Context, attemptID uint, graderID string) ([]*models.AttemptAnswer, error) {
	if err := s.requireGrader(ctx, graderID, "list pending grades of"); err != nil {
		return nil, err
	}

	if _, err := s.repo.Attempt().GetByID(ctx, nil, attemptID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	answers, err := s.repo.Attempt().ListAnswers(ctx, nil, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}

	var pending []*models.AttemptAnswer
	for _, a := range answers {
		if a.IsCorrect == nil && !a.ManuallyGraded {
			pending = append(pending, a)
		}
	}
	return pending, nil
}

// Stats summarizes the completed attempts of one assessment.
func (s *gradingService) Stats(ctx context.Context, assessmentID uint, actorID string) (*AssessmentStats, error) {
	if err := s.requireGrader(ctx, actorID, "view stats of"); err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("assessment:%d:stats", assessmentID)
	var cached AssessmentStats
	if err := s.cache.Stats.Get(ctx, cacheKey, &cached); err == nil {
		return &cached, nil
	}

	if _, err := s.repo.Assessment().GetByID(ctx, nil, assessmentID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}

	attempts, err := s.repo.Attempt().ListCompletedByAssessment(ctx, nil, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}

	stats := &AssessmentStats{AssessmentID: assessmentID}
	users := make(map[string]bool)
	var scoreSum, percentSum float64
	for _, a := range attempts {
		stats.TotalAttempts++
		if a.IsPassed {
			stats.PassedAttempts++
		}
		if a.Score > stats.HighestScore {
			stats.HighestScore = a.Score
		}
		scoreSum += float64(a.Score)
		percentSum += a.ScorePercentage()
		users[a.UserID] = true
	}
	stats.DistinctUsers = len(users)
	if stats.TotalAttempts > 0 {
		stats.AverageScore = scoreSum / float64(stats.TotalAttempts)
		stats.AveragePercent = percentSum / float64(stats.TotalAttempts)
		stats.PassRatePercent = float64(stats.PassedAttempts) / float64(stats.TotalAttempts) * 100
	}

	if err := s.cache.Stats.Set(ctx, cacheKey, stats, cache.StatsTTL); err != nil {
		s.logger.Warn("Failed to cache assessment stats", "assessment_id", assessmentID, "error", err)
	}
	return stats, nil
}
