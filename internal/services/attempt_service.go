package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/learnforge/assessment-core/internal/cache"
	"github.com/learnforge/assessment-core/internal/events"
	"github.com/learnforge/assessment-core/internal/models"
	"github.com/learnforge/assessment-core/internal/repositories"
	"github.com/learnforge/assessment-core/internal/utils"
	"github.com/learnforge/assessment-core/internal/validator"
)

type attemptService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	cache     *cache.CacheManager
	publisher events.Publisher
	clock     utils.Clock
}

func NewAttemptService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, v *validator.Validator, cm *cache.CacheManager, publisher events.Publisher, clock utils.Clock) AttemptService {
	if clock == nil {
		clock = utils.NewClock()
	}
	return &attemptService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: v,
		cache:     cm,
		publisher: publisher,
		clock:     clock,
	}
}

// ===== LIFECYCLE =====

func (s *attemptService) Start(ctx context.Context, req *StartAttemptRequest, userID string) (*models.AssessmentAttempt, error) {
	s.logger.Info("Starting assessment attempt",
		"assessment_id", req.AssessmentID,
		"user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return nil, NewValidationError("request", err.Error())
	}

	if _, err := s.repo.User().GetByID(ctx, userID); err != nil {
		return nil, ErrUserNotFound
	}

	assessment, err := s.repo.Assessment().GetByID(ctx, nil, req.AssessmentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}

	// A concurrent start for the same (user, assessment) can slip past the
	// count when no prior rows existed to lock; the unique attempt-number
	// index rejects the loser, which gets one clean retry.
	var attempt *models.AssessmentAttempt
	for tries := 0; ; tries++ {
		attempt, err = s.createAttempt(ctx, assessment, req, userID)
		if err == nil {
			break
		}
		if repositories.IsDuplicateKeyError(err) && tries == 0 {
			continue
		}
		switch {
		case repositories.IsDuplicateKeyError(err), repositories.IsLockTimeoutError(err):
			return nil, ErrLockWaitTimeout
		case errors.Is(err, ErrAttemptLimitExceeded):
			return nil, err
		default:
			return nil, fmt.Errorf("failed to start attempt: %w", err)
		}
	}

	s.logger.Info("Assessment attempt started",
		"attempt_id", attempt.ID,
		"attempt_number", attempt.AttemptNumber,
		"assessment_id", assessment.ID,
		"user_id", userID)

	s.emit(ctx, events.AttemptStarted, &events.AttemptStartedEvent{
		AttemptID:     attempt.ID,
		UserID:        userID,
		AssessmentID:  assessment.ID,
		AttemptNumber: attempt.AttemptNumber,
		StartedAt:     attempt.StartedAt,
	})
	return attempt, nil
}

func (s *attemptService) createAttempt(ctx context.Context, assessment *models.Assessment, req *StartAttemptRequest, userID string) (*models.AssessmentAttempt, error) {
	var attempt *models.AssessmentAttempt
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		count, err := s.repo.Attempt().CountByUserAndAssessmentForUpdate(ctx, tx, userID, assessment.ID)
		if err != nil {
			return err
		}
		if assessment.HasAttemptLimit() && count >= assessment.MaxAttempts {
			return ErrAttemptLimitExceeded
		}

		now := s.clock.Now()
		attempt = &models.AssessmentAttempt{
			AssessmentID:  assessment.ID,
			UserID:        userID,
			AttemptNumber: count + 1,
			StartedAt:     &now,
		}
		if req.IPAddress != "" {
			attempt.IPAddress = &req.IPAddress
		}
		if req.UserAgent != "" {
			attempt.UserAgent = &req.UserAgent
		}
		return s.repo.Attempt().Create(ctx, tx, attempt)
	})
	if err != nil {
		return nil, err
	}
	return attempt, nil
}

func (s *attemptService) GetByID(ctx context.Context, attemptID uint, userID string) (*models.AssessmentAttempt, error) {
	attempt, err := s.repo.Attempt().GetByIDWithAnswers(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	if err := s.requireOwnerOrGrader(ctx, attempt, userID, "view"); err != nil {
		return nil, err
	}
	return attempt, nil
}

func (s *attemptService) ListByUser(ctx context.Context, assessmentID uint, userID string) ([]*models.AssessmentAttempt, error) {
	attempts, err := s.repo.Attempt().ListByUserAndAssessment(ctx, nil, userID, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	return attempts, nil
}

// ===== ANSWER SUBMISSION =====

func (s *attemptService) SubmitAnswer(ctx context.Context, attemptID uint, req *SubmitAnswerRequest, userID string) (*models.AttemptAnswer, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, NewValidationError("request", err.Error())
	}

	var answer *models.AttemptAnswer
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		attempt, err := s.repo.Attempt().GetByIDForUpdate(ctx, tx, attemptID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrAttemptNotFound
			}
			return err
		}
		if attempt.UserID != userID {
			return NewPermissionError(userID, "attempt", "answer", "not owned by user")
		}
		if attempt.IsCompleted {
			return ErrAttemptCompleted
		}

		assessment, err := s.repo.Assessment().GetByID(ctx, tx, attempt.AssessmentID)
		if err != nil {
			return err
		}
		if deadline := attempt.ExpiresAt(assessment); deadline != nil && s.clock.Now().After(*deadline) {
			return ErrAttemptExpired
		}

		question, err := s.repo.Question().GetByIDWithAnswers(ctx, tx, req.QuestionID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrQuestionNotFound
			}
			return err
		}
		if question.AssessmentID != attempt.AssessmentID {
			return ErrQuestionNotInAssessment
		}

		answer, err = s.buildAttemptAnswer(attempt, question, req)
		if err != nil {
			return err
		}
		return s.repo.Attempt().UpsertAnswer(ctx, tx, answer)
	})
	if err != nil {
		if errors.Is(err, ErrAttemptExpired) {
			// Close the expired attempt so later reads see a final state.
			s.timeoutAttempt(ctx, attemptID, userID)
		}
		if repositories.IsLockTimeoutError(err) {
			return nil, ErrLockWaitTimeout
		}
		return nil, err
	}

	s.logger.Debug("Answer submitted",
		"attempt_id", attemptID,
		"question_id", req.QuestionID,
		"auto_graded", answer.IsCorrect != nil)
	return answer, nil
}

func (s *attemptService) buildAttemptAnswer(attempt *models.AssessmentAttempt, question *models.Question, req *SubmitAnswerRequest) (*models.AttemptAnswer, error) {
	answer := &models.AttemptAnswer{
		AttemptID:        attempt.ID,
		QuestionID:       question.ID,
		SelectedAnswerID: req.SelectedAnswerID,
		TextAnswer:       req.TextAnswer,
		AnsweredAt:       s.clock.Now(),
	}

	if len(req.MatchingPairs) > 0 {
		if question.Type != models.Matching {
			return nil, NewValidationError("matching_pairs", "only matching questions accept pairs")
		}
		raw, err := MatchingPairsJSON(req.MatchingPairs)
		if err != nil {
			return nil, fmt.Errorf("failed to encode matching pairs: %w", err)
		}
		answer.MatchingPairs = datatypes.JSON(raw)
	}

	result := GradeQuestion(question, answer)
	answer.IsCorrect = result.IsCorrect
	answer.PointsEarned = result.PointsEarned
	return answer, nil
}

// ===== FINALIZATION =====

func (s *attemptService) Finalize(ctx context.Context, attemptID uint, req *FinalizeAttemptRequest, userID string) (*AttemptResult, error) {
	if req == nil {
		req = &FinalizeAttemptRequest{}
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, NewValidationError("request", err.Error())
	}
	return s.finalize(ctx, attemptID, req, userID, false)
}

// timeoutAttempt closes an attempt whose deadline passed. Best effort: the
// caller already has an error to return.
func (s *attemptService) timeoutAttempt(ctx context.Context, attemptID uint, userID string) {
	_, err := s.finalize(ctx, attemptID, &FinalizeAttemptRequest{}, userID, true)
	if err != nil && !errors.Is(err, ErrAttemptCompleted) {
		s.logger.Error("Failed to time out attempt", "attempt_id", attemptID, "error", err)
	}
}

func (s *attemptService) finalize(ctx context.Context, attemptID uint, req *FinalizeAttemptRequest, userID string, timedOut bool) (*AttemptResult, error) {
	var (
		attempt       *models.AssessmentAttempt
		pendingManual int
	)

	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		attempt, err = s.repo.Attempt().GetByIDForUpdate(ctx, tx, attemptID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrAttemptNotFound
			}
			return err
		}
		if attempt.UserID != userID {
			return NewPermissionError(userID, "attempt", "finalize", "not owned by user")
		}

		// Completed is terminal; a second finalize is a caller bug, not a
		// quiet no-op. The recorded result stays available through Result.
		if attempt.IsCompleted {
			return ErrAttemptCompleted
		}

		pendingManual, err = s.countPendingManual(ctx, tx, attemptID)
		if err != nil {
			return err
		}

		assessment, err := s.repo.Assessment().GetByID(ctx, tx, attempt.AssessmentID)
		if err != nil {
			return err
		}

		score, err := s.repo.Attempt().SumPointsEarned(ctx, tx, attemptID)
		if err != nil {
			return err
		}
		maxScore, err := s.repo.Assessment().GetMaxScore(ctx, tx, attempt.AssessmentID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		endReason := models.AttemptEndReasonCompleted
		if timedOut {
			endReason = models.AttemptEndReasonTimeout
		} else if deadline := attempt.ExpiresAt(assessment); deadline != nil && now.After(*deadline) {
			endReason = models.AttemptEndReasonTimeout
		}

		attempt.Score = score
		attempt.MaxScore = maxScore
		attempt.IsCompleted = true
		attempt.CompletedAt = &now
		attempt.EndReason = &endReason
		attempt.TimeTakenSeconds = s.timeTaken(attempt, req, now)
		attempt.IsPassed = attempt.ScorePercentage() >= float64(assessment.PassingScore)

		return s.repo.Attempt().Update(ctx, tx, attempt)
	})
	if err != nil {
		if repositories.IsLockTimeoutError(err) {
			return nil, ErrLockWaitTimeout
		}
		return nil, err
	}

	s.logger.Info("Assessment attempt finalized",
		"attempt_id", attempt.ID,
		"score", attempt.Score,
		"max_score", attempt.MaxScore,
		"is_passed", attempt.IsPassed,
		"end_reason", attempt.EndReason,
		"pending_manual", pendingManual)

	cache.InvalidateAttemptCache(ctx, s.cache, attempt.ID, attempt.AssessmentID)

	endReason := ""
	if attempt.EndReason != nil {
		endReason = *attempt.EndReason
	}
	s.emit(ctx, events.AttemptFinalized, &events.AttemptFinalizedEvent{
		AttemptID:    attempt.ID,
		UserID:       attempt.UserID,
		AssessmentID: attempt.AssessmentID,
		Score:        attempt.Score,
		MaxScore:     attempt.MaxScore,
		IsPassed:     attempt.IsPassed,
		EndReason:    endReason,
		CompletedAt:  attempt.CompletedAt,
	})

	return &AttemptResult{
		Attempt:         attempt,
		ScorePercentage: attempt.ScorePercentage(),
		PendingManual:   pendingManual,
	}, nil
}

// timeTaken prefers the server-side duration; the client-reported value is
// only honored when no start time was recorded.
func (s *attemptService) timeTaken(attempt *models.AssessmentAttempt, req *FinalizeAttemptRequest, now time.Time) int {
	if attempt.StartedAt != nil {
		taken := int(now.Sub(*attempt.StartedAt).Seconds())
		if taken < 0 {
			taken = 0
		}
		return taken
	}
	if req.TimeTakenSeconds != nil {
		return *req.TimeTakenSeconds
	}
	return 0
}

func (s *attemptService) countPendingManual(ctx context.Context, tx *gorm.DB, attemptID uint) (int, error) {
	answers, err := s.repo.Attempt().ListAnswers(ctx, tx, attemptID)
	if err != nil {
		return 0, err
	}
	pending := 0
	for _, a := range answers {
		if a.IsCorrect == nil && !a.ManuallyGraded {
			pending++
		}
	}
	return pending, nil
}

func (s *attemptService) Result(ctx context.Context, attemptID uint, userID string) (*AttemptResult, error) {
	cacheKey := fmt.Sprintf("result:%d", attemptID)
	var cached AttemptResult
	if err := s.cache.Attempt.Get(ctx, cacheKey, &cached); err == nil && cached.Attempt != nil && cached.Attempt.UserID == userID {
		return &cached, nil
	}

	attempt, err := s.repo.Attempt().GetByID(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	if err := s.requireOwnerOrGrader(ctx, attempt, userID, "view result of"); err != nil {
		return nil, err
	}
	if !attempt.IsCompleted {
		return nil, ErrAttemptInProgress
	}

	pendingManual, err := s.countPendingManual(ctx, nil, attemptID)
	if err != nil {
		return nil, err
	}

	result := &AttemptResult{
		Attempt:         attempt,
		ScorePercentage: attempt.ScorePercentage(),
		PendingManual:   pendingManual,
	}
	if attempt.UserID == userID {
		if err := s.cache.Attempt.Set(ctx, cacheKey, result, cache.ResultTTL); err != nil {
			s.logger.Warn("Failed to cache attempt result", "attempt_id", attemptID, "error", err)
		}
	}
	return result, nil
}

// ===== AVAILABILITY =====

func (s *attemptService) TimeRemaining(ctx context.Context, attemptID uint, userID string) (int, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return 0, ErrAttemptNotFound
		}
		return 0, fmt.Errorf("failed to get attempt: %w", err)
	}
	if err := s.requireOwnerOrGrader(ctx, attempt, userID, "check time on"); err != nil {
		return 0, err
	}
	if attempt.IsCompleted {
		return 0, ErrAttemptCompleted
	}

	assessment, err := s.repo.Assessment().GetByID(ctx, nil, attempt.AssessmentID)
	if err != nil {
		return 0, fmt.Errorf("failed to get assessment: %w", err)
	}
	deadline := attempt.ExpiresAt(assessment)
	if deadline == nil {
		return 0, nil
	}
	remaining := int(deadline.Sub(s.clock.Now()).Seconds())
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

func (s *attemptService) CanStart(ctx context.Context, assessmentID uint, userID string) (bool, error) {
	assessment, err := s.repo.Assessment().GetByID(ctx, nil, assessmentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return false, ErrAssessmentNotFound
		}
		return false, fmt.Errorf("failed to get assessment: %w", err)
	}
	if !assessment.HasAttemptLimit() {
		return true, nil
	}
	count, err := s.repo.Attempt().CountByUserAndAssessment(ctx, nil, userID, assessmentID)
	if err != nil {
		return false, fmt.Errorf("failed to count attempts: %w", err)
	}
	return count < assessment.MaxAttempts, nil
}

func (s *attemptService) AttemptCount(ctx context.Context, assessmentID uint, userID string) (int, error) {
	count, err := s.repo.Attempt().CountByUserAndAssessment(ctx, nil, userID, assessmentID)
	if err != nil {
		return 0, fmt.Errorf("failed to count attempts: %w", err)
	}
	return count, nil
}

// requireOwnerOrGrader lets the attempt owner through directly and anyone
// else only with the instructor or admin role.
func (s *attemptService) requireOwnerOrGrader(ctx context.Context, attempt *models.AssessmentAttempt, userID, action string) error {
	if attempt.UserID == userID {
		return nil
	}
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return NewPermissionError(userID, "attempt", action, "not owned by user")
	}
	if user.Role != models.RoleInstructor && user.Role != models.RoleAdmin {
		return NewPermissionError(userID, "attempt", action, "not owned by user")
	}
	return nil
}

// emit publishes fire-and-forget: delivery failures are logged, never
// surfaced to the caller.
func (s *attemptService) emit(ctx context.Context, eventType string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, eventType, s.clock.Now(), payload); err != nil {
		s.logger.Error("Failed to publish event",
			"event_type", eventType,
			"error", err)
	}
}
