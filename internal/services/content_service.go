package services

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"gorm.io/gorm"

	"github.com/learnforge/assessment-core/internal/cache"
	"github.com/learnforge/assessment-core/internal/models"
	"github.com/learnforge/assessment-core/internal/repositories"
	"github.com/learnforge/assessment-core/internal/validator"
)

type contentService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	cache     *cache.CacheManager
}

func NewContentService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, v *validator.Validator, cm *cache.CacheManager) ContentService {
	return &contentService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: v,
		cache:     cm,
	}
}

// requireContentEditor rejects actors below instructor.
func (s *contentService) requireContentEditor(ctx context.Context, actorID, resource, action string) error {
	user, err := s.repo.User().GetByID(ctx, actorID)
	if err != nil {
		return fmt.Errorf("failed to resolve actor: %w", err)
	}
	if user.Role != models.RoleInstructor && user.Role != models.RoleAdmin {
		return NewPermissionError(actorID, resource, action, "requires instructor role")
	}
	return nil
}

// ===== ASSESSMENTS =====

func (s *contentService) CreateAssessment(ctx context.Context, req *AssessmentCreateRequest, actorID string) (*models.Assessment, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, NewValidationError("request", err.Error())
	}
	if err := s.requireContentEditor(ctx, actorID, "assessment", "create"); err != nil {
		return nil, err
	}

	assessment := &models.Assessment{
		LessonID:           req.LessonID,
		Title:              req.Title,
		PassingScore:       req.PassingScore,
		MaxAttempts:        req.MaxAttempts,
		TimeLimit:          req.TimeLimit,
		RandomizeQuestions: req.RandomizeQuestions,
		ShowCorrectAnswers: req.ShowCorrectAnswers,
		ShowResults:        req.ShowResults,
	}

	if err := s.repo.Assessment().Create(ctx, nil, assessment); err != nil {
		if repositories.IsDuplicateKeyError(err) {
			return nil, ErrLessonAlreadyHasAssessment
		}
		return nil, fmt.Errorf("failed to create assessment: %w", err)
	}

	s.logger.Info("Assessment created",
		"assessment_id", assessment.ID,
		"lesson_id", assessment.LessonID,
		"actor_id", actorID)
	return assessment, nil
}

func (s *contentService) GetAssessment(ctx context.Context, id uint) (*models.Assessment, error) {
	cacheKey := fmt.Sprintf("id:%d", id)
	var cached models.Assessment
	if err := s.cache.Assessment.Get(ctx, cacheKey, &cached); err == nil {
		return &cached, nil
	}

	assessment, err := s.repo.Assessment().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}

	if err := s.cache.Assessment.Set(ctx, cacheKey, assessment, cache.AssessmentTTL); err != nil {
		s.logger.Warn("Failed to cache assessment", "assessment_id", id, "error", err)
	}
	return assessment, nil
}

func (s *contentService) GetAssessmentByLesson(ctx context.Context, lessonID uint) (*models.Assessment, error) {
	assessment, err := s.repo.Assessment().GetByLessonID(ctx, nil, lessonID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to get assessment by lesson: %w", err)
	}
	return assessment, nil
}

func (s *contentService) UpdateAssessment(ctx context.Context, id uint, req *AssessmentUpdateRequest, actorID string) (*models.Assessment, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, NewValidationError("request", err.Error())
	}
	if err := s.requireContentEditor(ctx, actorID, "assessment", "update"); err != nil {
		return nil, err
	}

	assessment, err := s.repo.Assessment().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}

	if req.Title != nil {
		assessment.Title = *req.Title
	}
	if req.PassingScore != nil {
		assessment.PassingScore = *req.PassingScore
	}
	if req.MaxAttempts != nil {
		assessment.MaxAttempts = *req.MaxAttempts
	}
	if req.TimeLimit != nil {
		assessment.TimeLimit = *req.TimeLimit
	}
	if req.RandomizeQuestions != nil {
		assessment.RandomizeQuestions = *req.RandomizeQuestions
	}
	if req.ShowCorrectAnswers != nil {
		assessment.ShowCorrectAnswers = *req.ShowCorrectAnswers
	}
	if req.ShowResults != nil {
		assessment.ShowResults = *req.ShowResults
	}

	if err := s.repo.Assessment().Update(ctx, nil, assessment); err != nil {
		return nil, fmt.Errorf("failed to update assessment: %w", err)
	}

	cache.InvalidateAssessmentCache(ctx, s.cache, id)
	s.logger.Info("Assessment updated", "assessment_id", id, "actor_id", actorID)
	return assessment, nil
}

func (s *contentService) DeleteAssessment(ctx context.Context, id uint, actorID string) error {
	if err := s.requireContentEditor(ctx, actorID, "assessment", "delete"); err != nil {
		return err
	}

	if _, err := s.repo.Assessment().GetByID(ctx, nil, id); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrAssessmentNotFound
		}
		return fmt.Errorf("failed to get assessment: %w", err)
	}

	if err := s.repo.Assessment().Delete(ctx, nil, id); err != nil {
		return fmt.Errorf("failed to delete assessment: %w", err)
	}

	cache.InvalidateAssessmentCache(ctx, s.cache, id)
	s.logger.Info("Assessment deleted", "assessment_id", id, "actor_id", actorID)
	return nil
}

// ===== QUESTIONS =====

func (s *contentService) AddQuestion(ctx context.Context, assessmentID uint, req *QuestionCreateRequest, actorID string) (*models.Question, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, NewValidationError("request", err.Error())
	}
	text := req.ResolveText()
	if text == "" {
		return nil, NewValidationError("question_text", "question body is required")
	}
	if err := s.requireContentEditor(ctx, actorID, "question", "create"); err != nil {
		return nil, err
	}

	if _, err := s.repo.Assessment().GetByID(ctx, nil, assessmentID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}

	// Two concurrent appends can compute the same next order: the top-row
	// lock does not cover a sibling committed after this statement's snapshot
	// was taken. The unique (assessment_id, order) index rejects the loser,
	// which gets one clean retry with a fresh order.
	autoOrder := req.Order == nil
	var question *models.Question
	for tries := 0; ; tries++ {
		question = &models.Question{
			AssessmentID: assessmentID,
			Type:         req.Type,
			Points:       req.Points,
			Explanation:  req.Explanation,
		}
		question.SetText(text)
		if !autoOrder {
			question.Order = *req.Order
		}

		err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
			if autoOrder {
				next, err := s.repo.Question().NextOrder(ctx, tx, assessmentID)
				if err != nil {
					return fmt.Errorf("failed to assign question order: %w", err)
				}
				question.Order = next
			}

			if err := s.repo.Question().Create(ctx, tx, question); err != nil {
				return err
			}

			for i := range req.Answers {
				answer, err := buildAnswer(&req.Answers[i], question.ID, i+1)
				if err != nil {
					return err
				}
				if err := s.repo.Answer().Create(ctx, tx, answer); err != nil {
					return err
				}
				question.Answers = append(question.Answers, *answer)
			}
			return nil
		})
		if err == nil {
			break
		}
		if autoOrder && repositories.IsDuplicateKeyError(err) {
			if tries == 0 {
				continue
			}
			return nil, ErrLockWaitTimeout
		}
		return nil, translateOrderErr(err, "question")
	}

	cache.InvalidateQuestionCache(ctx, s.cache, question.ID, assessmentID)
	s.logger.Info("Question added",
		"question_id", question.ID,
		"assessment_id", assessmentID,
		"order", question.Order,
		"type", question.Type)
	return question, nil
}

func buildAnswer(req *AnswerCreateRequest, questionID uint, fallbackOrder int) (*models.Answer, error) {
	text := req.ResolveText()
	if text == "" {
		return nil, NewValidationError("answer_text", "answer body is required")
	}

	answer := &models.Answer{
		QuestionID:  questionID,
		IsCorrect:   req.IsCorrect,
		Explanation: req.Explanation,
		Order:       fallbackOrder,
	}
	if req.Order != nil {
		answer.Order = *req.Order
	}
	answer.SetText(text)
	return answer, nil
}

// translateOrderErr maps storage errors from order assignment into the
// domain taxonomy.
func translateOrderErr(err error, resource string) error {
	switch {
	case err == nil:
		return nil
	case IsValidationError(err):
		return err
	case repositories.IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %w", resource, ErrDuplicateOrder)
	case repositories.IsLockTimeoutError(err):
		return ErrLockWaitTimeout
	default:
		return fmt.Errorf("failed to create %s: %w", resource, err)
	}
}

func (s *contentService) GetQuestion(ctx context.Context, id uint) (*models.Question, error) {
	question, err := s.repo.Question().GetByIDWithAnswers(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	return question, nil
}

func (s *contentService) ListQuestions(ctx context.Context, assessmentID uint) ([]*models.Question, error) {
	assessment, err := s.GetAssessment(ctx, assessmentID)
	if err != nil {
		return nil, err
	}

	questions, err := s.listQuestionsOrdered(ctx, assessmentID)
	if err != nil {
		return nil, err
	}

	if assessment.RandomizeQuestions {
		// Shuffle a copy; the cache keeps the canonical order.
		shuffled := make([]*models.Question, len(questions))
		copy(shuffled, questions)
		rand.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		return shuffled, nil
	}
	return questions, nil
}

func (s *contentService) listQuestionsOrdered(ctx context.Context, assessmentID uint) ([]*models.Question, error) {
	cacheKey := fmt.Sprintf("assessment:%d:list", assessmentID)
	var cached []*models.Question
	if err := s.cache.Question.Get(ctx, cacheKey, &cached); err == nil {
		return cached, nil
	}

	questions, err := s.repo.Question().ListByAssessment(ctx, nil, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}

	if err := s.cache.Question.Set(ctx, cacheKey, questions, cache.QuestionTTL); err != nil {
		s.logger.Warn("Failed to cache question list", "assessment_id", assessmentID, "error", err)
	}
	return questions, nil
}

func (s *contentService) DeleteQuestion(ctx context.Context, id uint, actorID string) error {
	if err := s.requireContentEditor(ctx, actorID, "question", "delete"); err != nil {
		return err
	}

	question, err := s.repo.Question().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuestionNotFound
		}
		return fmt.Errorf("failed to get question: %w", err)
	}

	if err := s.repo.Question().Delete(ctx, nil, id); err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}

	cache.InvalidateQuestionCache(ctx, s.cache, id, question.AssessmentID)
	s.logger.Info("Question deleted", "question_id", id, "actor_id", actorID)
	return nil
}

// ===== ANSWERS =====

func (s *contentService) AddAnswer(ctx context.Context, questionID uint, req *AnswerCreateRequest, actorID string) (*models.Answer, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, NewValidationError("request", err.Error())
	}
	if err := s.requireContentEditor(ctx, actorID, "answer", "create"); err != nil {
		return nil, err
	}

	question, err := s.repo.Question().GetByID(ctx, nil, questionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}

	text := req.ResolveText()
	if text == "" {
		return nil, NewValidationError("answer_text", "answer body is required")
	}

	// Same append race as AddQuestion: an auto-assigned order can collide
	// with a concurrently committed sibling, so the loser retries once.
	autoOrder := req.Order == nil
	var answer *models.Answer
	for tries := 0; ; tries++ {
		answer = &models.Answer{
			QuestionID:  questionID,
			IsCorrect:   req.IsCorrect,
			Explanation: req.Explanation,
		}
		answer.SetText(text)
		if !autoOrder {
			answer.Order = *req.Order
		}

		err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
			if autoOrder {
				next, err := s.repo.Answer().NextOrder(ctx, tx, questionID)
				if err != nil {
					return fmt.Errorf("failed to assign answer order: %w", err)
				}
				answer.Order = next
			}
			return s.repo.Answer().Create(ctx, tx, answer)
		})
		if err == nil {
			break
		}
		if autoOrder && repositories.IsDuplicateKeyError(err) {
			if tries == 0 {
				continue
			}
			return nil, ErrLockWaitTimeout
		}
		return nil, translateOrderErr(err, "answer")
	}

	cache.InvalidateQuestionCache(ctx, s.cache, questionID, question.AssessmentID)
	s.logger.Info("Answer added",
		"answer_id", answer.ID,
		"question_id", questionID,
		"order", answer.Order)
	return answer, nil
}

func (s *contentService) DeleteAnswer(ctx context.Context, id uint, actorID string) error {
	if err := s.requireContentEditor(ctx, actorID, "answer", "delete"); err != nil {
		return err
	}

	answer, err := s.repo.Answer().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrAnswerNotFound
		}
		return fmt.Errorf("failed to get answer: %w", err)
	}

	question, err := s.repo.Question().GetByID(ctx, nil, answer.QuestionID)
	if err != nil {
		return fmt.Errorf("failed to get question: %w", err)
	}

	if err := s.repo.Answer().Delete(ctx, nil, id); err != nil {
		return fmt.Errorf("failed to delete answer: %w", err)
	}

	cache.InvalidateQuestionCache(ctx, s.cache, question.ID, question.AssessmentID)
	return nil
}

func (s *contentService) MaxScore(ctx context.Context, assessmentID uint) (int, error) {
	cacheKey := fmt.Sprintf("max_score:%d", assessmentID)
	var cached int
	if err := s.cache.Assessment.Get(ctx, cacheKey, &cached); err == nil {
		return cached, nil
	}

	total, err := s.repo.Assessment().GetMaxScore(ctx, nil, assessmentID)
	if err != nil {
		return 0, fmt.Errorf("failed to compute max score: %w", err)
	}

	if err := s.cache.Assessment.Set(ctx, cacheKey, total, cache.AssessmentTTL); err != nil {
		s.logger.Warn("Failed to cache max score", "assessment_id", assessmentID, "error", err)
	}
	return total, nil
}
