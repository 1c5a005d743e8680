package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/learnforge/assessment-core/internal/models"
)

// Every method takes an optional tx so services can compose repository calls
// inside one transaction; nil falls back to the repository's own handle.

type AssessmentRepository interface {
	Create(ctx context.Context, tx *gorm.DB, assessment *models.Assessment) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Assessment, error)
	GetByLessonID(ctx context.Context, tx *gorm.DB, lessonID uint) (*models.Assessment, error)
	Update(ctx context.Context, tx *gorm.DB, assessment *models.Assessment) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	// GetMaxScore sums Question.Points with a single aggregate query.
	GetMaxScore(ctx context.Context, tx *gorm.DB, assessmentID uint) (int, error)
}

type QuestionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, question *models.Question) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error)
	GetByIDWithAnswers(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error)
	Update(ctx context.Context, tx *gorm.DB, question *models.Question) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	// ListByAssessment returns questions in order with answers preloaded.
	ListByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uint) ([]*models.Question, error)

	// NextOrder computes max(order)+1 over the sibling questions. It locks the
	// top sibling row FOR UPDATE and must run inside the caller's transaction,
	// but the lock does not guarantee a unique result: concurrent appends can
	// still compute the same value, and the unique (assessment_id, order)
	// index arbitrates. Callers retry the insert on a duplicate-key failure.
	NextOrder(ctx context.Context, tx *gorm.DB, assessmentID uint) (int, error)
}

type AnswerRepository interface {
	Create(ctx context.Context, tx *gorm.DB, answer *models.Answer) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Answer, error)
	Update(ctx context.Context, tx *gorm.DB, answer *models.Answer) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	ListByQuestion(ctx context.Context, tx *gorm.DB, questionID uint) ([]*models.Answer, error)

	// NextOrder is the per-question counterpart of QuestionRepository.NextOrder.
	NextOrder(ctx context.Context, tx *gorm.DB, questionID uint) (int, error)
}

type AttemptRepository interface {
	Create(ctx context.Context, tx *gorm.DB, attempt *models.AssessmentAttempt) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.AssessmentAttempt, error)
	GetByIDWithAnswers(ctx context.Context, tx *gorm.DB, id uint) (*models.AssessmentAttempt, error)
	Update(ctx context.Context, tx *gorm.DB, attempt *models.AssessmentAttempt) error

	// GetByIDForUpdate locks the attempt row; finalization serializes on it.
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.AssessmentAttempt, error)

	// CountByUserAndAssessmentForUpdate locks the user's existing attempt rows
	// for the assessment and returns their count. Concurrent starts for the
	// same (user, assessment) serialize here.
	CountByUserAndAssessmentForUpdate(ctx context.Context, tx *gorm.DB, userID string, assessmentID uint) (int, error)

	// CountByUserAndAssessment is the read-only counterpart, for availability
	// checks that must not take locks.
	CountByUserAndAssessment(ctx context.Context, tx *gorm.DB, userID string, assessmentID uint) (int, error)

	ListByUserAndAssessment(ctx context.Context, tx *gorm.DB, userID string, assessmentID uint) ([]*models.AssessmentAttempt, error)
	ListCompletedByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uint) ([]*models.AssessmentAttempt, error)

	// UpsertAnswer writes the response for (attempt, question), overwriting a
	// prior submission in place via the unique constraint.
	UpsertAnswer(ctx context.Context, tx *gorm.DB, answer *models.AttemptAnswer) error
	GetAnswer(ctx context.Context, tx *gorm.DB, attemptID, questionID uint) (*models.AttemptAnswer, error)
	GetAnswerByID(ctx context.Context, tx *gorm.DB, id uint) (*models.AttemptAnswer, error)
	UpdateAnswer(ctx context.Context, tx *gorm.DB, answer *models.AttemptAnswer) error
	ListAnswers(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.AttemptAnswer, error)

	// SumPointsEarned aggregates the attempt's earned points in the database.
	SumPointsEarned(ctx context.Context, tx *gorm.DB, attemptID uint) (int, error)
}

// UserRepository is the identity collaborator boundary: lookup only, users
// are owned elsewhere.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

type Repository interface {
	Assessment() AssessmentRepository
	Question() QuestionRepository
	Answer() AnswerRepository
	Attempt() AttemptRepository
	User() UserRepository

	WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
	Ping(ctx context.Context) error
	Close() error
}
