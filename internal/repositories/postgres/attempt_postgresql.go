package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/learnforge/assessment-core/internal/models"
)

type AttemptRepository struct {
	db *gorm.DB
}

func (r *AttemptRepository) Create(ctx context.Context, tx *gorm.DB, attempt *models.AssessmentAttempt) error {
	return getDB(ctx, tx, r.db).Create(attempt).Error
}

func (r *AttemptRepository) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.AssessmentAttempt, error) {
	var attempt models.AssessmentAttempt
	err := getDB(ctx, tx, r.db).First(&attempt, id).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *AttemptRepository) GetByIDWithAnswers(ctx context.Context, tx *gorm.DB, id uint) (*models.AssessmentAttempt, error) {
	var attempt models.AssessmentAttempt
	err := getDB(ctx, tx, r.db).
		Preload("Answers").
		Preload("Assessment").
		First(&attempt, id).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *AttemptRepository) Update(ctx context.Context, tx *gorm.DB, attempt *models.AssessmentAttempt) error {
	return getDB(ctx, tx, r.db).Save(attempt).Error
}

func (r *AttemptRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.AssessmentAttempt, error) {
	var attempt models.AssessmentAttempt
	err := forUpdate(getDB(ctx, tx, r.db)).First(&attempt, id).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// CountByUserAndAssessmentForUpdate locks the user's attempt rows before
// counting them. Two concurrent starts both reach here; the second waits on
// the first's lock and then sees its row, so attempt numbers stay sequential
// and the cap is enforced. An empty set locks nothing, which the unique index
// on (assessment_id, user_id, attempt_number) covers.
func (r *AttemptRepository) CountByUserAndAssessmentForUpdate(ctx context.Context, tx *gorm.DB, userID string, assessmentID uint) (int, error) {
	var attempts []models.AssessmentAttempt
	err := forUpdate(getDB(ctx, tx, r.db)).
		Where("user_id = ? AND assessment_id = ?", userID, assessmentID).
		Find(&attempts).Error
	if err != nil {
		return 0, err
	}
	return len(attempts), nil
}

func (r *AttemptRepository) CountByUserAndAssessment(ctx context.Context, tx *gorm.DB, userID string, assessmentID uint) (int, error) {
	var count int64
	err := getDB(ctx, tx, r.db).
		Model(&models.AssessmentAttempt{}).
		Where("user_id = ? AND assessment_id = ?", userID, assessmentID).
		Count(&count).Error
	return int(count), err
}

func (r *AttemptRepository) ListByUserAndAssessment(ctx context.Context, tx *gorm.DB, userID string, assessmentID uint) ([]*models.AssessmentAttempt, error) {
	var attempts []*models.AssessmentAttempt
	err := getDB(ctx, tx, r.db).
		Where("user_id = ? AND assessment_id = ?", userID, assessmentID).
		Order("attempt_number ASC").
		Find(&attempts).Error
	if err != nil {
		return nil, err
	}
	return attempts, nil
}

func (r *AttemptRepository) ListCompletedByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uint) ([]*models.AssessmentAttempt, error) {
	var attempts []*models.AssessmentAttempt
	err := getDB(ctx, tx, r.db).
		Where("assessment_id = ? AND is_completed = ?", assessmentID, true).
		Order("user_id ASC, attempt_number ASC").
		Find(&attempts).Error
	if err != nil {
		return nil, err
	}
	return attempts, nil
}

// UpsertAnswer inserts the response or, when the (attempt_id, question_id)
// row already exists, overwrites the response fields and grading in place.
func (r *AttemptRepository) UpsertAnswer(ctx context.Context, tx *gorm.DB, answer *models.AttemptAnswer) error {
	return getDB(ctx, tx, r.db).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"selected_answer_id", "text_answer", "matching_pairs",
				"is_correct", "points_earned", "feedback", "manually_graded",
				"answered_at", "updated_at",
			}),
		}).
		Create(answer).Error
}

func (r *AttemptRepository) GetAnswer(ctx context.Context, tx *gorm.DB, attemptID, questionID uint) (*models.AttemptAnswer, error) {
	var answer models.AttemptAnswer
	err := getDB(ctx, tx, r.db).
		Where("attempt_id = ? AND question_id = ?", attemptID, questionID).
		First(&answer).Error
	if err != nil {
		return nil, err
	}
	return &answer, nil
}

func (r *AttemptRepository) GetAnswerByID(ctx context.Context, tx *gorm.DB, id uint) (*models.AttemptAnswer, error) {
	var answer models.AttemptAnswer
	err := getDB(ctx, tx, r.db).First(&answer, id).Error
	if err != nil {
		return nil, err
	}
	return &answer, nil
}

func (r *AttemptRepository) UpdateAnswer(ctx context.Context, tx *gorm.DB, answer *models.AttemptAnswer) error {
	return getDB(ctx, tx, r.db).Save(answer).Error
}

func (r *AttemptRepository) ListAnswers(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.AttemptAnswer, error) {
	var answers []*models.AttemptAnswer
	err := getDB(ctx, tx, r.db).
		Where("attempt_id = ?", attemptID).
		Order("question_id ASC").
		Find(&answers).Error
	if err != nil {
		return nil, err
	}
	return answers, nil
}

func (r *AttemptRepository) SumPointsEarned(ctx context.Context, tx *gorm.DB, attemptID uint) (int, error) {
	var total int
	err := getDB(ctx, tx, r.db).
		Model(&models.AttemptAnswer{}).
		Where("attempt_id = ?", attemptID).
		Select("COALESCE(SUM(points_earned), 0)").
		Scan(&total).Error
	return total, err
}
