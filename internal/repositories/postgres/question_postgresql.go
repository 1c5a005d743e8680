package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/learnforge/assessment-core/internal/models"
)

type QuestionRepository struct {
	db *gorm.DB
}

func (r *QuestionRepository) Create(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	return getDB(ctx, tx, r.db).Create(question).Error
}

func (r *QuestionRepository) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	var question models.Question
	err := getDB(ctx, tx, r.db).First(&question, id).Error
	if err != nil {
		return nil, err
	}
	return &question, nil
}

func (r *QuestionRepository) GetByIDWithAnswers(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	var question models.Question
	err := getDB(ctx, tx, r.db).
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order(`"order" ASC`)
		}).
		First(&question, id).Error
	if err != nil {
		return nil, err
	}
	return &question, nil
}

func (r *QuestionRepository) Update(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	return getDB(ctx, tx, r.db).Save(question).Error
}

func (r *QuestionRepository) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	return getDB(ctx, tx, r.db).Delete(&models.Question{}, id).Error
}

func (r *QuestionRepository) ListByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uint) ([]*models.Question, error) {
	var questions []*models.Question
	err := getDB(ctx, tx, r.db).
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order(`"order" ASC`)
		}).
		Where("assessment_id = ?", assessmentID).
		Order(`"order" ASC`).
		Find(&questions).Error
	if err != nil {
		return nil, err
	}
	return questions, nil
}

// NextOrder returns max(order)+1 among the assessment's questions, locking
// the current top row FOR UPDATE. The lock alone does not make the result
// unique: a sibling committed after this statement's snapshot was taken stays
// invisible under READ COMMITTED, and when no questions exist there is no row
// to lock at all. The unique index on (assessment_id, order) arbitrates;
// callers must treat a duplicate-key failure of the subsequent insert as a
// retryable collision.
func (r *QuestionRepository) NextOrder(ctx context.Context, tx *gorm.DB, assessmentID uint) (int, error) {
	var top models.Question
	err := forUpdate(getDB(ctx, tx, r.db)).
		Where("assessment_id = ?", assessmentID).
		Order(`"order" DESC`).
		First(&top).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return top.Order + 1, nil
}
