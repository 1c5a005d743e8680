package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/learnforge/assessment-core/internal/models"
)

type AnswerRepository struct {
	db *gorm.DB
}

func (r *AnswerRepository) Create(ctx context.Context, tx *gorm.DB, answer *models.Answer) error {
	return getDB(ctx, tx, r.db).Create(answer).Error
}

func (r *AnswerRepository) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Answer, error) {
	var answer models.Answer
	err := getDB(ctx, tx, r.db).First(&answer, id).Error
	if err != nil {
		return nil, err
	}
	return &answer, nil
}

func (r *AnswerRepository) Update(ctx context.Context, tx *gorm.DB, answer *models.Answer) error {
	return getDB(ctx, tx, r.db).Save(answer).Error
}

func (r *AnswerRepository) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	return getDB(ctx, tx, r.db).Delete(&models.Answer{}, id).Error
}

func (r *AnswerRepository) ListByQuestion(ctx context.Context, tx *gorm.DB, questionID uint) ([]*models.Answer, error) {
	var answers []*models.Answer
	err := getDB(ctx, tx, r.db).
		Where("question_id = ?", questionID).
		Order(`"order" ASC`).
		Find(&answers).Error
	if err != nil {
		return nil, err
	}
	return answers, nil
}

// NextOrder is the per-question sibling of QuestionRepository.NextOrder with
// the same locking behavior and the same caveat: the unique index, not the
// lock, is what guarantees uniqueness, so callers retry on duplicate key.
func (r *AnswerRepository) NextOrder(ctx context.Context, tx *gorm.DB, questionID uint) (int, error) {
	var top models.Answer
	err := forUpdate(getDB(ctx, tx, r.db)).
		Where("question_id = ?", questionID).
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
