package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/learnforge/assessment-core/internal/models"
)

type AssessmentRepository struct {
	db *gorm.DB
}

func (r *AssessmentRepository) Create(ctx context.Context, tx *gorm.DB, assessment *models.Assessment) error {
	return getDB(ctx, tx, r.db).Create(assessment).Error
}

func (r *AssessmentRepository) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Assessment, error) {
	var assessment models.Assessment
	err := getDB(ctx, tx, r.db).First(&assessment, id).Error
	if err != nil {
		return nil, err
	}
	return &assessment, nil
}

func (r *AssessmentRepository) GetByLessonID(ctx context.Context, tx *gorm.DB, lessonID uint) (*models.Assessment, error) {
	var assessment models.Assessment
	err := getDB(ctx, tx, r.db).Where("lesson_id = ?", lessonID).First(&assessment).Error
	if err != nil {
		return nil, err
	}
	return &assessment, nil
}

func (r *AssessmentRepository) Update(ctx context.Context, tx *gorm.DB, assessment *models.Assessment) error {
	return getDB(ctx, tx, r.db).Save(assessment).Error
}

func (r *AssessmentRepository) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	return getDB(ctx, tx, r.db).Delete(&models.Assessment{}, id).Error
}

func (r *AssessmentRepository) GetMaxScore(ctx context.Context, tx *gorm.DB, assessmentID uint) (int, error) {
	var total int
	err := getDB(ctx, tx, r.db).
		Model(&models.Question{}).
		Where("assessment_id = ?", assessmentID).
		Select("COALESCE(SUM(points), 0)").
		Scan(&total).Error
	return total, err
}
