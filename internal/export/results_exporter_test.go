package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/learnforge/assessment-core/internal/models"
	"github.com/learnforge/assessment-core/internal/repositories"
	"github.com/learnforge/assessment-core/internal/repositories/postgres"
)

type staticUserRepo struct{}

func (staticUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	return &models.User{ID: id, DisplayName: "Student " + id, Role: models.RoleStudent}, nil
}

func newExportTestRepo(t *testing.T) repositories.Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Assessment{},
		&models.Question{},
		&models.Answer{},
		&models.AssessmentAttempt{},
		&models.AttemptAnswer{},
	))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return postgres.NewRepository(db, staticUserRepo{}, logger)
}

func TestExportAssessmentResults(t *testing.T) {
	repo := newExportTestRepo(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	exporter := NewResultsExporter(repo, logger)
	ctx := context.Background()

	assessment := &models.Assessment{LessonID: 1, Title: "Final Quiz", PassingScore: 70}
	require.NoError(t, repo.Assessment().Create(ctx, nil, assessment))

	started := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	completed := started.Add(12 * time.Minute)
	reason := models.AttemptEndReasonCompleted
	for i := 1; i <= 2; i++ {
		attempt := &models.AssessmentAttempt{
			AssessmentID:     assessment.ID,
			UserID:           fmt.Sprintf("user-%d", i),
			AttemptNumber:    1,
			StartedAt:        &started,
			CompletedAt:      &completed,
			TimeTakenSeconds: 720,
			Score:            i * 4,
			MaxScore:         10,
			IsCompleted:      true,
			IsPassed:         i == 2,
			EndReason:        &reason,
		}
		require.NoError(t, repo.Attempt().Create(ctx, nil, attempt))
	}
	// In-progress attempts stay out of the export.
	require.NoError(t, repo.Attempt().Create(ctx, nil, &models.AssessmentAttempt{
		AssessmentID:  assessment.ID,
		UserID:        "user-3",
		AttemptNumber: 1,
		StartedAt:     &started,
	}))

	data, err := exporter.ExportAssessmentResults(ctx, assessment.ID)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Results")
	require.NoError(t, err)
	require.Len(t, rows, 3) // header + two completed attempts

	assert.Equal(t, "Attempt ID", rows[0][0])
	assert.Equal(t, "Student user-1", rows[1][1])
	assert.Equal(t, "4", rows[1][3])
	assert.Equal(t, "8", rows[2][3])
}
