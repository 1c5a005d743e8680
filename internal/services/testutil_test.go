package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/learnforge/assessment-core/internal/cache"
	"github.com/learnforge/assessment-core/internal/events"
	"github.com/learnforge/assessment-core/internal/models"
	"github.com/learnforge/assessment-core/internal/repositories"
	"github.com/learnforge/assessment-core/internal/repositories/postgres"
	"github.com/learnforge/assessment-core/internal/utils"
	"github.com/learnforge/assessment-core/internal/validator"
)

const (
	testStudentID    = "student-1"
	testStudent2ID   = "student-2"
	testInstructorID = "instructor-1"
)

// fakeUserRepo serves a fixed user set without an identity provider.
type fakeUserRepo struct {
	users map[string]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*models.User{
		testStudentID:    {ID: testStudentID, DisplayName: "Student One", Role: models.RoleStudent},
		testStudent2ID:   {ID: testStudent2ID, DisplayName: "Student Two", Role: models.RoleStudent},
		testInstructorID: {ID: testInstructorID, DisplayName: "Instructor", Role: models.RoleInstructor},
	}}
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("user not found with ID %s", id)
	}
	return user, nil
}

// raceRepo wraps the real repository so individual entity repositories can be
// swapped for failure-injecting variants.
type raceRepo struct {
	repositories.Repository
	attempt  repositories.AttemptRepository
	question repositories.QuestionRepository
	answer   repositories.AnswerRepository
}

func (r *raceRepo) Attempt() repositories.AttemptRepository {
	if r.attempt != nil {
		return r.attempt
	}
	return r.Repository.Attempt()
}

func (r *raceRepo) Question() repositories.QuestionRepository {
	if r.question != nil {
		return r.question
	}
	return r.Repository.Question()
}

func (r *raceRepo) Answer() repositories.AnswerRepository {
	if r.answer != nil {
		return r.answer
	}
	return r.Repository.Answer()
}

// dupKeyAttemptRepo fails Create with a duplicate-key error a set number of
// times, the way a lost insert race surfaces, then delegates.
type dupKeyAttemptRepo struct {
	repositories.AttemptRepository
	failures int
}

func (r *dupKeyAttemptRepo) Create(ctx context.Context, tx *gorm.DB, attempt *models.AssessmentAttempt) error {
	if r.failures > 0 {
		r.failures--
		return gorm.ErrDuplicatedKey
	}
	return r.AttemptRepository.Create(ctx, tx, attempt)
}

type dupKeyQuestionRepo struct {
	repositories.QuestionRepository
	failures int
}

func (r *dupKeyQuestionRepo) Create(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	if r.failures > 0 {
		r.failures--
		return gorm.ErrDuplicatedKey
	}
	return r.QuestionRepository.Create(ctx, tx, question)
}

type dupKeyAnswerRepo struct {
	repositories.AnswerRepository
	failures int
}

func (r *dupKeyAnswerRepo) Create(ctx context.Context, tx *gorm.DB, answer *models.Answer) error {
	if r.failures > 0 {
		r.failures--
		return gorm.ErrDuplicatedKey
	}
	return r.AnswerRepository.Create(ctx, tx, answer)
}

// testEnv bundles everything a service test needs.
type testEnv struct {
	db        *gorm.DB
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	cache     *cache.CacheManager
	publisher *events.MemoryPublisher
	clock     *utils.FixedClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	// One connection keeps the in-memory database alive across sessions.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access test database: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.Assessment{},
		&models.Question{},
		&models.Answer{},
		&models.AssessmentAttempt{},
		&models.AttemptAnswer{},
	); err != nil {
		t.Fatalf("failed to migrate test schema: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &testEnv{
		db:        db,
		repo:      postgres.NewRepository(db, newFakeUserRepo(), logger),
		logger:    logger,
		validator: validator.New(),
		cache:     cache.NewCacheManager(nil),
		publisher: events.NewMemoryPublisher(),
		clock:     &utils.FixedClock{Time: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)},
	}
}

func (e *testEnv) contentService() ContentService {
	return NewContentService(e.repo, e.db, e.logger, e.validator, e.cache)
}

func (e *testEnv) attemptService() AttemptService {
	return NewAttemptService(e.repo, e.db, e.logger, e.validator, e.cache, e.publisher, e.clock)
}

func (e *testEnv) gradingService() GradingService {
	return NewGradingService(e.repo, e.db, e.logger, e.validator, e.cache)
}

// seedAssessment creates an assessment directly through the repository.
func (e *testEnv) seedAssessment(t *testing.T, assessment *models.Assessment) *models.Assessment {
	t.Helper()
	if assessment.Title == "" {
		assessment.Title = "Unit Quiz"
	}
	if err := e.repo.Assessment().Create(context.Background(), nil, assessment); err != nil {
		t.Fatalf("failed to seed assessment: %v", err)
	}
	return assessment
}

// seedChoiceQuestion creates a question with one correct and one wrong option
// and returns it with answers loaded.
func (e *testEnv) seedChoiceQuestion(t *testing.T, assessmentID uint, order, points int) *models.Question {
	t.Helper()
	ctx := context.Background()

	q := &models.Question{
		AssessmentID: assessmentID,
		Type:         models.MultipleChoice,
		Points:       points,
		Order:        order,
	}
	q.SetText(fmt.Sprintf("Question %d", order))
	if err := e.repo.Question().Create(ctx, nil, q); err != nil {
		t.Fatalf("failed to seed question: %v", err)
	}

	correct := &models.Answer{QuestionID: q.ID, IsCorrect: true, Order: 1}
	correct.SetText("Right")
	wrong := &models.Answer{QuestionID: q.ID, IsCorrect: false, Order: 2}
	wrong.SetText("Wrong")
	for _, a := range []*models.Answer{correct, wrong} {
		if err := e.repo.Answer().Create(ctx, nil, a); err != nil {
			t.Fatalf("failed to seed answer: %v", err)
		}
	}

	loaded, err := e.repo.Question().GetByIDWithAnswers(ctx, nil, q.ID)
	if err != nil {
		t.Fatalf("failed to reload question: %v", err)
	}
	return loaded
}

func (e *testEnv) correctOption(t *testing.T, q *models.Question) uint {
	t.Helper()
	for _, a := range q.Answers {
		if a.IsCorrect {
			return a.ID
		}
	}
	t.Fatalf("question %d has no correct option", q.ID)
	return 0
}

func (e *testEnv) wrongOption(t *testing.T, q *models.Question) uint {
	t.Helper()
	for _, a := range q.Answers {
		if !a.IsCorrect {
			return a.ID
		}
	}
	t.Fatalf("question %d has no wrong option", q.ID)
	return 0
}
