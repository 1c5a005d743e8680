package postgres

import (
	"context"
	"log/slog"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/learnforge/assessment-core/internal/repositories"
)

// Repository bundles the per-entity repositories over one gorm handle.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger

	assessment *AssessmentRepository
	question   *QuestionRepository
	answer     *AnswerRepository
	attempt    *AttemptRepository
	user       repositories.UserRepository
}

// NewRepository wires the postgres-backed repositories. The user repository is
// injected because identity lives in an external system.
func NewRepository(db *gorm.DB, user repositories.UserRepository, logger *slog.Logger) *Repository {
	return &Repository{
		db:         db,
		logger:     logger,
		assessment: &AssessmentRepository{db: db},
		question:   &QuestionRepository{db: db},
		answer:     &AnswerRepository{db: db},
		attempt:    &AttemptRepository{db: db},
		user:       user,
	}
}

func (r *Repository) Assessment() repositories.AssessmentRepository { return r.assessment }
func (r *Repository) Question() repositories.QuestionRepository     { return r.question }
func (r *Repository) Answer() repositories.AnswerRepository         { return r.answer }
func (r *Repository) Attempt() repositories.AttemptRepository       { return r.attempt }
func (r *Repository) User() repositories.UserRepository             { return r.user }

// WithTransaction runs fn inside one database transaction; fn returning an
// error rolls everything back.
func (r *Repository) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// getDB resolves the handle a repository method should use: the caller's
// transaction when one is passed, the shared handle otherwise.
func getDB(ctx context.Context, tx, db *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

// forUpdate applies SELECT ... FOR UPDATE on dialects that support it. The
// sqlite databases used in tests serialize writers on their own, so the
// clause is skipped there rather than failing to parse.
func forUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "postgres" {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}
