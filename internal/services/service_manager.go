package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"gorm.io/gorm"

	"github.com/learnforge/assessment-core/internal/cache"
	"github.com/learnforge/assessment-core/internal/events"
	"github.com/learnforge/assessment-core/internal/repositories"
	"github.com/learnforge/assessment-core/internal/utils"
	"github.com/learnforge/assessment-core/internal/validator"
)

// ServiceManager owns the service instances and their shared dependencies.
type ServiceManager interface {
	Content() ContentService
	Attempt() AttemptService
	Grading() GradingService

	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

type serviceManager struct {
	db        *gorm.DB
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	cache     *cache.CacheManager
	publisher events.Publisher
	clock     utils.Clock

	content ContentService
	attempt AttemptService
	grading GradingService

	shutdown bool
	mu       sync.RWMutex
}

func NewServiceManager(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, v *validator.Validator, cm *cache.CacheManager, publisher events.Publisher, clock utils.Clock) ServiceManager {
	if clock == nil {
		clock = utils.NewClock()
	}
	m := &serviceManager{
		db:        db,
		repo:      repo,
		logger:    logger,
		validator: v,
		cache:     cm,
		publisher: publisher,
		clock:     clock,
	}
	m.content = NewContentService(repo, db, logger, v, cm)
	m.attempt = NewAttemptService(repo, db, logger, v, cm, publisher, clock)
	m.grading = NewGradingService(repo, db, logger, v, cm)
	return m
}

func (m *serviceManager) Content() ContentService { return m.content }
func (m *serviceManager) Attempt() AttemptService { return m.attempt }
func (m *serviceManager) Grading() GradingService { return m.grading }

func (m *serviceManager) HealthCheck(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.shutdown {
		return fmt.Errorf("service manager is shut down")
	}
	if err := m.repo.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

func (m *serviceManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shutdown {
		return nil
	}
	m.shutdown = true

	if m.publisher != nil {
		if err := m.publisher.Close(); err != nil {
			m.logger.Error("Failed to close event publisher", "error", err)
		}
	}
	m.logger.Info("Service manager shut down")
	return nil
}
