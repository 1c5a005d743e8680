package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/learnforge/assessment-core/internal/export"
	"github.com/learnforge/assessment-core/internal/models"
	"github.com/learnforge/assessment-core/internal/services"
)

// RouterConfig bundles everything the router needs.
type RouterConfig struct {
	Services services.ServiceManager
	Exporter *export.ResultsExporter
	Auth     *CasdoorAuthMiddleware
	Logger   *slog.Logger
}

// SetupRouter builds the gin engine with all routes mounted.
func SetupRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	SetupMiddleware(router, cfg.Logger)

	content := NewContentHandler(cfg.Services.Content(), cfg.Logger)
	attempts := NewAttemptHandler(cfg.Services.Attempt(), cfg.Logger)
	grading := NewGradingHandler(cfg.Services.Grading(), cfg.Exporter, cfg.Logger)

	router.GET("/health", func(c *gin.Context) {
		if err := cfg.Services.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"service":   "assessment-core",
		})
	})

	v1 := router.Group("/api/v1")
	v1.Use(cfg.Auth.AuthMiddleware())
	{
		assessments := v1.Group("/assessments")
		{
			assessments.GET("/:id", content.GetAssessment)
			assessments.GET("/:id/questions", content.ListQuestions)
			assessments.GET("/:id/max-score", content.MaxScore)
			assessments.GET("/:id/attempts", attempts.ListAttempts)
			assessments.GET("/:id/can-start", attempts.CanStartAttempt)

			instructorOnly := assessments.Group("")
			instructorOnly.Use(cfg.Auth.RequireRole(models.RoleInstructor))
			{
				instructorOnly.POST("", content.CreateAssessment)
				instructorOnly.PUT("/:id", content.UpdateAssessment)
				instructorOnly.DELETE("/:id", content.DeleteAssessment)
				instructorOnly.POST("/:id/questions", content.AddQuestion)
				instructorOnly.GET("/:id/stats", grading.Stats)
				instructorOnly.GET("/:id/export", grading.ExportResults)
			}
		}

		v1.GET("/lessons/:lesson_id/assessment", content.GetAssessmentByLesson)

		questions := v1.Group("/questions")
		questions.Use(cfg.Auth.RequireRole(models.RoleInstructor))
		{
			questions.GET("/:id", content.GetQuestion)
			questions.DELETE("/:id", content.DeleteQuestion)
			questions.POST("/:id/answers", content.AddAnswer)
		}
		v1.DELETE("/answers/:id", cfg.Auth.RequireRole(models.RoleInstructor), content.DeleteAnswer)

		attemptRoutes := v1.Group("/attempts")
		{
			attemptRoutes.POST("/start", attempts.StartAttempt)
			attemptRoutes.GET("/:id", attempts.GetAttempt)
			attemptRoutes.POST("/:id/answers", attempts.SubmitAnswer)
			attemptRoutes.POST("/:id/finalize", attempts.FinalizeAttempt)
			attemptRoutes.GET("/:id/result", attempts.GetResult)
			attemptRoutes.GET("/:id/time-remaining", attempts.GetTimeRemaining)

			attemptRoutes.GET("/:id/pending-grades",
				cfg.Auth.RequireRole(models.RoleInstructor), grading.ListPendingManual)
		}

		v1.PUT("/attempt-answers/:id/grade",
			cfg.Auth.RequireRole(models.RoleInstructor), grading.OverrideGrade)
	}

	return router
}
