package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/learnforge/assessment-core/internal/cache"
	"github.com/learnforge/assessment-core/internal/config"
	"github.com/learnforge/assessment-core/internal/export"
	"github.com/learnforge/assessment-core/internal/handlers"
	"github.com/learnforge/assessment-core/internal/repositories/casdoor"
	"github.com/learnforge/assessment-core/internal/repositories/postgres"
	"github.com/learnforge/assessment-core/internal/services"
	"github.com/learnforge/assessment-core/internal/validator"
	"github.com/learnforge/assessment-core/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = pkg.NewRedisClient(cfg)
		if err != nil {
			logger.Warn("Failed to initialize Redis, continuing without cache", "error", err)
		}
	}

	publisher, err := pkg.NewEventPublisher(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize event publisher: %v", err)
	}

	casdoorCfg := casdoor.Config{
		Endpoint:         cfg.Casdoor.Endpoint,
		ClientID:         cfg.Casdoor.ClientID,
		ClientSecret:     cfg.Casdoor.ClientSecret,
		Certificate:      cfg.Casdoor.Cert,
		OrganizationName: cfg.Casdoor.Organization,
		ApplicationName:  cfg.Casdoor.Application,
	}
	userRepo := casdoor.NewUserCasdoor(casdoorCfg, redisClient)
	repo := postgres.NewRepository(db, userRepo, logger)

	v := validator.New()
	cacheManager := cache.NewCacheManager(redisClient)
	serviceManager := services.NewServiceManager(db, repo, logger, v, cacheManager, publisher, nil)
	exporter := export.NewResultsExporter(repo, logger)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handlers.SetupRouter(handlers.RouterConfig{
		Services: serviceManager,
		Exporter: exporter,
		Auth:     handlers.NewCasdoorAuthMiddleware(casdoorCfg, userRepo),
		Logger:   logger,
	})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	if err := serviceManager.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown services", "error", err)
	}
	if err := repo.Close(); err != nil {
		logger.Error("Failed to close database", "error", err)
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}

	logger.Info("Server exited")
}
