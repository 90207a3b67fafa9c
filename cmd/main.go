package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cms0/docs/swagger"
	"cms0/internal/api"
	"cms0/internal/authz"
	"cms0/internal/config"
	"cms0/internal/db"
	"cms0/internal/events"
	"cms0/internal/handlers"
	"cms0/internal/metrics"
	"cms0/internal/models"
	"cms0/internal/services"
	"cms0/internal/tasks"
	"cms0/internal/tasks/rate"
	"cms0/internal/utils/logger"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// @title cms0 Admin API
// @version 1.0
// @description Multi-affiliate content administration API
// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	logger := logger.New("cms0")

	if _, err := os.Stat(".env"); os.IsNotExist(err) {
		logger.Info("No .env file found, skipping environment variable loading")
	} else {
		logger.Info("Loading environment variables from .env file")
		if err := godotenv.Load(); err != nil {
			log.Fatalf("Failed to load environment variables: %v", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := db.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()
	dbInstance := db.GetDB()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	m := metrics.New()

	opts := api.Options{
		Redis:   redisClient,
		Metrics: m,
		Limiter: rate.NewLimiter(redisClient, rate.Config{
			Name:   "login",
			Window: cfg.Server.LoginWindow,
			Max:    cfg.Server.LoginAttempts,
		}),
	}

	if cfg.Storage.S3.Enabled() {
		initCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		s3Service, err := services.NewS3Service(initCtx, cfg.Storage)
		cancel()
		if err != nil {
			log.Fatalf("Failed to initialize S3 service: %v", err)
		}
		models.RegisterFileURLGenerator(s3Service)
		opts.Storage = handlers.StorageHandler(s3Service)
	}

	taskClient := tasks.NewTaskClient(cfg.Redis)
	defer taskClient.Close()
	opts.Tasks = taskClient

	// The worker shares the Redis permission cache with the API, so its own checker
	// invalidates entries the API filled.
	checker := authz.NewChecker(services.NewGormRBACRepository(dbInstance), redisClient, cfg.Cache.PermissionTTL, m)
	taskHandler := tasks.NewTaskHandler(services.NewGormUserRepository(dbInstance), checker, m)

	taskServer := tasks.NewServer(cfg, taskHandler, logger)
	if err := taskServer.Start(); err != nil {
		log.Fatalf("Failed to start task server: %v", err)
	}

	// Sessions that expired while the service was down are purged right away.
	if err := taskClient.EnqueuePurgeSessions(context.Background()); err != nil {
		logger.Warn("Failed to enqueue session purge: %v", err)
	}

	taskScheduler := tasks.NewScheduler(cfg, logger)
	if err := taskScheduler.Start(); err != nil {
		log.Fatalf("Failed to start task scheduler: %v", err)
	}

	apiServer, err := api.NewServer(cfg, dbInstance, opts)
	if err != nil {
		log.Fatalf("Failed to initialize API server: %v", err)
	}

	swagger.SwaggerInfo.Title = "cms0 Admin API"
	swagger.SwaggerInfo.Description = "Multi-affiliate content administration API"
	swagger.SwaggerInfo.Version = "1.0"
	swagger.SwaggerInfo.Host = fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	go func() {
		logger.Success("API server listening on %s", swagger.SwaggerInfo.Host)
		if err := apiServer.Start(); err != nil {
			logger.Info("API server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown API server", err)
	}
	taskScheduler.Stop()
	taskServer.Shutdown()
	events.Wait()

	logger.Info("Servers shutdown gracefully")
}
