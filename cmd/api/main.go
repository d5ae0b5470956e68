package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"starscreen/screening/internal/config"
	"starscreen/screening/internal/handlers"
	"starscreen/screening/internal/logger"
	"starscreen/screening/internal/queue"
	"starscreen/screening/internal/repositories"
	"starscreen/screening/internal/services"
	"starscreen/screening/internal/worker"
)

func main() {
	cfg := config.Load()

	zlog, err := logger.New(cfg.Server.Env)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	db, err := config.InitDatabase(cfg)
	if err != nil {
		zlog.Fatal("failed to initialize database", zap.Error(err))
	}
	zlog.Info("database initialized")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		zlog.Fatal("failed to connect to redis", zap.Error(err))
	}
	taskQueue := queue.NewRedisQueue(redisClient, cfg.Worker.LeaseTTL)
	zlog.Info("task queue initialized", zap.String("addr", cfg.Redis.Addr))

	jobRepo := repositories.NewJobRepository(db)
	candidateRepo := repositories.NewCandidateRepository(db)
	evaluationRepo := repositories.NewEvaluationRepository(db)
	subscriptionRepo := repositories.NewSubscriptionRepository(db)
	postingRepo := repositories.NewPostingRepository(db)

	store, err := services.NewLocalArtifactStore(cfg.Storage.UploadPath)
	if err != nil {
		zlog.Fatal("failed to initialize artifact store", zap.Error(err))
	}

	inference, err := services.NewGeminiClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, zlog)
	if err != nil {
		zlog.Fatal("failed to initialize gemini client", zap.Error(err))
	}
	zlog.Info("gemini client initialized", zap.String("model", cfg.Gemini.Model))

	extractor := services.NewDocumentExtractor(store, zlog)
	scorer := services.NewScoringService(inference, zlog)
	configGen := services.NewConfigGenerator(
		inference,
		cfg.Worker.RetryMaxAttempts,
		cfg.Worker.RetryInitialDelay,
		zlog,
	)
	quota := services.NewQuotaGate(db, zlog)
	publisher := services.NewLogPublisher(zlog)

	pipelineWorker := worker.New(taskQueue, worker.Config{
		Concurrency:       cfg.Worker.Concurrency,
		MaxAttempts:       cfg.Worker.RetryMaxAttempts,
		RetryInitialDelay: cfg.Worker.RetryInitialDelay,
		TaskTimeout:       cfg.Worker.TaskTimeout,
		PollInterval:      cfg.Worker.PollInterval,
		LockTTL:           cfg.Worker.LeaseTTL,
	}, zlog)

	pipeline := worker.NewPipelineHandlers(
		jobRepo,
		candidateRepo,
		evaluationRepo,
		postingRepo,
		extractor,
		scorer,
		configGen,
		publisher,
		taskQueue,
		zlog,
	)
	pipeline.RegisterAll(pipelineWorker)
	pipelineWorker.Start(ctx)
	zlog.Info("pipeline worker started", zap.Int("concurrency", cfg.Worker.Concurrency))

	// Monthly quota reset at midnight on the 1st.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("0 0 1 * *", func() {
		if err := quota.ResetMonthlyUsage(context.Background()); err != nil {
			zlog.Error("monthly quota reset failed", zap.Error(err))
		}
	}); err != nil {
		zlog.Fatal("failed to schedule quota reset", zap.Error(err))
	}
	scheduler.Start()

	jobHandler := handlers.NewJobHandler(jobRepo, postingRepo, taskQueue, zlog)
	candidateHandler := handlers.NewCandidateHandler(
		jobRepo,
		candidateRepo,
		evaluationRepo,
		subscriptionRepo,
		store,
		quota,
		taskQueue,
		cfg.Storage.MaxFileSize,
		cfg.Quota.FreeTierCandidateLimit,
		zlog,
	)
	evaluationHandler := handlers.NewEvaluationHandler(candidateRepo, evaluationRepo)

	app := fiber.New(fiber.Config{
		AppName:      "Starscreen Screening API",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		BodyLimit:    int(cfg.Storage.MaxFileSize) + 1024*1024,
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Tenant-ID",
	}))

	api := app.Group("/api/v1")

	api.Get("/health", func(c *fiber.Ctx) error {
		depth, _ := taskQueue.ReadyDepth(c.Context())
		return c.JSON(fiber.Map{
			"status":      "healthy",
			"queue_depth": depth,
			"time":        time.Now(),
		})
	})

	api.Post("/jobs", jobHandler.HandleCreateJob)
	api.Get("/jobs/:id", jobHandler.HandleGetJob)
	api.Get("/jobs/:id/postings", jobHandler.HandleListPostings)
	api.Post("/jobs/:jobID/candidates", candidateHandler.HandleUploadCandidate)
	api.Get("/jobs/:jobID/candidates", candidateHandler.HandleListCandidates)
	api.Get("/candidates/:id", candidateHandler.HandleGetCandidate)
	api.Delete("/candidates/:id", candidateHandler.HandleDeleteCandidate)
	api.Get("/candidates/:id/evaluation", evaluationHandler.HandleGetEvaluation)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		zlog.Info("shutting down")
		scheduler.Stop()
		pipelineWorker.Stop()
		if err := app.Shutdown(); err != nil {
			zlog.Error("server forced to shutdown", zap.Error(err))
		}
	}()

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	zlog.Info("server starting", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		zlog.Fatal("failed to start server", zap.Error(err))
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}
