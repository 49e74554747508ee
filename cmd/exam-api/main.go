package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/campuskit/exam-scheduler-api/api/swagger"
	"github.com/campuskit/exam-scheduler-api/internal/handler"
	"github.com/campuskit/exam-scheduler-api/internal/middleware"
	"github.com/campuskit/exam-scheduler-api/internal/models"
	"github.com/campuskit/exam-scheduler-api/internal/repository"
	"github.com/campuskit/exam-scheduler-api/internal/service"
	"github.com/campuskit/exam-scheduler-api/pkg/cache"
	"github.com/campuskit/exam-scheduler-api/pkg/config"
	"github.com/campuskit/exam-scheduler-api/pkg/database"
	"github.com/campuskit/exam-scheduler-api/pkg/export"
	"github.com/campuskit/exam-scheduler-api/pkg/jobs"
	"github.com/campuskit/exam-scheduler-api/pkg/logger"
	corsmiddleware "github.com/campuskit/exam-scheduler-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campuskit/exam-scheduler-api/pkg/middleware/requestid"
	"github.com/campuskit/exam-scheduler-api/pkg/storage"
)

// @title Exam Scheduler API
// @version 1.0.0
// @description Greedy exam placement service: generates, stores and exports exam schedule versions.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	rdb, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, gateway caching disabled", "error", err)
		rdb = nil
	}

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewExamSessionRepository(db)
	roomRepo := repository.NewExamRoomRepository(db)
	windowRepo := repository.NewExamWindowRepository(db)
	scheduleRepo := repository.NewExamScheduleRepository(db)
	placementRepo := repository.NewExamPlacementRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	routeRepo := repository.NewCampusRouteRepository(db)
	policyRepo := repository.NewExamPolicyRepository(db)
	exportJobRepo := repository.NewExportJobRepository(db)

	// Availability gateways consulted during placement.
	calendarGw := service.NewCalendarGateway(bookingRepo)
	campusGw := service.NewCampusGateway(routeRepo, rdb, cfg.Placement.GatewayCacheTTL, logr)
	policyGw := service.NewPolicyGateway(policyRepo, rdb, cfg.Placement.GatewayCacheTTL, logr)

	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "exam-scheduler-api",
	})

	allowedCategories := make([]models.RoomCategory, 0, len(cfg.Placement.AllowedRoomCategories))
	for _, c := range cfg.Placement.AllowedRoomCategories {
		allowedCategories = append(allowedCategories, models.RoomCategory(c))
	}
	placementSvc := service.NewExamPlacementService(
		sessionRepo,
		roomRepo,
		windowRepo,
		scheduleRepo,
		placementRepo,
		calendarGw,
		campusGw,
		policyGw,
		db,
		metricsSvc,
		validate,
		logr,
		service.ExamPlacementServiceConfig{
			ProposalTTL: cfg.Placement.ProposalTTL,
			Placement: service.PlacementConfig{
				TryBudget:             cfg.Placement.TryBudget,
				RotationSpan:          cfg.Placement.RotationSpan,
				MinTravelMinutes:      cfg.Placement.MinTravelMinutes,
				PreExamBufferMinutes:  cfg.Placement.PreExamBufferMinutes,
				PostExamBufferMinutes: cfg.Placement.PostExamBufferMinutes,
				AllowedRoomCategories: allowedCategories,
			},
		},
	)

	files, err := storage.NewExportDir(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(
		scheduleRepo,
		placementRepo,
		files,
		signer,
		service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Exports.SignedURLTTL},
		logr,
		export.NewCSVExporter(),
		export.NewPDFExporter(),
	)

	exportWorker := service.NewExportWorker(exportJobRepo, exportSvc, cfg.Exports.WorkerRetries, logr)
	exportQueue := jobs.NewQueue("exports", exportWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		RetryDelay: cfg.Exports.WorkerRetryDelay,
		Logger:     logr,
	})
	exportQueue.Start()
	defer exportQueue.Stop()

	exportJobSvc := service.NewExportJobService(exportJobRepo, exportQueue, exportSvc, logr, service.ExportJobServiceConfig{
		ResultTTL:  cfg.Exports.SignedURLTTL,
		MaxRetries: cfg.Exports.WorkerRetries,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exportJobSvc.RecoverPendingJobs(ctx)
	exportJobSvc.StartCleanup(ctx)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	scheduleHandler := handler.NewExamScheduleHandler(placementSvc)
	exportHandler := handler.NewExportHandler(exportJobSvc, logr)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	schedules := api.Group("/exam-schedules")
	{
		authed := schedules.Group("")
		authed.Use(middleware.JWT(authSvc))
		authed.GET("", scheduleHandler.List)
		authed.GET("/:id", scheduleHandler.Get)

		mutating := authed.Group("")
		mutating.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleScheduler))
		mutating.POST("/generate", scheduleHandler.Generate)
		mutating.POST("", scheduleHandler.Save)
		mutating.DELETE("/:id", scheduleHandler.Delete)
	}

	exports := api.Group("/exam-exports")
	{
		// Download is token-authenticated, everything else needs a session.
		exports.GET("/download/:token", exportHandler.DownloadExport)
		exports.GET("/status/:id", middleware.JWT(authSvc), exportHandler.ExportStatus)
		exports.POST("",
			middleware.JWT(authSvc),
			middleware.RequireRoles(models.RoleAdmin, models.RoleScheduler),
			exportHandler.CreateExport,
		)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
