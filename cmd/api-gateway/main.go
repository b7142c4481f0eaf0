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

	_ "github.com/nadacare/bip-api/api/swagger"
	"github.com/nadacare/bip-api/internal/handler"
	"github.com/nadacare/bip-api/internal/middleware"
	"github.com/nadacare/bip-api/internal/models"
	"github.com/nadacare/bip-api/internal/planner"
	"github.com/nadacare/bip-api/internal/repository"
	"github.com/nadacare/bip-api/internal/service"
	"github.com/nadacare/bip-api/pkg/cache"
	"github.com/nadacare/bip-api/pkg/config"
	"github.com/nadacare/bip-api/pkg/database"
	"github.com/nadacare/bip-api/pkg/export"
	"github.com/nadacare/bip-api/pkg/jobs"
	"github.com/nadacare/bip-api/pkg/logger"
	corsmiddleware "github.com/nadacare/bip-api/pkg/middleware/cors"
	reqidmiddleware "github.com/nadacare/bip-api/pkg/middleware/requestid"
	"github.com/nadacare/bip-api/pkg/storage"
)

// @title BIP Case API
// @version 0.1.0
// @description Behavior intervention case records service
// @BasePath /api/v1
// @schemes http

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	var kv *cache.KV
	if redisClient, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
	} else {
		kv = cache.NewKV(redisClient)
		defer redisClient.Close()
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	assessmentRepo := repository.NewAssessmentRepository(db)
	sessionRepo := repository.NewSessionRepository(db)

	assessmentSvc := service.NewAssessmentService(assessmentRepo, kv, export.NewCSVExporter(), metricsSvc, cfg.Stats.CacheTTL, validate, logr)

	planBackend := planner.NewOpenAIBackend(cfg.Planner, logr)
	planAdapter := planner.NewAdapter(planBackend, cfg.Planner.RequestTimeout, logr)
	sessionSvc := service.NewSessionService(sessionRepo, planAdapter, assessmentRepo, kv, metricsSvc, cfg.Planner.CacheTTL, validate, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	secured := api.Group("")
	secured.Use(middleware.JWT(cfg.JWT.Secret))

	assessmentHandler := handler.NewAssessmentHandler(assessmentSvc)
	secured.POST("/assessments", assessmentHandler.Submit)
	secured.GET("/assessments", assessmentHandler.List)
	secured.GET("/assessments/summary", assessmentHandler.Summary)
	secured.GET("/assessments/export.csv", assessmentHandler.ExportCSV)
	secured.GET("/assessments/:id", assessmentHandler.Get)

	sessionHandler := handler.NewSessionHandler(sessionSvc)
	secured.POST("/sessions/plan", sessionHandler.GeneratePlan)
	secured.POST("/sessions", sessionHandler.Save)
	secured.GET("/sessions", sessionHandler.List)
	secured.GET("/sessions/:id", sessionHandler.Get)
	secured.PUT("/sessions/:id/checklist", sessionHandler.AttachChecklist)
	secured.POST("/sessions/:id/reject",
		middleware.RequireRoles(models.RoleSpecialist, models.RoleAdmin),
		sessionHandler.Reject)

	if cfg.Exports.Enabled {
		files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

		var exportSvc *service.ExportService
		queue := jobs.NewQueue("exports", func(ctx context.Context, job jobs.Job) error {
			return exportSvc.HandleJob(ctx, job)
		}, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})

		exportRepo := repository.NewExportJobRepository(db)
		exportSvc = service.NewExportService(exportRepo, assessmentRepo, queue, files, signer, metricsSvc, validate, logr, service.ExportServiceConfig{
			DownloadPath:    cfg.APIPrefix + "/exports/download",
			ResultTTL:       cfg.Exports.SignedURLTTL,
			CleanupInterval: time.Hour,
		})

		queue.Start(ctx)
		defer queue.Stop()
		exportSvc.RecoverPendingJobs(ctx)
		exportSvc.StartCleanup(ctx)

		exportHandler := handler.NewExportHandler(exportSvc)
		secured.POST("/exports", exportHandler.Create)
		secured.GET("/exports/:id", exportHandler.Status)
		// download is authorised by the signed token, not a bearer token
		api.GET("/exports/download", exportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("shutdown incomplete", "error", err)
	}
}
