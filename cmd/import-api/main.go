package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/smart-student/edu-import-api/api/swagger"
	"github.com/smart-student/edu-import-api/internal/handler"
	"github.com/smart-student/edu-import-api/internal/middleware"
	"github.com/smart-student/edu-import-api/internal/models"
	"github.com/smart-student/edu-import-api/internal/repository"
	"github.com/smart-student/edu-import-api/internal/service"
	"github.com/smart-student/edu-import-api/pkg/cache"
	"github.com/smart-student/edu-import-api/pkg/config"
	"github.com/smart-student/edu-import-api/pkg/database"
	"github.com/smart-student/edu-import-api/pkg/logger"
	corsmiddleware "github.com/smart-student/edu-import-api/pkg/middleware/cors"
	reqidmiddleware "github.com/smart-student/edu-import-api/pkg/middleware/requestid"
)

// @title Edu Import API
// @version 1.0.0
// @description Bulk import and reconciliation service for educational records
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	gradeRepo := repository.NewGradeRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	docStore := repository.NewDocStoreRepository(redisClient, logr)
	runRepo := repository.NewRunRepository(redisClient, cfg.Import.RunRetention)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(cfg.JWT, logr)

	var targets []service.BackendTarget
	if cfg.Replication.SQLEnabled {
		targets = append(targets, service.BackendTarget{
			Backend:   service.NewSQLBackend(gradeRepo, activityRepo, attendanceRepo),
			BatchSize: cfg.Replication.SQLBatchSize,
		})
	}
	if cfg.Replication.DocEnabled {
		targets = append(targets, service.BackendTarget{
			Backend:   service.NewDocBackend(docStore),
			BatchSize: cfg.Replication.DocBatchSize,
		})
	}
	replicationSvc := service.NewReplicationService(targets, metricsSvc, logr)

	importSvc := service.NewImportService(
		catalogRepo, runRepo,
		gradeRepo, activityRepo, attendanceRepo,
		docStore, replicationSvc,
		cfg.Import, validator.New(), metricsSvc, logr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	importSvc.Start(ctx)
	defer importSvc.Stop()

	importHandler := handler.NewImportHandler(importSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, importSvc.Queue())

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc))
	{
		api.POST("/imports/grades", importHandler.ImportGrades)
		api.POST("/imports/attendance", importHandler.ImportAttendance)
		api.GET("/imports/:id", importHandler.GetRun)
		api.POST("/imports/:id/cancel", importHandler.CancelRun)
		api.GET("/imports/:id/errors.csv", importHandler.ErrorReport)
		api.GET("/imports/:id/summary.pdf", importHandler.Summary)

		api.GET("/records/counters", importHandler.Counters)
		api.DELETE("/records/grades",
			middleware.RequireRoles(models.RoleAdmin), importHandler.DeleteGrades)
		api.DELETE("/records/attendance",
			middleware.RequireRoles(models.RoleAdmin), importHandler.DeleteAttendance)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
