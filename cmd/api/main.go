package main

import (
	"context"
	"errors"
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

	_ "github.com/paylog/timecard-api/api/swagger"
	"github.com/paylog/timecard-api/internal/handler"
	"github.com/paylog/timecard-api/internal/middleware"
	"github.com/paylog/timecard-api/internal/models"
	"github.com/paylog/timecard-api/internal/repository"
	"github.com/paylog/timecard-api/internal/service"
	"github.com/paylog/timecard-api/pkg/cache"
	"github.com/paylog/timecard-api/pkg/config"
	"github.com/paylog/timecard-api/pkg/database"
	"github.com/paylog/timecard-api/pkg/jobs"
	"github.com/paylog/timecard-api/pkg/logger"
	corsmiddleware "github.com/paylog/timecard-api/pkg/middleware/cors"
	reqidmiddleware "github.com/paylog/timecard-api/pkg/middleware/requestid"
	"github.com/paylog/timecard-api/pkg/storage"
)

// @title Timecard API
// @version 0.1.0
// @description Employee time tracking and payroll approval portal
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
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, period list caching disabled", "error", err)
		redisClient = nil
	}

	userRepo := repository.NewUserRepository(db)
	entryRepo := repository.NewTimeEntryRepository(db)
	periodRepo := repository.NewPayPeriodRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	reportRepo := repository.NewReportRepository(db)

	validate := validator.New()

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	entrySvc := service.NewEntryService(entryRepo, periodRepo, cacheRepo, validate, logr, cfg.Payroll.OvertimeWeeklyHours)
	periodSvc := service.NewPeriodService(periodRepo, entryRepo, userRepo, cacheRepo, validate, logr, cfg.Payroll.OvertimeWeeklyHours, cfg.Periods.ListCacheTTL)

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	entryHandler := handler.NewEntryHandler(entrySvc)
	periodHandler := handler.NewPeriodHandler(periodSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	var reportHandler *handler.ReportHandler
	var reportQueue *jobs.Queue
	if cfg.Reports.Enabled {
		fileStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init report storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		exportSvc := service.NewExportService(periodRepo, entryRepo, fileStore, signer, service.ExportConfig{
			APIPrefix:   cfg.APIPrefix,
			ResultTTL:   cfg.Reports.SignedURLTTL,
			PerDiemRate: cfg.Payroll.PerDiemUnitRate,
		}, logr, nil, nil)

		worker := service.NewReportWorker(reportRepo, exportSvc, cfg.Reports.WorkerRetries, logr)
		reportQueue = jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			Logger:     logr,
		})
		reportQueue.Start(ctx)

		reportSvc := service.NewReportService(reportRepo, reportQueue, exportSvc, logr, service.ReportServiceConfig{
			ResultTTL:       cfg.Reports.SignedURLTTL,
			CleanupInterval: cfg.Reports.CleanupInterval,
			MaxRetries:      cfg.Reports.WorkerRetries,
		})
		reportSvc.RecoverPendingJobs(ctx)
		reportSvc.StartCleanup(ctx)

		reportHandler = handler.NewReportHandler(reportSvc)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	staffOnly := middleware.RequireRoles(models.RoleAdmin, models.RoleHR, models.RoleAccountant, models.RoleProjectManager)
	r.GET("/metrics", middleware.JWT(authSvc), staffOnly, metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)
	if reportHandler != nil {
		// The signed token is the credential here; no JWT required.
		api.GET("/export/:token", reportHandler.Download)
	}

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	authed.Use(middleware.RouteGuard(cfg.APIPrefix))

	authed.POST("/auth/logout", authHandler.Logout)
	authed.POST("/auth/change-password", authHandler.ChangePassword)
	authed.GET("/auth/me", authHandler.Me)

	authed.GET("/profile", userHandler.Profile)
	authed.GET("/staff/profile", userHandler.Profile)

	authed.GET("/entries", entryHandler.List)
	authed.POST("/entries", entryHandler.Create)
	authed.PUT("/entries/:id", entryHandler.Update)
	authed.DELETE("/entries/:id", entryHandler.Delete)

	authed.GET("/periods", periodHandler.List)
	authed.POST("/periods", periodHandler.Create)
	authed.GET("/periods/:id", periodHandler.Get)
	authed.POST("/periods/:id/submit", periodHandler.Submit)
	authed.POST("/periods/:id/approve", periodHandler.Approve)
	authed.POST("/periods/:id/reject", periodHandler.Reject)
	authed.POST("/periods/:id/mark-paid", periodHandler.MarkPaid)

	authed.GET("/employees", userHandler.List)
	authed.GET("/employees/:id", userHandler.Get)
	adminOnly := middleware.RequireRoles(models.RoleAdmin, models.RoleHR)
	authed.POST("/employees", adminOnly, middleware.Audit(userRepo, "employee.create", "users"), userHandler.Create)
	authed.PUT("/employees/:id", adminOnly, middleware.Audit(userRepo, "employee.update", "users"), userHandler.Update)
	authed.DELETE("/employees/:id", middleware.RequireRoles(models.RoleAdmin), middleware.Audit(userRepo, "employee.deactivate", "users"), userHandler.Deactivate)

	if reportHandler != nil {
		authed.POST("/reports", reportHandler.Create)
		authed.GET("/reports/:id", reportHandler.Status)
	}

	authed.GET("/metrics", metricsHandler.Snapshot)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("graceful shutdown failed", "error", err)
	}
	if reportQueue != nil {
		reportQueue.Stop()
	}
}
