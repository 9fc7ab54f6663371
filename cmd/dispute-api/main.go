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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/credassure/credassure-api/api/swagger"
	"github.com/credassure/credassure-api/internal/enforcement"
	"github.com/credassure/credassure-api/internal/handler"
	"github.com/credassure/credassure-api/internal/middleware"
	"github.com/credassure/credassure-api/internal/models"
	"github.com/credassure/credassure-api/internal/repository"
	"github.com/credassure/credassure-api/internal/service"
	"github.com/credassure/credassure-api/pkg/cache"
	"github.com/credassure/credassure-api/pkg/config"
	"github.com/credassure/credassure-api/pkg/database"
	"github.com/credassure/credassure-api/pkg/jobs"
	"github.com/credassure/credassure-api/pkg/logger"
	corsmiddleware "github.com/credassure/credassure-api/pkg/middleware/cors"
	reqidmiddleware "github.com/credassure/credassure-api/pkg/middleware/requestid"
	"github.com/credassure/credassure-api/pkg/storage"
)

// @title CredAssure Dispute API
// @version 1.0.0
// @description Credit dispute management with bureau response enforcement
// @BasePath /api/v1
// @schemes http https

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The API degrades to uncached reads and single-instance scan
		// locking without redis.
		logr.Sugar().Warnw("redis unavailable, continuing without cache", "error", err)
		redisClient = nil
	}

	rules := enforcement.DefaultRuleSet()
	if cfg.Enforcement.ResponseWindowDays > 0 {
		rules.DeadlineDay = cfg.Enforcement.ResponseWindowDays + cfg.Enforcement.GraceDays
	}
	if cfg.Enforcement.EarlyWarningDay > 0 {
		rules.EarlyWarningDay = cfg.Enforcement.EarlyWarningDay
	}

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	disputeRepo := repository.NewDisputeRepository(db)
	evidenceRepo := repository.NewEvidenceRepository(db)
	verificationRepo := repository.NewVerificationRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "credassure-api",
	})
	enforcementSvc := service.NewEnforcementService(
		disputeRepo, evidenceRepo, verificationRepo, cacheRepo, userRepo,
		metricsSvc, rules, cfg.Enforcement.ViewCacheTTL, logr,
	)
	disputeSvc := service.NewDisputeService(disputeRepo, verificationRepo, userRepo, rules, cfg.Enforcement, logr)
	verificationSvc := service.NewVerificationService(verificationRepo, disputeRepo, userRepo, rules, logr)
	scannerSvc := service.NewScannerService(disputeRepo, evidenceRepo, enforcementSvc, cacheRepo, metricsSvc, cfg.Scanner, logr)

	notificationSvc := service.NewNotificationService(logr)
	if cfg.Notifications.Enabled {
		notificationQueue := jobs.NewQueue("notifications", notificationSvc.HandleJob, jobs.QueueConfig{
			Workers: cfg.Notifications.Workers,
			Logger:  logr,
		})
		notificationSvc.SetQueue(notificationQueue)
		notificationQueue.Start(context.Background())
		defer notificationQueue.Stop()
		enforcementSvc.SetNotifier(notificationSvc)
	}

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc = service.NewExportService(reportRepo, disputeRepo, userRepo, exportStore, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Exports.SignedURLTTL,
		}, logr)
		exportQueue := jobs.NewQueue("exports", exportSvc.HandleJob, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})
		exportSvc.SetQueue(exportQueue)
		exportQueue.Start(context.Background())
		defer exportQueue.Stop()
		exportSvc.RequeueCold(context.Background())
	}

	var attachmentSvc *service.AttachmentService
	if cfg.Attachments.Enabled {
		attachmentStore, err := storage.NewLocalStorage(cfg.Attachments.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init attachment storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Attachments.SignedURLSecret, cfg.Attachments.SignedURLTTL)
		attachmentSvc = service.NewAttachmentService(evidenceRepo, attachmentStore, signer, cfg.Attachments, logr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Scanner.Enabled {
		go scannerSvc.Run(ctx)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.Metrics(metricsSvc))

	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(authSvc)
	disputeHandler := handler.NewDisputeHandler(disputeSvc, enforcementSvc)
	scanHandler := handler.NewScanHandler(scannerSvc, enforcementSvc)
	verificationHandler := handler.NewVerificationHandler(verificationSvc)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	staff := []models.UserRole{models.RoleAdmin, models.RoleAgent}
	anyRole := []models.UserRole{models.RoleAdmin, models.RoleAgent, models.RoleMember}

	disputes := protected.Group("/disputes")
	disputes.POST("", middleware.RequireRoles(anyRole...), disputeHandler.Create)
	disputes.GET("", middleware.RequireRoles(anyRole...), disputeHandler.List)
	disputes.GET("/:id", middleware.RequireRoles(anyRole...), disputeHandler.Get)
	disputes.GET("/:id/evidence", middleware.RequireRoles(anyRole...), disputeHandler.Timeline)
	disputes.POST("/:id/evidence", middleware.RequireRoles(staff...), disputeHandler.Ingest)
	disputes.GET("/:id/enforcement", middleware.RequireRoles(anyRole...), disputeHandler.View)
	disputes.POST("/:id/advance", middleware.RequireRoles(staff...), disputeHandler.Advance)
	disputes.POST("/:id/reinsert", middleware.RequireRoles(staff...), disputeHandler.Reinsert)

	members := protected.Group("/members")
	members.GET("/:memberId/enforcement", middleware.RequireRoles(anyRole...), disputeHandler.Summary)
	members.GET("/:memberId/verification/:bureau", middleware.RequireRoles(anyRole...), verificationHandler.Status)
	members.POST("/:memberId/verification/:bureau", middleware.RequireRoles(staff...), verificationHandler.MarkVerified)

	enforcementRoutes := protected.Group("/enforcement")
	enforcementRoutes.GET("/rules", middleware.RequireRoles(staff...), scanHandler.Rules)
	enforcementRoutes.POST("/scan",
		middleware.RequireRoles(models.RoleAdmin),
		middleware.Audit(userRepo, models.AuditActionScanRun, "enforcement"),
		scanHandler.Run,
	)

	if exportSvc != nil {
		exportHandler := handler.NewExportHandler(exportSvc)
		exports := protected.Group("/exports")
		exports.POST("/:type", middleware.RequireRoles(anyRole...), exportHandler.Create)
		exports.GET("/:id", middleware.RequireRoles(anyRole...), exportHandler.Status)
		// Download authenticates via the signed token, not a session.
		api.GET("/exports/download/:token", exportHandler.Download)
	}

	if attachmentSvc != nil {
		attachmentHandler := handler.NewAttachmentHandler(attachmentSvc, cfg.APIPrefix)
		evidence := protected.Group("/evidence")
		evidence.POST("/:id/attachments", middleware.RequireRoles(staff...), attachmentHandler.Upload)
		evidence.GET("/:id/attachments", middleware.RequireRoles(anyRole...), attachmentHandler.List)
		protected.GET("/attachments/:id/url", middleware.RequireRoles(anyRole...), attachmentHandler.SignedURL)
		api.GET("/attachments/download/:token", attachmentHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
