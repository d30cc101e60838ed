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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-health-api/api/swagger"
	"github.com/noah-isme/sma-health-api/internal/handler"
	"github.com/noah-isme/sma-health-api/internal/middleware"
	"github.com/noah-isme/sma-health-api/internal/models"
	"github.com/noah-isme/sma-health-api/internal/repository"
	"github.com/noah-isme/sma-health-api/internal/service"
	"github.com/noah-isme/sma-health-api/pkg/cache"
	"github.com/noah-isme/sma-health-api/pkg/config"
	"github.com/noah-isme/sma-health-api/pkg/database"
	"github.com/noah-isme/sma-health-api/pkg/export"
	"github.com/noah-isme/sma-health-api/pkg/jobs"
	"github.com/noah-isme/sma-health-api/pkg/logger"
	"github.com/noah-isme/sma-health-api/pkg/messaging"
	corsmiddleware "github.com/noah-isme/sma-health-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-health-api/pkg/middleware/requestid"
)

// @title School Health API
// @version 1.0.0
// @description Medical check campaigns and parent notifications
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 10 * time.Second

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

	if cfg.Database.RunMigrations {
		if err := database.Migrate(cfg.Database); err != nil {
			logr.Fatal("migrations failed", zap.Error(err))
		}
		logr.Info("migrations applied")
	}

	db, err := database.NewPostgres(ctx, cfg.Database, logr)
	if err != nil {
		logr.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	metrics := service.NewMetricsService()

	checks := map[string]handler.Pinger{"postgres": db}

	var cacheBackend service.CacheRepository
	if cfg.Campaigns.CacheEnabled {
		redisClient, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, campaign cache disabled", zap.Error(err))
		} else {
			cacheRepo := repository.NewCacheRepository(redisClient, "health", logr)
			defer cacheRepo.Close() //nolint:errcheck
			cacheBackend = cacheRepo
			checks["redis"] = handler.PingerFunc(cacheRepo.Ping)
		}
	}
	cacheSvc := service.NewCacheService(cacheBackend, metrics, cfg.Campaigns.CacheTTL, logr, cacheBackend != nil)

	var publisher *messaging.Publisher
	if cfg.AMQP.URL != "" {
		publisher, err = messaging.NewPublisher(cfg.AMQP, logr)
		if err != nil {
			logr.Warn("amqp unavailable, notification events disabled", zap.Error(err))
		}
		defer publisher.Close() //nolint:errcheck
	}

	campaignRepo := repository.NewCampaignRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	parentRepo := repository.NewParentRepository(db)

	clock := service.SystemClock{}
	recipients := service.NewRecipientResolver(userRepo, studentRepo, parentRepo, logr)
	fanout := service.NewNotificationFanoutEngine(notificationRepo, publisher, metrics, clock, logr)
	staffWorker := service.NewStaffNotificationWorker(recipients, fanout, logr)

	notifyQueue := jobs.NewQueue("campaign-notify", staffWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		Logger:     logr,
	})
	notifyQueue.Start(ctx)
	defer notifyQueue.Stop()

	campaigns := service.NewCampaignService(service.CampaignServiceParams{
		Repo:       campaignRepo,
		Recipients: recipients,
		Notifier:   fanout,
		Students:   studentRepo,
		Queue:      notifyQueue,
		Cache:      cacheSvc,
		Metrics:    metrics,
		Exporter:   service.NewRosterExporter(export.NewCSVExporter(true), export.NewPDFExporter(false)),
		Clock:      clock,
		Logger:     logr,
		Config: service.CampaignServiceConfig{
			Location: cfg.Campaigns.Location(),
			CacheTTL: cfg.Campaigns.CacheTTL,
		},
	})
	auth := service.NewAuthService(logr, service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	registerRoutes(r, cfg, routeDeps{
		campaigns: handler.NewCampaignHandler(campaigns, logr),
		metrics:   handler.NewMetricsHandler(metrics, checks, logr),
		auth:      auth,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown error", zap.Error(err))
		return
	}
	logr.Info("server gracefully stopped")
}

type routeDeps struct {
	campaigns *handler.CampaignHandler
	metrics   *handler.MetricsHandler
	auth      middleware.TokenValidator
}

func registerRoutes(r *gin.Engine, cfg *config.Config, deps routeDeps) {
	r.GET("/health", deps.metrics.Health)
	r.GET("/ready", deps.metrics.Ready)
	r.GET("/metrics", deps.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	managers := middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin, models.RoleNurse)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())
	api.Use(middleware.JWT(deps.auth))

	campaigns := api.Group("/campaigns")
	campaigns.POST("", managers, deps.campaigns.Create)
	campaigns.GET("", staff, deps.campaigns.List)
	campaigns.GET("/:id", staff, deps.campaigns.Get)
	campaigns.PATCH("/:id", managers, deps.campaigns.Update)
	campaigns.DELETE("/:id", managers, deps.campaigns.Delete)
	campaigns.PATCH("/:id/status", staff, deps.campaigns.Transition)
	campaigns.POST("/:id/notify-parents", staff, deps.campaigns.NotifyParents)
	campaigns.GET("/:id/students", staff, deps.campaigns.Students)
	campaigns.GET("/:id/students/export", staff, deps.campaigns.ExportStudents)
}
