package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"ml-governance-service/internal/adapters/primary/http/handlers"
	"ml-governance-service/internal/adapters/primary/http/middleware"
	"ml-governance-service/internal/adapters/secondary/postgres"
	"ml-governance-service/internal/adapters/secondary/redis"
	"ml-governance-service/internal/adapters/secondary/webhook"
	"ml-governance-service/internal/config"
	ports "ml-governance-service/internal/core/ports/output"
	"ml-governance-service/internal/core/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	initLogger(cfg)

	// Create database pool
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN())
	if err != nil {
		log.Fatalf("parse db config: %v", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.Database.MaxIdleConns)
	poolCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		log.Fatalf("create db pool: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(context.Background()); err != nil {
		log.Fatalf("ping db: %v", err)
	}
	log.Info("database connection established")

	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}
	log.Info("redis connection established")

	// ============================================================================
	// Hexagonal Architecture Wiring
	// ============================================================================

	// Secondary Adapters (Output Ports)
	reportRepo := postgres.NewQualityReportRepository(pool)
	driftRepo := postgres.NewDriftRepository(pool)
	registryRepo := postgres.NewRegistryRepository(pool)
	retrainingRepo := postgres.NewRetrainingRepository(pool)
	recordCounter := redis.NewRecordCounter(redisClient)
	quarantineStore := redis.NewQuarantineStore(redisClient)

	// Admin webhook (optional - based on config)
	var notifier ports.AdminNotifier
	if cfg.Webhook.AdminURL != "" {
		notifier = webhook.NewNotifier(cfg.Webhook.AdminURL, cfg.Webhook.Timeout)
		log.Info("admin webhook notifier initialized")
	} else {
		log.Info("admin webhook disabled, promotions proceed without notification")
	}

	// Core Services (Application Layer)
	qualitySvc := services.NewQualityService(services.QualityConfig{
		CompletenessThreshold: cfg.Quality.CompletenessThreshold,
		RequiredColumns:       cfg.Quality.RequiredColumns,
		Ranges:                cfg.Quality.Ranges,
	})
	gateSvc := services.NewPHIGateService(services.GateConfig{
		K: cfg.Quality.KAnonymity,
	}, quarantineStore)
	validationSvc := services.NewValidationService(gateSvc, qualitySvc, reportRepo)
	driftSvc := services.NewDriftService(services.DriftConfig{
		Alpha:      cfg.Drift.Alpha,
		Bins:       cfg.Drift.Bins,
		MinSamples: cfg.Drift.MinSamples,
		Interval:   cfg.Drift.Interval,
	}, services.AnySignalPolicy{PSIThreshold: cfg.Drift.PSIThreshold}, driftRepo)
	registrySvc := services.NewRegistryService(registryRepo)
	governanceSvc := services.NewGovernanceService(services.GovernanceConfig{
		VolumeThreshold:  cfg.Governance.VolumeThreshold,
		ScheduleInterval: cfg.Governance.ScheduleInterval,
		PromotionFactor:  cfg.Governance.PromotionFactor,
	}, driftSvc, registrySvc, retrainingRepo, recordCounter, notifier)

	// Background jobs
	jobsCtx, stopJobs := context.WithCancel(context.Background())
	defer stopJobs()
	go driftSvc.Run(jobsCtx)
	go governanceSvc.Run(jobsCtx, func(context.Context) []string {
		return cfg.Governance.Models
	}, cfg.Governance.TickInterval)

	// Primary Adapter (HTTP Handlers)
	h := handlers.New(validationSvc, driftSvc, registrySvc, governanceSvc)

	// Setup router
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Logging(), gin.Recovery())

	api := router.Group("/api/v1/governance")
	h.RegisterRoutes(api)

	// Health check with DB ping
	router.GET("/healthz", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Infof("starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")

	stopJobs()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("server forced shutdown: %v", err)
	}

	log.Info("server stopped")
}

func initLogger(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Logger.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
