package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/attendance-ledger/api/swagger"
	"github.com/noah-isme/attendance-ledger/internal/handler"
	"github.com/noah-isme/attendance-ledger/internal/middleware"
	"github.com/noah-isme/attendance-ledger/internal/repository"
	"github.com/noah-isme/attendance-ledger/internal/service"
	"github.com/noah-isme/attendance-ledger/pkg/cache"
	"github.com/noah-isme/attendance-ledger/pkg/config"
	"github.com/noah-isme/attendance-ledger/pkg/database"
	"github.com/noah-isme/attendance-ledger/pkg/export"
	"github.com/noah-isme/attendance-ledger/pkg/logger"
	corsmiddleware "github.com/noah-isme/attendance-ledger/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/attendance-ledger/pkg/middleware/requestid"
)

// @title Attendance Ledger API
// @version 0.1.0
// @description Attendance record-keeping service with bulk ingestion, range queries and presence statistics
// @BasePath /
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	var cacheRepo *repository.CacheRepository
	if cfg.Stats.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, stats cache disabled", "error", err)
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	entryRepo := repository.NewEntryRepository(db)
	semesterRepo := repository.NewSemesterRepository(db)

	var statsSvc *service.StatsService
	if cacheRepo != nil {
		statsSvc = service.NewStatsService(entryRepo, semesterRepo, cacheRepo, metricsSvc, cfg.Stats.CacheTTL, logr)
	} else {
		statsSvc = service.NewStatsService(entryRepo, semesterRepo, nil, metricsSvc, cfg.Stats.CacheTTL, logr)
	}

	ledgerSvc := service.NewLedgerService(entryRepo, statsSvc, validate, logr)
	batchSvc := service.NewBatchService(entryRepo, statsSvc, metricsSvc, validate, logr, cfg.Batch.MaxItems)
	exportSvc := service.NewExportService(ledgerSvc, export.NewCSVExporter(), export.NewPDFExporter(), cfg.Export.MaxRows, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", handler.NewMetricsHandler(metricsSvc).Scrape)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	attendance := api.Group("/attendance")
	handler.NewAttendanceHandler(ledgerSvc, batchSvc).RegisterRoutes(attendance)
	handler.NewStatsHandler(statsSvc).RegisterRoutes(attendance)
	if cfg.Export.Enabled {
		handler.NewExportHandler(exportSvc).RegisterRoutes(attendance)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
