package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"fleetrecon/internal/config"
	"fleetrecon/internal/handlers"
	"fleetrecon/internal/middleware"
	"fleetrecon/internal/repositories/mongodb"
	"fleetrecon/internal/services"
	"fleetrecon/pkg/cache"
	"fleetrecon/pkg/database"
	"fleetrecon/pkg/logger"
	"fleetrecon/pkg/storage"
	"fleetrecon/pkg/websocket"
	"fleetrecon/routes"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.NewLogger(&logger.Config{
		Level:  logger.LogLevel(cfg.App.LogLevel),
		Format: cfg.App.LogFormat,
		Output: "stdout",
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	db, err := database.NewMongoDB(&database.DatabaseConfig{
		URI:            cfg.Database.URI,
		Database:       cfg.Database.Database,
		MaxPoolSize:    cfg.Database.MaxPoolSize,
		MinPoolSize:    cfg.Database.MinPoolSize,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		SocketTimeout:  cfg.Database.SocketTimeout,
	})
	if err != nil {
		appLogger.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.EnsureIndexes(ctx, db.Database); err != nil {
		cancel()
		appLogger.Fatalf("Failed to ensure indexes: %v", err)
	}
	cancel()

	redisCache, err := cache.NewRedisCache(&cache.RedisConfig{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		appLogger.Warnf("Redis unavailable, running without cache: %v", err)
		redisCache = nil
	} else {
		defer redisCache.Close()
	}

	archive, err := newArchiveProvider(cfg.Storage)
	if err != nil {
		appLogger.Fatalf("Failed to initialize archive storage: %v", err)
	}

	wsHandler := websocket.NewHandler()

	tripRepo := mongodb.NewTripRepository(db.Database, redisCache)
	transactionRepo := mongodb.NewTransactionRepository(db.Database)
	uploadRepo := mongodb.NewUploadRepository(db.Database, redisCache)

	ingestService := services.NewIngestService(tripRepo, transactionRepo, uploadRepo, archive, wsHandler, cfg.Ingest, appLogger)
	reconcileService := services.NewReconcileService(tripRepo, transactionRepo, cfg.Ingest, appLogger)
	shiftService := services.NewShiftService(transactionRepo, cfg.Ingest, appLogger)
	performanceService := services.NewPerformanceService(tripRepo, transactionRepo, shiftService, reconcileService, appLogger)

	uploadHandler := handlers.NewUploadHandler(ingestService)
	reportHandler := handlers.NewReportHandler(reconcileService, shiftService)
	dashboardHandler := handlers.NewDashboardHandler(performanceService)

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RequestLoggingMiddleware(appLogger))

	v1 := router.Group("/api/v1")
	{
		routes.SetupSessionRoutes(v1, uploadHandler, reportHandler, dashboardHandler)
	}

	router.GET("/ws/sessions/:session_id/progress", wsHandler.HandleProgressSocket)

	router.GET("/health", func(c *gin.Context) {
		status := "healthy"
		code := http.StatusOK
		if err := db.Ping(); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":  status,
			"version": cfg.App.Version,
		})
	})

	addr := fmt.Sprintf(":%d", cfg.App.Port)
	appLogger.Infof("Starting %s on %s", cfg.App.Name, addr)
	if err := http.ListenAndServe(addr, router); err != nil {
		appLogger.Fatalf("Server stopped: %v", err)
	}
}

// newArchiveProvider picks the archive backend from configuration: local
// disk for development, S3 or GCS in deployed environments.
func newArchiveProvider(cfg *config.StorageConfig) (storage.ArchiveProvider, error) {
	switch cfg.Provider {
	case "aws":
		return storage.NewS3Archive(cfg.AWS.Region, cfg.AWS.Bucket)
	case "gcp":
		return storage.NewGCSArchive(cfg.GCP.Bucket, cfg.GCP.CredentialsFile)
	default:
		return storage.NewLocalArchive(cfg.Local.BasePath)
	}
}
