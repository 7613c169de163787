package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpattn/portfolio-ingest/internal/cache"
	"github.com/rpattn/portfolio-ingest/internal/config"
	"github.com/rpattn/portfolio-ingest/internal/db"
	"github.com/rpattn/portfolio-ingest/internal/export"
	"github.com/rpattn/portfolio-ingest/internal/ingestion"
	"github.com/rpattn/portfolio-ingest/internal/logging"
	"github.com/rpattn/portfolio-ingest/internal/middleware"
	"github.com/rpattn/portfolio-ingest/internal/repository"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Run migrations
	if err := db.RunMigrations(cfg.Database, logger); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	// Setup database connection
	conn, err := db.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer conn.Close()

	// Create repositories
	versions := repository.NewVersionRepository(conn)
	projects := repository.NewProjectRepository(conn.Pool)
	repos := ingestion.Repositories{
		Versions:  versions,
		Projects:  projects,
		Changes:   repository.NewChangeLogRepository(conn.Pool),
		Snapshots: repository.NewKPISnapshotRepository(conn.Pool),
		Logs:      repository.NewIngestionLogRepository(conn.Pool),
	}

	parser := ingestion.NewParser(cfg.Ingestion.ParserOptions())
	service := ingestion.NewService(parser, repos, cfg.Ingestion.KPIOptions(), logger)

	if cfg.Redis.Enabled {
		rdb := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		kpiCache := cache.NewKPICache(rdb, cfg.Redis.TTL)
		if err := kpiCache.Ping(ctx); err != nil {
			logger.Warn("kpi cache unavailable, continuing without it", zap.Error(err))
			_ = kpiCache.Close()
		} else {
			defer kpiCache.Close()
			service.WithCache(kpiCache)
		}
	}

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	api := ingestion.NewHTTPHandler(service, cfg.Server.MaxUploadBytes, logger)
	exports := export.NewHTTPHandler(export.NewService(versions, projects, logger), logger)
	withMiddleware := func(h http.Handler) http.Handler {
		return corsHandler.Handler(middleware.LoggingMiddleware(logger)(h))
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", withMiddleware(api))
	mux.Handle("/api/exports/", withMiddleware(exports))
	mux.Handle("/metrics", promhttp.Handler())

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("starting ingestion server", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}
