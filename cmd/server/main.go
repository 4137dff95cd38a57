package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/cipher-ai-go/internal/api"
	"github.com/irfndi/cipher-ai-go/internal/cache"
	"github.com/irfndi/cipher-ai-go/internal/config"
	"github.com/irfndi/cipher-ai-go/internal/database"
	"github.com/irfndi/cipher-ai-go/internal/engine"
	"github.com/irfndi/cipher-ai-go/internal/logging"
	"github.com/irfndi/cipher-ai-go/internal/services"
	"github.com/irfndi/cipher-ai-go/internal/telemetry"
)

const cleanupInterval = time.Hour

func main() {
	if err := loadEnv(".env"); err != nil {
		log.Printf("Failed to load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("Server exited with error")
	}
	logger.Info("Server exited")
}

// loadEnv loads path into the environment; a missing file is not an error.
func loadEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func newLogger(cfg *config.Config) *logrus.Logger {
	format := cfg.LogFormat
	if format == "" {
		format = logging.FormatFor(cfg.Environment)
	}
	return logging.NewLogger(cfg.LogLevel, format)
}

// attachLogExport ships log entries over OTLP when configured. The returned shutdown flushes
// pending records and is never nil.
func attachLogExport(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	tc := cfg.Telemetry
	if !tc.Enabled || !tc.ExportLogs || tc.Exporter != telemetry.ExporterOTLP {
		return noop, nil
	}

	hook, err := logging.NewOTLPHook(ctx, logging.OTLPConfig{
		Endpoint:       tc.Endpoint,
		ServiceName:    tc.ServiceName,
		ServiceVersion: telemetry.ServiceVersion,
		Environment:    cfg.Environment,
	})
	if err != nil {
		return noop, fmt.Errorf("failed to create OTLP log hook: %w", err)
	}
	logger.AddHook(hook)
	return hook.Shutdown, nil
}

func newRouter(cfg *config.Config, deps api.Dependencies) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	api.SetupRoutes(router, deps)
	return router
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	shutdownLogs, err := attachLogExport(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Warn("Continuing without log export")
	}

	provider, err := telemetry.Init(ctx, cfg.Telemetry, cfg.Environment)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	services.DetectResources(cfg.Scanner.Workers, logger)

	db, err := database.NewPostgresConnection(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	pool := database.NewTracedPool(db.Pool)
	if err := database.Migrate(ctx, pool, logger); err != nil {
		return err
	}

	redisClient, err := database.NewRedisConnection(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	eng, err := engine.New(cfg.Engine, logger)
	if err != nil {
		return err
	}

	candles := database.NewCandleRepository(pool)
	reports := database.NewSignalRepository(pool)
	signals := cache.NewRedisSignalCache(redisClient.Client, cfg.Scanner.CacheTTLDuration(), logger)

	analysis, err := services.NewAnalysisService(eng, candles, cache.NewRunCache(), services.AnalysisConfig{
		CandleLimit: cfg.Scanner.CandleLimit,
		Workers:     cfg.Scanner.Workers,
	}, logger)
	if err != nil {
		return err
	}

	scanner := services.NewScannerService(analysis, reports, signals, cfg.Scanner, logger)
	if cfg.Scanner.Enabled {
		if err := scanner.Start(ctx); err != nil {
			return err
		}
	}

	cleanup := services.NewCleanupService(reports, cfg.Scanner.ReportRetentionDuration(), logger)
	cleanup.Start(ctx, cleanupInterval)

	router := newRouter(cfg, api.Dependencies{
		DB:             db,
		Redis:          redisClient,
		Analyzer:       analysis,
		Reports:        reports,
		Cache:          signals,
		Scanner:        scanner,
		Timeframes:     cfg.Scanner.Timeframes,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down server...")
	case err := <-serverErr:
		runErr = fmt.Errorf("failed to start server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeoutDuration())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	scanner.Stop(shutdownCtx)
	cleanup.Stop()
	signals.LogStats()

	if err := provider.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Failed to flush traces")
	}
	if err := shutdownLogs(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Failed to flush logs")
	}
	return runErr
}
