package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/vrp-import-service/internal/cache"
	"github.com/SAP-F-2025/vrp-import-service/internal/config"
	"github.com/SAP-F-2025/vrp-import-service/internal/events"
	"github.com/SAP-F-2025/vrp-import-service/internal/handlers"
	"github.com/SAP-F-2025/vrp-import-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/vrp-import-service/internal/services"
	"github.com/SAP-F-2025/vrp-import-service/internal/utils"
	"github.com/SAP-F-2025/vrp-import-service/internal/validator"
	"github.com/SAP-F-2025/vrp-import-service/pkg"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	slogger := utils.NewLogger(cfg.Environment, os.Stdout)
	slog.SetDefault(slogger)
	logger := utils.NewSlogLogger(slogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tuning, err := config.LoadTuning(cfg.Import.TuningFile)
	if err != nil {
		return err
	}

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		return err
	}
	if err := postgres.AutoMigrate(db); err != nil {
		return err
	}

	// the report cache is optional; sessions still work without it
	var reportCache cache.CacheService
	if client, err := pkg.NewRedisClient(ctx, cfg); err != nil {
		logger.Warn("Redis unavailable, report cache disabled", "error", err)
	} else {
		defer client.Close()
		reportCache = cache.NewRedisCache(client, "vrp-import", slogger)
	}

	publisher, err := cfg.Events.CreateEventPublisher(slogger)
	if err != nil {
		logger.Error("Failed to create event publisher, falling back to mock", "error", err)
		publisher = events.NewMockEventPublisher(slogger)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error("Failed to close event publisher", "error", err)
		}
	}()

	importService := services.NewImportService(services.ImportServiceDeps{
		Repo:      postgres.NewRepository(db),
		Publisher: publisher,
		Cache:     reportCache,
		Tuning:    tuning,
		Config:    cfg.Import,
		Validator: validator.New(),
		Logger:    slogger,
	})

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	handlers.NewHandlerManager(importService, cfg.Import.MaxFileBytes, logger).SetupRoutes(router)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
