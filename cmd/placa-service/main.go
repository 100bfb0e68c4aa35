package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"placa-service/internal/auth"
	"placa-service/internal/config"
	"placa-service/internal/db"
	"placa-service/internal/detector"
	httphandler "placa-service/internal/http"
	"placa-service/internal/http/middleware"
	"placa-service/internal/logger"
	"placa-service/internal/ocr"
	"placa-service/internal/registry"
	"placa-service/internal/repository"
	"placa-service/internal/service"
	"placa-service/internal/storage"
	"placa-service/internal/vision"
)

const retentionInterval = 6 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	plateDetector, err := detector.New(cfg.Detector, appLogger)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to initialize detector")
	}
	defer plateDetector.Close()

	recognizer, err := ocr.New(ctx, cfg.OCR, appLogger)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to initialize recognition engine")
	}

	registryClient := registry.NewClient(cfg.Registry, appLogger)
	if !registryClient.Configured() {
		appLogger.Warn().Msg("PLACAOCR_APIBRASIL_BASE_URL is empty, vehicle lookups are disabled")
	}

	deps := service.Dependencies{
		Detector:  plateDetector,
		Preparer:  vision.NewPreprocessor(),
		Extractor: ocr.NewExtractor(recognizer, appLogger),
		Registry:  registryClient,
	}

	// Snapshot storage is optional.
	r2Client, err := storage.NewR2Client(cfg.Storage)
	switch {
	case err == nil:
		deps.Snapshots = r2Client
	case errors.Is(err, storage.ErrNotConfigured):
		appLogger.Info().Msg("R2 storage not configured, snapshots will not be stored")
	default:
		appLogger.Fatal().Err(err).Msg("failed to initialize R2 client")
	}

	var (
		database       *gorm.DB
		historyService *service.HistoryService
		authMiddleware gin.HandlerFunc
	)
	if cfg.HistoryEnabled() {
		database, err = db.New(cfg, appLogger)
		if err != nil {
			appLogger.Fatal().Err(err).Msg("failed to connect database")
		}
		recognitionRepo := repository.NewRecognitionRepository(database)
		deps.History = recognitionRepo
		historyService = service.NewHistoryService(recognitionRepo, appLogger)
		authMiddleware = middleware.Auth(auth.NewParser(cfg.Auth.AccessSecret))

		if cfg.DB.RetentionDays > 0 {
			go runRetention(ctx, historyService, cfg.DB.RetentionDays, appLogger)
		}
	} else {
		appLogger.Info().Msg("DB_DSN not set, recognition history is disabled")
	}

	plateService := service.NewPlateService(deps, service.Options{
		Debug:          cfg.Debug,
		MaxConcurrency: cfg.MaxConcurrency,
	}, appLogger)

	var history httphandler.HistoryReader
	if historyService != nil {
		history = historyService
	}
	handler := httphandler.NewHandler(plateService, history, cfg, appLogger)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment, database, appLogger)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	appLogger.Info().
		Str("addr", addr).
		Str("detector", plateDetector.Name()).
		Bool("model_loaded", plateDetector.Loaded()).
		Str("ocr_engine", recognizer.Name()).
		Bool("ocr_available", recognizer.Available()).
		Bool("debug", cfg.Debug).
		Int("max_concurrency", cfg.MaxConcurrency).
		Msg("starting placa service")

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error().Err(err).Msg("failed to start server")
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	appLogger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error().Err(err).Msg("server forced to shutdown")
	}

	appLogger.Info().Msg("server exited")
}

func runRetention(ctx context.Context, history *service.HistoryService, days int, log zerolog.Logger) {
	cleanup := func() {
		cctx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		_, _ = history.CleanupOldRecognitions(cctx, days)
	}

	cleanup()

	ticker := time.NewTicker(retentionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("retention loop stopped")
			return
		case <-ticker.C:
			cleanup()
		}
	}
}
