package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/medassist-ai/report-interpreter-api/internal/config"
	"github.com/medassist-ai/report-interpreter-api/internal/db"
	"github.com/medassist-ai/report-interpreter-api/internal/explainer"
	"github.com/medassist-ai/report-interpreter-api/internal/extractor"
	"github.com/medassist-ai/report-interpreter-api/internal/metrics"
	"github.com/medassist-ai/report-interpreter-api/internal/repository"
	"github.com/medassist-ai/report-interpreter-api/internal/router"
	"github.com/medassist-ai/report-interpreter-api/internal/services"
	"github.com/medassist-ai/report-interpreter-api/internal/storage"
	"github.com/medassist-ai/report-interpreter-api/internal/utils"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger := utils.NewLogger(cfg.LogLevel)

	// Initialize database
	database, err := db.NewSQLiteDB(cfg.DatabaseFile)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer database.Close()

	// Run migrations
	if err := db.RunMigrations(cfg.DatabaseFile, db.DefaultMigrationsDir); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	metrics.Register(prometheus.DefaultRegisterer)

	// Artifact storage
	artifactStore, err := storage.NewS3Storage(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize S3 storage", "error", err)
	}

	// Extraction pipeline. The OCR engine initializes lazily on first use;
	// its readiness is exposed on /api/v1/status.
	ocrEngine := extractor.NewTesseractEngine(cfg.TesseractBinary, cfg.TesseractLanguage, logger)
	textExtractor := extractor.New(ocrEngine, logger)

	// Explanation generation. No API key means the deterministic fallback
	// handles every report; that is a supported configuration.
	var provider explainer.Provider
	if cfg.HuggingFaceAPIKey != "" {
		provider = explainer.NewHuggingFaceProvider(cfg.HuggingFaceAPIKey, cfg.HuggingFaceModel, logger)
	} else {
		logger.Warn("No HUGGINGFACE_API_KEY configured, explanations use the local fallback")
	}
	generator := explainer.NewGenerator(provider, logger)

	// Report pipeline service
	reportRepo := repository.NewRepository(database)
	reportService := services.NewService(reportRepo, artifactStore, textExtractor, generator, logger)

	// Setup HTTP router
	handler := router.NewRouter(reportService, database, cfg.JWTSecret, logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server
	go func() {
		logger.Info("Starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
