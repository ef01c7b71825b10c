package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"log/slog"
	"seoAuditGO/internal/api"
	"seoAuditGO/internal/audit"
	"seoAuditGO/internal/config"
	"seoAuditGO/internal/provider"
	"seoAuditGO/internal/store"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	// Create config
	cfg, err := config.New()
	if err != nil {
		slog.Error("Failed to create config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Log)

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Initialize the persistence layer
	var st store.Store
	if cfg.MongoDB.Enabled {
		mongoStore, err := store.NewMongoStore(ctx, cfg.MongoDB)
		if err != nil {
			logger.Error("Failed to create MongoDB store", "error", err)
			os.Exit(1)
		}
		st = mongoStore
	} else {
		logger.Warn("MongoDB disabled; audits will not survive restarts")
		st = store.NewMemoryStore()
	}
	defer st.Close(ctx)

	providerClient := provider.NewClient(cfg.Provider, nil, logger)
	orchestrator := audit.New(st, providerClient, cfg.Provider, logger)

	// Initialize and start the API server
	server := api.NewServer(cfg, st, orchestrator, providerClient, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error("Server failed to start", "error", err)
			cancel()
		}
	}()

	logger.Info("Server started", "port", cfg.Server.Port)

	// Wait for shutdown signal
	<-shutdown
	logger.Info("Shutting down server...")

	// Create a timeout context for graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Attempt graceful shutdown
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited properly")
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
}
