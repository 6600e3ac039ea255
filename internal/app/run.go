package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"slack-jira-bridge/internal/common/logging"
	"slack-jira-bridge/internal/config"
	"slack-jira-bridge/internal/server"
)

// Run is the main entry point for the bridge.
func Run() error {
	// Load environment variables
	_ = godotenv.Load()

	// Initialize logging
	logging.InitGlobalLogger()
	defer logging.MustSync()

	// Load and validate configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logging.Error("Configuration validation failed", err)
		return err
	}

	// Initialize application
	app, err := New(cfg)
	if err != nil {
		logging.Error("Failed to initialize application", err)
		return err
	}
	defer app.Cleanup()

	if err := app.Start(); err != nil {
		logging.Error("Failed to start background work", err)
		return err
	}

	logging.Info("Starting slack-jira-bridge",
		logging.Field{Key: "port", Value: cfg.Port},
		logging.Field{Key: "database", Value: cfg.DatabaseType},
		logging.Field{Key: "redis", Value: cfg.UsesRedis()},
	)

	router := mux.NewRouter()
	SetupRoutes(router, app.Handlers)

	srv := server.New(router, cfg.Port, os.Getenv("TLS_CERT"), os.Getenv("TLS_KEY"), logging.GetGlobalLogger())
	srv.Start()

	// Wait for interrupt signal or a fatal serve error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-quit:
		logging.Info("Shutting down server...")
	case err := <-srv.Errors():
		logging.Error("Server failed", err)
		return err
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.Shutdown(ctx); err != nil {
		logging.Warn("Error during app shutdown", logging.Field{Key: "error", Value: err})
	}

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", err)
		return err
	}

	logging.Info("Server exited")
	return nil
}
