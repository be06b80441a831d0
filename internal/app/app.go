package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"lending/internal/api"
	"lending/internal/config"
	"lending/internal/history"
	"lending/internal/history/ch"
	"lending/internal/lending"
	"lending/internal/storage"
	"lending/internal/storage/postgres"
	"lending/internal/storage/stubs"
)

// App represents the application
type App struct {
	config   *config.Config
	logger   *zap.Logger
	store    storage.Store
	recorder history.Recorder
	server   *http.Server
}

// New creates and initializes a new application instance
func New() (*App, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Load configuration from environment variables
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	app := &App{config: cfg, logger: logger}

	logger.Info("Starting lending service...")

	// Initialize storage
	if err := app.initStore(); err != nil {
		return nil, err
	}

	// Initialize circulation history
	if err := app.initRecorder(); err != nil {
		return nil, err
	}

	// Initialize HTTP server
	app.initHTTPServer()

	return app, nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// initStore initializes the storage engine
func (a *App) initStore() error {
	if a.config.UseMockDB {
		a.logger.Info("Using in-memory mock database")
		a.store = stubs.NewMockStore()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a.logger.Info("Connecting to PostgreSQL")
	store, err := postgres.NewStore(ctx, a.config.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	a.logger.Info("PostgreSQL connection established")

	a.store = store
	return nil
}

// initRecorder initializes the optional ClickHouse circulation history
func (a *App) initRecorder() error {
	if !a.config.HistoryEnabled {
		a.logger.Info("Circulation history disabled (CLICKHOUSE_HOST not set)")
		a.recorder = history.Nop()
		return nil
	}

	a.logger.Info("Connecting to ClickHouse",
		zap.String("host", a.config.ClickHouseHost),
		zap.Int("port", a.config.ClickHousePort),
		zap.String("database", a.config.ClickHouseDatabase),
		zap.Bool("tls", a.config.ClickHouseUseTLS),
	)
	recorder, err := ch.NewRecorder(
		a.config.ClickHouseHost,
		a.config.ClickHousePort,
		a.config.ClickHouseDatabase,
		a.config.ClickHouseUser,
		a.config.ClickHousePassword,
		a.config.ClickHouseUseTLS,
	)
	if err != nil {
		return fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	// Create the events table if it does not exist yet
	if err := recorder.Initialize(context.Background()); err != nil {
		return fmt.Errorf("failed to initialize circulation history: %w", err)
	}
	a.logger.Info("Circulation history initialized")

	a.recorder = recorder
	return nil
}

// initHTTPServer builds the lending service and registers the API routes
func (a *App) initHTTPServer() {
	service := lending.NewService(a.store, a.recorder, a.logger)
	server := api.NewServer(service, a.logger)

	mux := http.NewServeMux()
	server.RegisterRoutes(mux)

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.config.HTTPPort),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run() error {
	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start HTTP server in background
	go func() {
		a.logger.Info("Starting HTTP server", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	<-sigChan

	a.logger.Info("Shutting down...")
	return a.Shutdown()
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown() error {
	// Shutdown HTTP server gracefully
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// Close circulation history
	if err := a.recorder.Close(); err != nil {
		a.logger.Error("Error closing circulation history", zap.Error(err))
	}

	// Close database
	if err := a.store.Close(); err != nil {
		a.logger.Error("Error closing database", zap.Error(err))
		return err
	}

	a.logger.Info("Shutdown complete")
	_ = a.logger.Sync()
	return nil
}
