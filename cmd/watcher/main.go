package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"portfolio-tracker-go/internal/config"
	"portfolio-tracker-go/internal/database"
	"portfolio-tracker-go/internal/ledger"
	"portfolio-tracker-go/internal/logger"
	"portfolio-tracker-go/internal/pricefeed"
	"portfolio-tracker-go/internal/watcher"

	"go.uber.org/zap"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Initialize database
	db, err := database.NewDatabase(&cfg)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	// Initialize the price feed client
	feed := pricefeed.NewClient(&cfg.Pricefeed, log)
	if err := feed.Ping(); err != nil {
		log.Fatal("Failed to reach price endpoint", zap.Error(err))
	}
	log.Info("Successfully connected to price endpoint.")

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Initialize the ledger and run the watch loop
	svc := ledger.NewService(log, db, cfg.Portfolio.HolderID)
	w, err := watcher.New(log, &cfg, feed, svc, db)
	if err != nil {
		log.Fatal("Failed to initialize watcher", zap.Error(err))
	}
	w.Run(ctx)

	log.Info("Watcher has been shut down.")
}
