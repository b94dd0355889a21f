package main

import (
	"fmt"
	"net/http"
	"os"

	"portfolio-tracker-go/internal/config"
	"portfolio-tracker-go/internal/database"
	"portfolio-tracker-go/internal/ledger"
	"portfolio-tracker-go/internal/logger"

	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Connect to the database
	db, err := database.NewDatabase(&cfg)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	// The ledger service is scoped to the configured holder; the HTTP layer is
	// thin plumbing around it.
	svc := ledger.NewService(log, db, cfg.Portfolio.HolderID)
	apiHandler := NewAPIHandler(log, svc)

	mux := http.NewServeMux()
	apiHandler.RegisterRoutes(mux)

	limited := rateLimitMiddleware(cfg.Server, mux)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Info("Starting API server", zap.String("address", addr))

	if err := http.ListenAndServe(addr, limited); err != nil {
		log.Fatal("API server failed", zap.Error(err))
	}
}
