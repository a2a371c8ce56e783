package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mt5-journal-sync/internal/config"
	"mt5-journal-sync/internal/crypto"
	"mt5-journal-sync/internal/database"
	"mt5-journal-sync/internal/journal"
	"mt5-journal-sync/internal/logger"
	"mt5-journal-sync/internal/mt5"
	"mt5-journal-sync/internal/notion"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// A local .env can override secrets (encryption key, Notion token)
	// without touching the config file.
	_ = godotenv.Load()

	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		fmt.Fprintf(os.Stderr, "could not load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	// Credential encryption
	cipher, err := crypto.NewCipher(cfg.Crypto.EncryptionKey)
	if err != nil {
		log.Fatal("Failed to initialize credential cipher", zap.Error(err))
	}

	// External clients
	bridge := mt5.NewRestClient(&cfg.MT5, log)
	sink := notion.NewRestClient(&cfg.Notion, log)

	// Sync pipeline
	store := journal.NewStore(db, log)
	tracker := journal.NewTracker(db, log)
	dispatcher := journal.NewDispatcher(tracker, sink, &cfg.Notion, cfg.Sync.MirrorWorkers, log)
	syncer := journal.NewSyncer(db, store, tracker, dispatcher, bridge, cipher, &cfg.Sync, log)

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Optional periodic sync of all active accounts
	if cfg.Sync.AutoSyncMinutes > 0 {
		interval := time.Duration(cfg.Sync.AutoSyncMinutes) * time.Minute
		scheduler := journal.NewScheduler(db, syncer, interval, log)
		go scheduler.Run(ctx)
	}

	// HTTP API
	apiHandler := NewAPIHandler(log, db, cipher, syncer)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/accounts", apiHandler.CreateAccountHandler)
	mux.HandleFunc("GET /api/accounts", apiHandler.ListAccountsHandler)
	mux.HandleFunc("GET /api/accounts/{id}", apiHandler.GetAccountHandler)
	mux.HandleFunc("DELETE /api/accounts/{id}", apiHandler.DeactivateAccountHandler)
	mux.HandleFunc("POST /api/accounts/{id}/sync", apiHandler.SyncAccountHandler)
	mux.HandleFunc("GET /api/accounts/{id}/stats", apiHandler.AccountStatsHandler)
	mux.HandleFunc("GET /api/trades", apiHandler.ListTradesHandler)
	mux.HandleFunc("PATCH /api/trades/{id}", apiHandler.UpdateTradeNotesHandler)
	mux.HandleFunc("GET /health", apiHandler.HealthHandler)
	mux.Handle("GET /metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown failed", zap.Error(err))
		}
	}()

	log.Info("Starting journal server", zap.String("address", addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("Server failed", zap.Error(err))
	}

	log.Info("Journal server has been shut down.")
}
