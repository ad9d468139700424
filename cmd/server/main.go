/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the settlement ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (environment / .env)
  2. Initialize SQLite store
  3. Wire the settlement engine (ledger, recalculator, worker, service)
  4. Start the recalculation worker (resumes an interrupted cascade)
  5. Create API handler, load rates, configure router
  6. Start HTTP server with graceful shutdown

CONFIGURATION:
  PORT, DATABASE_PATH, VAT_RATE, GROSS_RECEIPTS_RATE, CASCADE_CHUNK_DAYS.
  Use DATABASE_PATH=":memory:" for an in-memory database.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the recalculation worker (finishes the in-flight cascade)
  4. Close database connection
  5. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/egidigero/storeledger/api"
	"github.com/egidigero/storeledger/config"
	"github.com/egidigero/storeledger/sales"
	"github.com/egidigero/storeledger/settlement"
	"github.com/egidigero/storeledger/store/sqlite"
)

func main() {
	cfg := config.Load()

	// Initialize store
	store, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Wire the settlement engine
	ledger := settlement.NewLedger(store)
	recalc := settlement.NewRecalculator(store, store, store, cfg.Tax)
	recalc.ChunkSize = cfg.CascadeChunkDays

	worker := settlement.NewWorker(recalc)
	worker.Start()
	defer worker.Stop()

	service := settlement.NewService(store, store, ledger, worker)

	// Pricing
	rates := sales.NewTable()
	calc := sales.NewCalculator(rates, cfg.Tax)

	// Initialize handler
	handler := api.NewHandler(store, service, ledger, rates, calc)

	// Load configured rates into the in-memory resolver
	if err := handler.LoadRates(context.Background()); err != nil {
		log.Printf("Warning: Failed to load rates: %v", err)
	}

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%s", cfg.Port)
		log.Printf("📊 API available at http://localhost:%s/api", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
