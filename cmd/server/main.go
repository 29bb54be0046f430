/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the ledger engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Initialize SQLite store
  3. Build the ledger engine (optionally with a Kafka publisher)
  4. Configure HTTP router
  5. Start server with graceful shutdown

CONFIGURATION:
  Flags take precedence over environment variables:
    -port       HTTP server port          (LEDGER_PORT, default 8080)
    -db         SQLite database path      (LEDGER_DB, default ledger.db)
                Use ":memory:" for an in-memory database
    -kafka      Comma-separated broker list (LEDGER_KAFKA_BROKERS);
                empty disables event publishing
    -topic      Kafka topic for committed entries (LEDGER_KAFKA_TOPIC)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close Kafka writer and database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/ledger.db"

  # Run with in-memory database and events
  ./server -db=":memory:" -kafka="localhost:9092"

SEE ALSO:
  - api/server.go: Router configuration
  - ledger/engine.go: Domain logic
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/warp/ledger-engine/api"
	"github.com/warp/ledger-engine/events/kafka"
	"github.com/warp/ledger-engine/ledger"
	"github.com/warp/ledger-engine/store/sqlite"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	// Flags, with environment fallbacks
	port := flag.Int("port", envInt("LEDGER_PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("LEDGER_DB", "ledger.db"), "SQLite database path")
	brokers := flag.String("kafka", envStr("LEDGER_KAFKA_BROKERS", ""), "Kafka brokers (comma-separated, empty disables events)")
	topic := flag.String("topic", envStr("LEDGER_KAFKA_TOPIC", kafka.DefaultTopic), "Kafka topic for committed entries")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Build engine
	opts := []ledger.Option{ledger.WithTxStores(store)}
	if *brokers != "" {
		publisher := kafka.NewPublisher(strings.Split(*brokers, ","), *topic)
		defer publisher.Close()
		opts = append(opts, ledger.WithPublisher(publisher))
		log.Printf("Publishing committed entries to %s via %s", *topic, *brokers)
	}
	engine := ledger.NewEngine(store, store, opts...)

	// Create router
	handler := api.NewHandler(engine)
	router := api.NewRouter(handler, api.NewHeaderIdentity())

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", *port)
		log.Printf("📊 API available at http://localhost:%d/api", *port)
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

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}
