/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the debt ledger engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (local development) and environment configuration
  2. Initialize SQLite store
  3. Wire event fanout: metrics invalidation + optional AMQP publisher
  4. Create API handler and snapshot scheduler
  5. Start server with graceful shutdown

CONFIGURATION (environment):
  PORT            HTTP server port (default: 8080)
  DB_PATH         SQLite database path (default: ./data/debts.db)
                  Use ":memory:" for an in-memory database
  AMQP_URL        Broker URL; empty disables event publishing
  AMQP_EXCHANGE   Exchange for domain events (default: debt-engine)
  SNAPSHOT_CRON   Cron spec for the nightly snapshot rebuild
  METRICS_TTL     Debtor metrics cache TTL (default: 30s)
  LOG_LEVEL       logrus level (default: info)
  OPTIMISTIC_INCOME_FACTOR etc. override the scenario multipliers

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the snapshot scheduler
  4. Close broker connection and database
  5. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Nightly snapshot rebuild
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/ledgerkit/debt-engine/api"
	"github.com/ledgerkit/debt-engine/config"
	amqpevents "github.com/ledgerkit/debt-engine/events/amqp"
	"github.com/ledgerkit/debt-engine/ledger"
	"github.com/ledgerkit/debt-engine/store/sqlite"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	log := newLogger(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	// Event fanout: in-process subscribers plus the optional broker bridge.
	fanout := ledger.NewFanout()

	var broker *amqpevents.Publisher
	if cfg.AMQPURL != "" {
		broker, err = amqpevents.New(cfg.AMQPURL, cfg.AMQPExchange, log)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to AMQP broker")
		}
		defer broker.Close()
		fanout.Subscribe(broker.Publish)
		log.WithField("exchange", cfg.AMQPExchange).Info("event publishing enabled")
	}

	scenarios := ledger.DefaultScenarios()
	scenarios[ledger.ScenarioOptimistic] = ledger.ScenarioMultipliers{
		Income:  cfg.OptimisticIncomeFactor,
		Expense: cfg.OptimisticExpenseFactor,
	}
	scenarios[ledger.ScenarioPessimistic] = ledger.ScenarioMultipliers{
		Income:  cfg.PessimisticIncomeFactor,
		Expense: cfg.PessimisticExpenseFactor,
	}

	handler := api.NewHandler(store, fanout, scenarios, cfg.MetricsTTL, log, uuid.NewString)
	handler.Metrics.AttachTo(fanout)

	scheduler, err := api.NewSnapshotScheduler(handler, cfg.SnapshotCron, log)
	if err != nil {
		log.WithError(err).Fatal("failed to create snapshot scheduler")
	}
	scheduler.Start()
	defer scheduler.Stop()

	router := api.NewRouter(handler)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.WithField("port", cfg.Port).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server stopped")
}

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)
	return log
}
