package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"epcis-hub/internal/alerts"
	"epcis-hub/internal/brokers/rabbitmq"
	"epcis-hub/internal/common/logging"
	"epcis-hub/internal/config"
	"epcis-hub/internal/processor"
	"epcis-hub/internal/routing"
	"epcis-hub/internal/server"
	"epcis-hub/internal/storage"
)

func main() {
	_ = godotenv.Load()
	runtime.GOMAXPROCS(runtime.NumCPU())

	logging.InitGlobalLogger()
	defer logging.MustSync()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Persistence for message status and per-destination outcomes
	dsn := cfg.DatabasePath
	if cfg.DatabaseType == "postgres" || cfg.DatabaseType == "postgresql" {
		dsn = cfg.PostgresDSN()
	}
	db, err := storage.Init(cfg.DatabaseType, dsn)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Routing collaborators
	reporter := alerts.NewReporter(cfg.AlertServiceURL, cfg.DispatchTimeout)
	registry := routing.NewRegistryClient(cfg.RulesServiceURL, cfg.RegistryTimeout)
	decisions := routing.NewDecisionService(registry)
	dispatcher := processor.NewHTTPDispatcher(cfg.DispatchTimeout)

	// Queue consumer with one processor per payload category
	consumer, err := rabbitmq.NewConsumer(cfg.RabbitMQURL, cfg.DeadLetterExchange)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	masterdata := processor.New(routing.CategoryMasterdata, decisions, dispatcher, db, reporter)
	if err := consumer.Consume(ctx, cfg.MasterdataQueue, masterdata.Handle); err != nil {
		log.Fatalf("Failed to consume masterdata queue: %v", err)
	}

	events := processor.New(routing.CategoryEvent, decisions, dispatcher, db, reporter)
	if err := consumer.Consume(ctx, cfg.EventQueue, events.Handle); err != nil {
		log.Fatalf("Failed to consume event queue: %v", err)
	}

	// Ops server exposing the aggregated health of the hub's dependencies
	srv := server.New(cfg.Port, map[string]server.HealthChecker{
		"rabbitmq":       consumer.Health,
		"database":       db.Ping,
		"rules_registry": registry.Health,
	})
	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start ops server: %v", err)
	}

	logging.Info("EPCIS messaging hub started",
		logging.String("port", cfg.Port),
		logging.String("masterdata_queue", cfg.MasterdataQueue),
		logging.String("event_queue", cfg.EventQueue),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info("Shutting down")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("Ops server forced to shutdown", err)
	}

	logging.Info("Shutdown complete")
}
