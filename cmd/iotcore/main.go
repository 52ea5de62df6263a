// IoT Core - sensor telemetry and LED control backend
//
// This is the main entry point for the IoT Core service. It bridges an
// ESP32 fleet speaking MQTT to a REST API for the dashboard:
//   - telemetry ingestion with validation and SQLite persistence
//   - LED command dispatch with asynchronous confirmation tracking
//   - threshold classification and action history
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/PhucHuwu/iot-core/migrations"

	"github.com/PhucHuwu/iot-core/internal/api"
	"github.com/PhucHuwu/iot-core/internal/control"
	"github.com/PhucHuwu/iot-core/internal/infrastructure/config"
	"github.com/PhucHuwu/iot-core/internal/infrastructure/database"
	"github.com/PhucHuwu/iot-core/internal/infrastructure/influxdb"
	"github.com/PhucHuwu/iot-core/internal/infrastructure/logging"
	"github.com/PhucHuwu/iot-core/internal/infrastructure/mqtt"
	"github.com/PhucHuwu/iot-core/internal/metrics"
	"github.com/PhucHuwu/iot-core/internal/status"
	"github.com/PhucHuwu/iot-core/internal/telemetry"
	"github.com/PhucHuwu/iot-core/internal/timeexpr"
	"github.com/PhucHuwu/iot-core/internal/worker"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error { //nolint:gocognit // linear startup sequence
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting IoT Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Register Prometheus collectors
	metrics.Init()

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Seed threshold defaults (no-op when rows already exist)
	thresholdRepo := status.NewSQLiteRepository(db.DB)
	if seedErr := thresholdRepo.Seed(ctx, status.FromConfig(cfg.Thresholds)); seedErr != nil {
		return fmt.Errorf("seeding thresholds: %w", seedErr)
	}

	// Start the worker pool for store writes off the MQTT callbacks
	pool := worker.New(cfg.Control.Workers, cfg.Control.QueueSize, log)
	defer func() {
		log.Info("draining worker pool")
		pool.Close()
	}()
	log.Info("worker pool started",
		"workers", cfg.Control.Workers,
		"queue_size", cfg.Control.QueueSize,
	)

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	mqttClient.SetLogger(log)

	// Wire the telemetry pipeline to the data topic
	readingRepo := telemetry.NewSQLiteRepository(db.DB)
	ingestor := telemetry.NewIngestor(readingRepo, pool, influxClient, log)
	if subErr := mqttClient.Subscribe(cfg.MQTT.Topics.Data, byte(cfg.MQTT.QoS), ingestor.HandleMessage); subErr != nil {
		return fmt.Errorf("subscribing to data topic: %w", subErr)
	}
	log.Info("telemetry subscription active", "topic", cfg.MQTT.Topics.Data)

	// Wire the command correlator to the status topic
	historyRepo := control.NewSQLiteHistoryRepository(db.DB)
	controller := control.NewController(mqttClient, historyRepo, pool, cfg, log)
	if subErr := mqttClient.Subscribe(cfg.MQTT.Topics.Status, byte(cfg.MQTT.QoS), controller.HandleConfirmation); subErr != nil {
		return fmt.Errorf("subscribing to status topic: %w", subErr)
	}
	log.Info("confirmation subscription active", "topic", cfg.MQTT.Topics.Status)

	// Start the HTTP API
	apiServer, err := api.New(api.Deps{
		Config:     cfg.API,
		Logger:     log,
		Readings:   readingRepo,
		Controller: controller,
		Actions:    historyRepo,
		Toggles:    control.NewStatsService(historyRepo, cfg.Control.Devices, cfg.Location()),
		Status:     status.NewService(thresholdRepo, readingRepo),
		Thresholds: thresholdRepo,
		Resolver:   timeexpr.NewResolver(cfg.Location()),
		MQTT:       mqttClient,
		DB:         db,
		Influx:     influxClient,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. MQTT
	// 3. InfluxDB (if enabled)
	// 4. Worker pool
	// 5. Database

	log.Info("IoT Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses IOTCORE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("IOTCORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
