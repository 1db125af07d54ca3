// Smart Home Core - device state service
//
// This is the main entry point for the smart home core. Each replica:
//   - Serves the device REST API and a websocket change feed
//   - Replicates device mutations to and from its peers over MQTT
//   - Tracks device usage intervals in a shared key-value store
//   - Exports per-device Prometheus metrics
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	_ "github.com/nadavnv/smart-home-core/migrations"

	"github.com/nadavnv/smart-home-core/internal/api"
	"github.com/nadavnv/smart-home-core/internal/audit"
	"github.com/nadavnv/smart-home-core/internal/auth"
	"github.com/nadavnv/smart-home-core/internal/device"
	"github.com/nadavnv/smart-home-core/internal/infrastructure/config"
	"github.com/nadavnv/smart-home-core/internal/infrastructure/database"
	"github.com/nadavnv/smart-home-core/internal/infrastructure/influxdb"
	"github.com/nadavnv/smart-home-core/internal/infrastructure/logging"
	"github.com/nadavnv/smart-home-core/internal/infrastructure/mqtt"
	"github.com/nadavnv/smart-home-core/internal/infrastructure/postgres"
	"github.com/nadavnv/smart-home-core/internal/infrastructure/redis"
	"github.com/nadavnv/smart-home-core/internal/metrics"
	"github.com/nadavnv/smart-home-core/internal/replication"
	"github.com/nadavnv/smart-home-core/internal/usage"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// stores is the persistence selected by database.driver.
type stores struct {
	devices device.Repository
	users   auth.UserRepository
	audit   audit.Repository
	health  api.HealthCheck
	close   func()
}

// run is the actual application logic, separated from main for testability.
// Deferred Close calls run in reverse order of construction.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting smart home core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	registry := device.NewRegistry(st.devices)
	registry.SetLogger(log.Component("registry"))

	// Usage tracker
	kv, kvHealth, closeKV, err := openKVStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeKV()
	tracker := usage.NewTracker(kv)

	// Metrics
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	deviceMetrics := metrics.NewDeviceMetrics(metrics.NewCollector(promReg), tracker)
	deviceMetrics.SetLogger(log.Component("metrics"))
	httpMetrics := metrics.NewHTTPMetrics(promReg)

	// InfluxDB history (optional)
	var history *influxdb.Writer
	if cfg.InfluxDB.Enabled {
		history, err = influxdb.Open(cfg.InfluxDB, log.Component("influxdb"))
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := history.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		deviceMetrics.SetHistory(history)
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	// Auth
	authService := auth.NewService(st.users, cfg.Security.JWT.Secret, cfg.GetAccessTokenTTL())
	if _, err := auth.SeedAdmin(ctx, st.users, cfg.Security.Admin.Username, cfg.Security.Admin.Password, log.Logger); err != nil {
		return fmt.Errorf("seeding admin account: %w", err)
	}

	// Replication bus. The broker may be down at startup; mutations queue
	// in the outbox until the first connection.
	mqttClient := mqtt.New(cfg.MQTT)
	mqttClient.SetLogger(log.Component("mqtt"))
	bus := replication.New(mqttClient, registry, replication.Options{
		SenderID:    mqttClient.ClientID(),
		TopicPrefix: cfg.MQTT.TopicPrefix,
		SharedGroup: cfg.MQTT.SharedGroup,
		QoS:         mqttClient.QoS(),
	})
	bus.SetLogger(log.Component("replication"))
	if err := bus.Start(ctx); err != nil {
		return fmt.Errorf("starting replication bus: %w", err)
	}
	defer func() {
		log.Info("closing replication bus")
		if closeErr := bus.Close(); closeErr != nil {
			log.Error("error closing replication bus", "error", closeErr)
		}
	}()

	// API
	var historyHealth api.HealthCheck
	if history != nil {
		historyHealth = history.HealthCheck
	}
	ready := readinessChecks(st.health, bus.HealthCheck, kvHealth, historyHealth)

	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Logger:      log,
		Registry:    registry,
		Auth:        authService,
		Observer:    deviceMetrics,
		Audit:       st.audit,
		HTTPMetrics: httpMetrics,
		Gatherer:    promReg,
		Ready:       ready,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	recorder := audit.NewRecorder(st.audit)
	recorder.SetLogger(log.Component("audit"))

	registry.AddObserver(deviceMetrics)
	registry.AddObserver(recorder)
	registry.AddObserver(bus)
	registry.AddObserver(server.Hub())

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	return nil
}

// getConfigPath returns the configuration file path.
// Uses SMARTHOME_CONFIG environment variable if set, otherwise default.
// readinessChecks names the /readyz checks. Redis and InfluxDB are
// optional and only checked when enabled (non-nil).
func readinessChecks(database, broker, redis, influx api.HealthCheck) map[string]api.HealthCheck {
	ready := map[string]api.HealthCheck{
		"database": database,
		"mqtt":     broker,
	}
	if redis != nil {
		ready["redis"] = redis
	}
	if influx != nil {
		ready["influxdb"] = influx
	}
	return ready
}

func getConfigPath() string {
	if path := os.Getenv("SMARTHOME_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// openStores opens the device and user stores for cfg.Database.Driver.
func openStores(ctx context.Context, cfg *config.Config, log *logging.Logger) (*stores, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, cfg.Database.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info("postgres connected")
		return &stores{
			devices: device.NewPostgresRepository(pool),
			users:   auth.NewPostgresUserRepository(pool),
			audit:   audit.NewPostgresRepository(pool),
			health:  func(ctx context.Context) error { return postgres.HealthCheck(ctx, pool) },
			close:   closer(log, "postgres", pool),
		}, nil

	case config.DriverMemory:
		// Users and the audit trail still need durable storage; keep them in SQLite.
		db, err := openSQLite(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		log.Warn("device store is in memory, devices are lost on restart")
		return &stores{
			devices: device.NewMemoryRepository(),
			users:   auth.NewUserRepository(db.DB),
			audit:   audit.NewSQLiteRepository(db.DB),
			health:  db.HealthCheck,
			close:   closer(log, "database", db),
		}, nil

	default:
		db, err := openSQLite(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return &stores{
			devices: device.NewSQLiteRepository(db.DB),
			users:   auth.NewUserRepository(db.DB),
			audit:   audit.NewSQLiteRepository(db.DB),
			health:  db.HealthCheck,
			close:   closer(log, "database", db),
		}, nil
	}
}

func openSQLite(ctx context.Context, cfg *config.Config, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(database.ConfigFrom(cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database connected", "path", cfg.Database.Path)
	return db, nil
}

// openKVStore returns the usage tracker store. Without Redis, usage state is
// local to this replica and the returned health check is nil.
func openKVStore(ctx context.Context, cfg *config.Config, log *logging.Logger) (usage.KVStore, api.HealthCheck, func(), error) {
	if !cfg.Redis.Enabled {
		log.Warn("redis disabled, usage tracking is local to this replica")
		return usage.NewMemoryStore(), nil, func() {}, nil
	}

	store, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, nil, err
	}
	log.Info("redis connected", "addr", cfg.Redis.Addr)
	return store, store.HealthCheck, closer(log, "redis", store), nil
}

// closer returns a func that closes c and logs the outcome.
func closer(log *logging.Logger, name string, c any) func() {
	return func() {
		log.Info("closing " + name)
		switch v := c.(type) {
		case *pgxpool.Pool:
			v.Close()
		case interface{ Close() error }:
			if err := v.Close(); err != nil {
				log.Error("error closing "+name, "error", err)
			}
		}
	}
}
