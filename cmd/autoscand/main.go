// autoscand pairs barcode scans from handheld scanners and books the
// resulting item/location pairs into the inventory database.
//
// It talks to the vendor scanner gateway over MQTT, routes every scan to
// the device that produced it, and runs inventory updates over SSH (or
// against a local database file) when an identifier meets a location.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/autoscan-core/internal/driver"
	"github.com/nerrad567/autoscan-core/internal/history"
	"github.com/nerrad567/autoscan-core/internal/infrastructure/config"
	"github.com/nerrad567/autoscan-core/internal/infrastructure/database"
	"github.com/nerrad567/autoscan-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/autoscan-core/internal/infrastructure/logging"
	"github.com/nerrad567/autoscan-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/autoscan-core/internal/inventory"
	"github.com/nerrad567/autoscan-core/internal/process"
	"github.com/nerrad567/autoscan-core/internal/scanner"
	"github.com/nerrad567/autoscan-core/migrations"
)

// Set at build time via -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the service together and blocks until ctx is cancelled.
// Deferred cleanups run in reverse order of start.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting autoscand", "version", version, "commit", commit, "build_date", date)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "level", cfg.Logging.Level)

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if err := db.Migrate(ctx, migrations.History); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("history database ready", "path", cfg.Database.Path)

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
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
	mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	influxClient, err := connectInflux(cfg.InfluxDB, log)
	if err != nil {
		return err
	}
	if influxClient != nil {
		defer influxClient.Close()
	}

	gateway, err := driver.NewGateway(driver.GatewayOptions{
		GatewayID:  cfg.Gateway.ID,
		MQTTClient: &mqttAdapter{client: mqttClient},
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("creating gateway driver: %w", err)
	}
	if err := gateway.Start(); err != nil {
		return fmt.Errorf("starting gateway driver: %w", err)
	}

	if cfg.Gateway.Managed {
		mgr := process.NewManager(process.ForGateway(cfg.Gateway, func(ctx context.Context) error {
			_, err := gateway.Devices(ctx)
			return err
		}))
		mgr.SetLogger(log)
		if err := mgr.Start(ctx); err != nil {
			return fmt.Errorf("starting scanner gateway: %w", err)
		}
		defer func() {
			log.Info("stopping scanner gateway")
			if stopErr := mgr.Stop(); stopErr != nil {
				log.Error("error stopping scanner gateway", "error", stopErr)
			}
		}()
	}

	inv, err := newInventoryClient(cfg.Inventory, cfg.Database.BusyTimeout)
	if err != nil {
		return err
	}
	defer inv.Close()
	if err := inv.Connect(ctx); err != nil {
		// Not fatal: every completed pair retries the connection.
		log.Warn("inventory not reachable yet", "mode", cfg.Inventory.Mode, "error", err)
	}

	opts := scanner.Options{
		Driver:              gateway,
		Inventory:           inv,
		History:             history.NewSQLiteRepository(db.DB),
		ScanTimeout:         cfg.Scanner.Timeout,
		RetainMultiLocation: cfg.Scanner.MultiLocationRetain,
		UpdateTimeout:       cfg.Inventory.UpdateTimeout,
		EventBuffer:         cfg.Scanner.EventBuffer,
		Configurator:        configuratorOptions(cfg),
		Logger:              log,
	}
	if influxClient != nil {
		opts.Telemetry = influxClient
	}
	svc, err := scanner.NewService(opts)
	if err != nil {
		return fmt.Errorf("creating scanner service: %w", err)
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("starting scanner service: %w", err)
	}
	defer svc.Stop()

	reporter := scanner.NewHealthReporter(scanner.HealthReporterConfig{
		SiteID:    cfg.Site.ID,
		GatewayID: cfg.Gateway.ID,
		Version:   version,
		Topic:     gateway.Topics().Health(),
		Interval:  cfg.Scanner.HealthInterval,
		Publisher: mqttClient,
		Source:    svc,
	})
	reporter.SetLogger(log)
	if err := reporter.PublishStarting(); err != nil {
		log.Warn("publishing starting status failed", "error", err)
	}
	reporter.Start(ctx)
	defer reporter.Stop()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	log.Info("autoscand running", "site", cfg.Site.ID, "gateway", cfg.Gateway.ID)
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns AUTOSCAN_CONFIG or the default path.
func getConfigPath() string {
	if path := os.Getenv("AUTOSCAN_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// connectInflux returns nil without error when telemetry is disabled.
func connectInflux(cfg config.InfluxDBConfig, log *logging.Logger) (*influxdb.Client, error) {
	client, err := influxdb.Connect(cfg)
	if errors.Is(err, influxdb.ErrDisabled) {
		log.Info("InfluxDB disabled")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected", "url", cfg.URL, "org", cfg.Org, "bucket", cfg.Bucket)
	return client, nil
}

func newInventoryClient(cfg config.InventoryConfig, busyTimeout int) (inventory.Client, error) {
	switch cfg.Mode {
	case "ssh":
		return inventory.NewSSHClient(cfg), nil
	case "local":
		return inventory.NewLocalClient(cfg.Database, busyTimeout), nil
	default:
		return nil, fmt.Errorf("unknown inventory mode %q", cfg.Mode)
	}
}

func configuratorOptions(cfg *config.Config) scanner.ConfiguratorOptions {
	return scanner.ConfiguratorOptions{
		PrefixBase:       cfg.Scanner.Prefix(),
		CradleModel:      cfg.Scanner.CradleModel,
		PrefixAttribute:  cfg.Scanner.PrefixAttribute,
		FormatAttribute:  cfg.Scanner.FormatAttribute,
		FormatValue:      cfg.Scanner.FormatValue,
		DeviceAttributes: attributes(cfg.Scanner.DeviceAttributes),
		CradleAttributes: attributes(cfg.Scanner.CradleAttributes),
		QueueSize:        cfg.Scanner.QueueSize,
		ListTimeout:      cfg.Gateway.CommandTimeout,
	}
}

func attributes(in []config.AttributeConfig) []driver.Attribute {
	if len(in) == 0 {
		return nil
	}
	out := make([]driver.Attribute, len(in))
	for i, a := range in {
		out[i] = driver.Attribute{ID: a.ID, Type: a.Type, Value: a.Value}
	}
	return out
}

// healthCheck verifies the infrastructure connections after startup.
// influxClient may be nil.
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

// mqttAdapter adapts the MQTT client to driver.MQTTClient, whose handlers
// return nothing.
type mqttAdapter struct {
	client *mqtt.Client
}

func (a *mqttAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

func (a *mqttAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

func (a *mqttAdapter) IsConnected() bool {
	return a.client.IsConnected()
}
