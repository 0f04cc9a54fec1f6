// ble-adv-core daemon
//
// bleadvd controls BLE-advertising lights and fans over MQTT. It encodes
// vendor advertisement frames for configured devices, mirrors peer remote
// traffic back into entity state, and runs passive discovery for pairing
// new devices.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/ble-adv-core/migrations"

	"github.com/nerrad567/ble-adv-core/internal/bridge"
	"github.com/nerrad567/ble-adv-core/internal/codecs"
	"github.com/nerrad567/ble-adv-core/internal/entity"
	"github.com/nerrad567/ble-adv-core/internal/infrastructure/config"
	"github.com/nerrad567/ble-adv-core/internal/infrastructure/database"
	"github.com/nerrad567/ble-adv-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/ble-adv-core/internal/infrastructure/logging"
	"github.com/nerrad567/ble-adv-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/ble-adv-core/internal/recorder"
	"github.com/nerrad567/ble-adv-core/internal/transport"
)

// Stamped at build time:
//
//	go build -ldflags "-X main.version=0.3.0 -X main.commit=$(git rev-parse --short HEAD)"
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
		fmt.Fprintf(os.Stderr, "bleadvd: %v\n", err)
		os.Exit(1)
	}
}

// run holds the whole daemon lifecycle so main stays a thin exit-code
// wrapper. Shutdown is the deferred closes unwinding in reverse start
// order once ctx is cancelled.
func run(ctx context.Context) error {
	// Config isn't loaded yet, so start on the default logger.
	log := logging.Default()
	log.Info("starting bleadvd",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger ready",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(ctx, database.Config{
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
	log.Info("database open", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("schema up to date")

	rec := recorder.New(db.DB)
	rec.SetLogger(log)
	if startErr := rec.Start(); startErr != nil {
		return fmt.Errorf("starting traffic recorder: %w", startErr)
	}
	defer func() {
		log.Info("stopping traffic recorder")
		rec.Stop()
	}()

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to broker: %w", err)
	}
	defer func() {
		log.Info("disconnecting from broker")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing broker connection", "error", closeErr)
		}
	}()
	log.Info("broker connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("broker connection restored")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("broker connection lost", "error", err)
	})

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to influxdb: %w", err)
		}
		defer func() {
			log.Info("closing influxdb")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing influxdb", "error", closeErr)
			}
		}()
		log.Info("state history enabled",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("state history write failed", "error", err)
		})
	} else {
		log.Info("state history disabled")
	}

	// Codec registry and per-identity session counters
	registry := codecs.DefaultRegistry()
	counters := codecs.NewCounterStore()
	log.Info("codec registry initialised", "codecs", len(registry.Codecs()))

	// Transmit queue feeding the radio adapter over MQTT
	adapter := bridge.NewAdapterTransmitter(
		&brokerAdapter{client: mqttClient},
		cfg.Transport.Adapter,
		byte(cfg.MQTT.QoS),
	)
	queue := transport.NewQueue(transport.Config{
		QueueDepth:   cfg.Transport.QueueDepth,
		MaxRetries:   cfg.Transport.MaxRetries,
		RetryBackoff: cfg.GetRetryBackoff(),
	}, adapter)
	queue.SetLogger(log)
	queue.Start(ctx)
	defer func() {
		log.Info("stopping transmit queue")
		queue.Stop()
	}()
	log.Info("transmit queue started",
		"adapter", cfg.Transport.Adapter,
		"queue_depth", cfg.Transport.QueueDepth,
	)

	// Start the MQTT bridge
	b, err := startBridge(cfg, mqttClient, registry, counters, queue, rec, influxClient, log)
	if err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		b.Stop()
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check: %w", err)
	}

	log.Info("bleadvd running")
	<-ctx.Done()
	log.Info("shutting down")

	return nil
}

// getConfigPath honours BLEADV_CONFIG so deployments can relocate the
// config file without a flag.
func getConfigPath() string {
	if path := os.Getenv("BLEADV_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck probes every backing service once after startup, before
// the daemon reports itself running.
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

// startBridge builds the device inventory from configuration and starts
// the MQTT bridge on top of the shared codec registry and transmit queue.
func startBridge(cfg *config.Config, mqttClient *mqtt.Client, registry *codecs.Registry, counters *codecs.CounterStore, queue *transport.Queue, rec *recorder.Recorder, influxClient *influxdb.Client, log *logging.Logger) (*bridge.Bridge, error) {
	devices := make([]bridge.Device, len(cfg.Devices))
	for i, d := range cfg.Devices {
		entities := make([]entity.Config, len(d.Entities))
		for j, e := range d.Entities {
			entities[j] = entity.Config{
				Type:           entity.Type(e.Type),
				Index:          e.Index,
				MinBrightness:  e.MinBrightness,
				RefreshOnStart: e.RefreshOnStart,
			}
		}
		devices[i] = bridge.Device{
			Name:     d.Name,
			Codec:    d.Codec,
			ID:       d.ForcedID,
			Index:    d.Index,
			Entities: entities,
		}
	}

	opts := bridge.Options{
		Devices:           devices,
		MQTT:              &brokerAdapter{client: mqttClient},
		Registry:          registry,
		Counters:          counters,
		Queue:             queue,
		Recorder:          rec,
		ValidationTimeout: cfg.GetValidationTimeout(),
		QoS:               byte(cfg.MQTT.QoS),
		Logger:            log,
	}
	// History stays nil when InfluxDB is disabled; a typed nil pointer in
	// the interface would dodge the bridge's nil checks.
	if influxClient != nil {
		opts.History = influxClient
	}

	b, err := bridge.New(opts)
	if err != nil {
		return nil, fmt.Errorf("creating bridge: %w", err)
	}

	if err := b.Start(); err != nil {
		return nil, fmt.Errorf("starting bridge: %w", err)
	}
	log.Info("bridge started", "devices", len(devices))

	return b, nil
}

// brokerAdapter bridges the infrastructure MQTT client to
// bridge.MQTTClient. The two interfaces differ only in the Subscribe
// handler: the infrastructure client takes its named MessageHandler
// type, the bridge a plain func signature.
type brokerAdapter struct {
	client *mqtt.Client
}

func (a *brokerAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

func (a *brokerAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error {
	return a.client.Subscribe(topic, qos, handler)
}

func (a *brokerAdapter) IsConnected() bool {
	return a.client.IsConnected()
}
