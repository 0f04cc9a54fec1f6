package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the daemon's full configuration tree, populated from YAML
// with a handful of BLEADV_* environment overrides on top.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Transport TransportConfig `yaml:"transport"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Devices   []DeviceConfig  `yaml:"devices"`
}

// DatabaseConfig covers the SQLite recorder database.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig covers the broker connection.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig locates the broker.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig holds broker credentials. Prefer setting the password
// through BLEADV_MQTT_PASSWORD rather than the file.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig shapes the reconnect backoff, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig covers optional state history. Disabled means the
// daemon runs without history, not an error.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig selects log level, format and destination.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TransportConfig contains transmit queue and radio adapter settings.
type TransportConfig struct {
	// Adapter names the radio adapter the daemon transmits through.
	Adapter string `yaml:"adapter"`

	// QueueDepth bounds the number of pending transmissions.
	QueueDepth int `yaml:"queue_depth"`

	// MaxRetries is how often an unavailable transport is retried per command.
	MaxRetries int `yaml:"max_retries"`

	// RetryBackoffMS is the initial retry backoff in milliseconds.
	RetryBackoffMS int `yaml:"retry_backoff_ms"`
}

// DiscoveryConfig contains discovery and validation settings.
type DiscoveryConfig struct {
	// WindowSeconds is the default passive listening budget.
	WindowSeconds int `yaml:"window_seconds"`

	// ValidationTimeoutSeconds is how long each blink waits for operator
	// confirmation.
	ValidationTimeoutSeconds int `yaml:"validation_timeout_seconds"`
}

// DeviceConfig describes one configured physical device.
type DeviceConfig struct {
	// Name is the stable device identifier used in MQTT topics.
	Name string `yaml:"name"`

	// Codec is the codec identifier selected during validation.
	Codec string `yaml:"codec"`

	// ForcedID addresses the device inside every advertisement.
	ForcedID uint32 `yaml:"forced_id"`

	// Index is the device's sub index.
	Index uint8 `yaml:"index"`

	Entities []EntityConfig `yaml:"entities"`
}

// EntityConfig describes one logical entity of a device. Mirrors
// entity.Config; the daemon wiring converts after validation.
type EntityConfig struct {
	Type           string `yaml:"type"`
	Index          int    `yaml:"index"`
	MinBrightness  uint8  `yaml:"min_brightness"`
	RefreshOnStart bool   `yaml:"refresh_on_start"`
}

// Load builds the configuration in three layers, each overriding the
// last: built-in defaults, the YAML file at path, then BLEADV_*
// environment variables (BLEADV_DATABASE_PATH, BLEADV_MQTT_PASSWORD,
// ...). The merged result is validated before being returned.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// defaultConfig is the baseline every load starts from. A config file
// only needs to state what differs.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/bleadv.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "bleadv-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Transport: TransportConfig{
			Adapter:        "hci0",
			QueueDepth:     32,
			MaxRetries:     3,
			RetryBackoffMS: 250,
		},
		Discovery: DiscoveryConfig{
			WindowSeconds:            20,
			ValidationTimeoutSeconds: 10,
		},
	}
}

// applyEnvOverrides lets deployments inject secrets and per-host paths
// without editing the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BLEADV_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("BLEADV_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("BLEADV_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("BLEADV_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("BLEADV_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// entityTypes is the valid entity type enumeration. Kept in sync with the
// entity package; duplicated here so config stays dependency-free.
var entityTypes = map[string]bool{
	"rgb": true, "cww": true, "cold": true, "warm": true,
	"binary": true, "fan3": true, "fan6": true,
}

// Validate collects every problem rather than stopping at the first,
// so one daemon restart surfaces the whole list.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Transport.Adapter == "" {
		errs = append(errs, "transport.adapter is required")
	}
	if c.Transport.QueueDepth < 1 {
		errs = append(errs, "transport.queue_depth must be at least 1")
	}
	if c.Transport.MaxRetries < 0 {
		errs = append(errs, "transport.max_retries must not be negative")
	}

	if c.Discovery.WindowSeconds < 1 {
		errs = append(errs, "discovery.window_seconds must be at least 1")
	}
	if c.Discovery.ValidationTimeoutSeconds < 1 {
		errs = append(errs, "discovery.validation_timeout_seconds must be at least 1")
	}

	seen := make(map[string]bool)
	for i, d := range c.Devices {
		if d.Name == "" {
			errs = append(errs, fmt.Sprintf("devices[%d].name is required", i))
		} else if seen[d.Name] {
			errs = append(errs, fmt.Sprintf("devices[%d].name %q is duplicated", i, d.Name))
		}
		seen[d.Name] = true
		if d.Codec == "" {
			errs = append(errs, fmt.Sprintf("devices[%d].codec is required", i))
		}
		entIdx := make(map[int]bool)
		for j, e := range d.Entities {
			if !entityTypes[e.Type] {
				errs = append(errs, fmt.Sprintf("devices[%d].entities[%d].type %q is not a valid entity type", i, j, e.Type))
			}
			if e.MinBrightness > 100 {
				errs = append(errs, fmt.Sprintf("devices[%d].entities[%d].min_brightness must be 0-100", i, j))
			}
			if entIdx[e.Index] {
				errs = append(errs, fmt.Sprintf("devices[%d].entities[%d].index %d is duplicated", i, j, e.Index))
			}
			entIdx[e.Index] = true
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetRetryBackoff returns the transport retry backoff as a Duration.
func (c *Config) GetRetryBackoff() time.Duration {
	return time.Duration(c.Transport.RetryBackoffMS) * time.Millisecond
}

// GetDiscoveryWindow returns the discovery listening budget as a Duration.
func (c *Config) GetDiscoveryWindow() time.Duration {
	return time.Duration(c.Discovery.WindowSeconds) * time.Second
}

// GetValidationTimeout returns the per-candidate confirmation timeout.
func (c *Config) GetValidationTimeout() time.Duration {
	return time.Duration(c.Discovery.ValidationTimeoutSeconds) * time.Second
}
