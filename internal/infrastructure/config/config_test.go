package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	// Create a temporary config file
	content := `
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
devices:
  - name: "kitchen"
    codec: "zhijia_v2"
    forced_id: 0x123456
    index: 0
    entities:
      - type: "cww"
        index: 0
        min_brightness: 3
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}

	if len(cfg.Devices) != 1 {
		t.Fatalf("len(Devices) = %d, want 1", len(cfg.Devices))
	}
	if cfg.Devices[0].ForcedID != 0x123456 {
		t.Errorf("Devices[0].ForcedID = %#x, want 0x123456", cfg.Devices[0].ForcedID)
	}
	if cfg.Devices[0].Entities[0].MinBrightness != 3 {
		t.Errorf("Entities[0].MinBrightness = %d, want 3", cfg.Devices[0].Entities[0].MinBrightness)
	}
}

func TestLoad_DefaultsApply(t *testing.T) {
	content := `
database:
  path: "/tmp/test.db"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.Transport.QueueDepth != 32 {
		t.Errorf("Transport.QueueDepth = %d, want 32", cfg.Transport.QueueDepth)
	}
	if cfg.Transport.Adapter != "hci0" {
		t.Errorf("Transport.Adapter = %q, want %q", cfg.Transport.Adapter, "hci0")
	}
	if cfg.Discovery.WindowSeconds != 20 {
		t.Errorf("Discovery.WindowSeconds = %d, want 20", cfg.Discovery.WindowSeconds)
	}
	if cfg.Discovery.ValidationTimeoutSeconds != 10 {
		t.Errorf("Discovery.ValidationTimeoutSeconds = %d, want 10", cfg.Discovery.ValidationTimeoutSeconds)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
database:
  path: ""
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty database.path, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Database.Path = "/data/bleadv.db"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "empty adapter",
			mutate:  func(c *Config) { c.Transport.Adapter = "" },
			wantErr: true,
		},
		{
			name:    "queue depth zero",
			mutate:  func(c *Config) { c.Transport.QueueDepth = 0 },
			wantErr: true,
		},
		{
			name:    "negative retries",
			mutate:  func(c *Config) { c.Transport.MaxRetries = -1 },
			wantErr: true,
		},
		{
			name:    "zero discovery window",
			mutate:  func(c *Config) { c.Discovery.WindowSeconds = 0 },
			wantErr: true,
		},
		{
			name: "device without name",
			mutate: func(c *Config) {
				c.Devices = []DeviceConfig{{Codec: "zhijia_v1"}}
			},
			wantErr: true,
		},
		{
			name: "device without codec",
			mutate: func(c *Config) {
				c.Devices = []DeviceConfig{{Name: "kitchen"}}
			},
			wantErr: true,
		},
		{
			name: "duplicate device names",
			mutate: func(c *Config) {
				c.Devices = []DeviceConfig{
					{Name: "kitchen", Codec: "zhijia_v1"},
					{Name: "kitchen", Codec: "zhijia_v2"},
				}
			},
			wantErr: true,
		},
		{
			name: "invalid entity type",
			mutate: func(c *Config) {
				c.Devices = []DeviceConfig{{
					Name:  "kitchen",
					Codec: "zhijia_v1",
					Entities: []EntityConfig{
						{Type: "dimmer"},
					},
				}}
			},
			wantErr: true,
		},
		{
			name: "min brightness over 100",
			mutate: func(c *Config) {
				c.Devices = []DeviceConfig{{
					Name:  "kitchen",
					Codec: "zhijia_v1",
					Entities: []EntityConfig{
						{Type: "cww", MinBrightness: 101},
					},
				}}
			},
			wantErr: true,
		},
		{
			name: "valid fan entity",
			mutate: func(c *Config) {
				c.Devices = []DeviceConfig{{
					Name:  "bedroom",
					Codec: "fanlamp_pro_v2",
					Entities: []EntityConfig{
						{Type: "fan6", Index: 1},
					},
				}}
			},
			wantErr: false,
		},
		{
			name: "duplicate entity index",
			mutate: func(c *Config) {
				c.Devices = []DeviceConfig{{
					Name:  "bedroom",
					Codec: "zhijia_v2_split",
					Entities: []EntityConfig{
						{Type: "cold", Index: 0},
						{Type: "warm", Index: 0},
					},
				}}
			},
			wantErr: true,
		},
		{
			name: "split halves on distinct indexes",
			mutate: func(c *Config) {
				c.Devices = []DeviceConfig{{
					Name:  "bedroom",
					Codec: "zhijia_v2_split",
					Entities: []EntityConfig{
						{Type: "cold", Index: 0},
						{Type: "warm", Index: 1},
					},
				}}
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetDurations(t *testing.T) {
	cfg := &Config{
		Transport: TransportConfig{RetryBackoffMS: 250},
		Discovery: DiscoveryConfig{
			WindowSeconds:            20,
			ValidationTimeoutSeconds: 10,
		},
	}

	if got := cfg.GetRetryBackoff().Milliseconds(); got != 250 {
		t.Errorf("GetRetryBackoff() = %vms, want 250", got)
	}

	if got := cfg.GetDiscoveryWindow().Seconds(); got != 20 {
		t.Errorf("GetDiscoveryWindow() = %v, want 20", got)
	}

	if got := cfg.GetValidationTimeout().Seconds(); got != 10 {
		t.Errorf("GetValidationTimeout() = %v, want 10", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	// Set environment variables
	t.Setenv("BLEADV_DATABASE_PATH", "/custom/path.db")
	t.Setenv("BLEADV_MQTT_HOST", "mqtt.example.com")
	t.Setenv("BLEADV_MQTT_USERNAME", "testuser")
	t.Setenv("BLEADV_MQTT_PASSWORD", "testpass")
	t.Setenv("BLEADV_INFLUXDB_TOKEN", "secret-token")

	applyEnvOverrides(cfg)

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}
	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
}

func TestApplyEnvOverrides_EmptyValuesIgnored(t *testing.T) {
	cfg := defaultConfig()
	original := cfg.Database.Path

	t.Setenv("BLEADV_DATABASE_PATH", "")

	applyEnvOverrides(cfg)

	if cfg.Database.Path != original {
		t.Errorf("Database.Path = %q, want unchanged %q", cfg.Database.Path, original)
	}
}
