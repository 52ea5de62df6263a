package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for IoT Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	API        APIConfig        `yaml:"api"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
	Control    ControlConfig    `yaml:"control"`
	Time       TimeConfig       `yaml:"time"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	Topics    MQTTTopicsConfig    `yaml:"topics"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`

	// InsecureSkipVerify disables certificate verification.
	// Only for development against self-signed broker certs.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTTopicsConfig contains the topics the ESP32 fleet uses.
type MQTTTopicsConfig struct {
	// Data is the topic sensor telemetry arrives on.
	Data string `yaml:"data"`

	// Control is the topic LED commands are published to.
	Control string `yaml:"control"`

	// Status is the topic devices publish command confirmations on.
	Status string `yaml:"status"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
// Reconnection retries forever with capped exponential backoff.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// InfluxDBConfig contains InfluxDB connection settings.
// When enabled, every stored reading is mirrored as a point.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// ControlConfig contains LED command handling settings.
type ControlConfig struct {
	// Devices is the set of controllable LED identifiers.
	Devices []string `yaml:"devices"`

	// CommandTimeout is how long a sent command stays pending
	// without a confirmation, in seconds.
	CommandTimeout int `yaml:"command_timeout"`

	// Workers is the number of goroutines handling store writes
	// off the MQTT callbacks.
	Workers int `yaml:"workers"`

	// QueueSize is the store-write queue depth. When full,
	// new work is dropped rather than blocking message handling.
	QueueSize int `yaml:"queue_size"`
}

// TimeConfig contains civil time settings.
// The deployment uses a fixed UTC offset, not a tz database zone.
type TimeConfig struct {
	UTCOffsetHours int `yaml:"utc_offset_hours"`
}

// ThresholdsConfig contains default sensor classification bands.
// These seed the thresholds table on first run; the API can update
// them afterwards.
type ThresholdsConfig struct {
	Temperature ThresholdBand `yaml:"temperature"`
	Humidity    ThresholdBand `yaml:"humidity"`
	Light       ThresholdBand `yaml:"light"`
}

// ThresholdBand defines the normal and warning ranges for one metric.
// Values inside [NormalMin, NormalMax] are normal, values inside
// [WarningMin, WarningMax] but outside the normal band are warnings,
// and anything outside the warning band is danger.
type ThresholdBand struct {
	NormalMin  float64 `yaml:"normal_min"`
	NormalMax  float64 `yaml:"normal_max"`
	WarningMin float64 `yaml:"warning_min"`
	WarningMax float64 `yaml:"warning_max"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: IOTCORE_SECTION_KEY
// For example: IOTCORE_DATABASE_PATH, IOTCORE_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/iotcore.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     8883,
				TLS:      true,
				ClientID: "iot-core",
			},
			Topics: MQTTTopicsConfig{
				Data:    "esp32/iot/data",
				Control: "esp32/iot/control",
				Status:  "esp32/iot/action-history",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     120,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Control: ControlConfig{
			Devices:        []string{"LED1", "LED2", "LED3"},
			CommandTimeout: 10,
			Workers:        4,
			QueueSize:      256,
		},
		Time: TimeConfig{
			UTCOffsetHours: 7,
		},
		Thresholds: ThresholdsConfig{
			Temperature: ThresholdBand{NormalMin: 25, NormalMax: 35, WarningMin: 15, WarningMax: 40},
			Humidity:    ThresholdBand{NormalMin: 40, NormalMax: 60, WarningMin: 30, WarningMax: 70},
			Light:       ThresholdBand{NormalMin: 40, NormalMax: 60, WarningMin: 20, WarningMax: 80},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: IOTCORE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("IOTCORE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("IOTCORE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("IOTCORE_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("IOTCORE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("IOTCORE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("IOTCORE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("IOTCORE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("IOTCORE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Topics.Data == "" {
		errs = append(errs, "mqtt.topics.data is required")
	}
	if c.MQTT.Topics.Control == "" {
		errs = append(errs, "mqtt.topics.control is required")
	}
	if c.MQTT.Topics.Status == "" {
		errs = append(errs, "mqtt.topics.status is required")
	}
	if c.MQTT.Reconnect.InitialDelay < 1 {
		errs = append(errs, "mqtt.reconnect.initial_delay must be at least 1 second")
	}
	if c.MQTT.Reconnect.MaxDelay < c.MQTT.Reconnect.InitialDelay {
		errs = append(errs, "mqtt.reconnect.max_delay must be >= initial_delay")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Control validation
	if len(c.Control.Devices) == 0 {
		errs = append(errs, "control.devices must name at least one device")
	}
	for _, d := range c.Control.Devices {
		if strings.Contains(d, "_") {
			errs = append(errs, fmt.Sprintf("control.devices: %q must not contain underscores (reserved as the command separator)", d))
		}
	}
	if c.Control.CommandTimeout < 1 {
		errs = append(errs, "control.command_timeout must be at least 1 second")
	}
	if c.Control.Workers < 1 {
		errs = append(errs, "control.workers must be at least 1")
	}

	// Time validation
	if c.Time.UTCOffsetHours < -12 || c.Time.UTCOffsetHours > 14 {
		errs = append(errs, "time.utc_offset_hours must be between -12 and +14")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetCommandTimeout returns the pending-command expiry as a Duration.
func (c *Config) GetCommandTimeout() time.Duration {
	return time.Duration(c.Control.CommandTimeout) * time.Second
}

// Location returns the fixed-offset time.Location used for civil
// timestamps in queries and display.
func (c *Config) Location() *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", c.Time.UTCOffsetHours), c.Time.UTCOffsetHours*3600)
}
