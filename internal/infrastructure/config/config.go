package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for PulseGrid Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site       SiteConfig       `yaml:"site"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
	Resilience ResilienceConfig `yaml:"resilience"`
	EventLog   EventLogConfig   `yaml:"eventlog"`
}

// SiteConfig contains deployment-specific identity information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings for the device registry.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
//
// When Stub is true no broker session is established: Connect returns a
// client whose publishes succeed without network I/O. This is the default
// for the ingest harness, where transport is out of scope.
type MQTTConfig struct {
	Stub      bool                `yaml:"stub"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings for signal export.
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

// ResilienceConfig contains retry and circuit breaker settings.
type ResilienceConfig struct {
	// RetryAttempts is the maximum attempts per retryable operation.
	RetryAttempts int `yaml:"retry_attempts"`

	// BackoffBaseMs is the base delay in milliseconds for exponential backoff.
	BackoffBaseMs int `yaml:"backoff_base_ms"`

	// CircuitBreakerThreshold is the consecutive-error count that trips the breaker.
	CircuitBreakerThreshold int `yaml:"circuit_breaker_threshold"`

	// CircuitBreakerTimeoutMs is the cooldown after which an open circuit
	// may admit a probing attempt.
	CircuitBreakerTimeoutMs int `yaml:"circuit_breaker_timeout_ms"`
}

// EventLogConfig contains event log actor settings.
type EventLogConfig struct {
	// BufferSize is the mailbox capacity. Records beyond capacity are
	// dropped rather than blocking callers.
	BufferSize int `yaml:"buffer_size"`

	// SummaryIntervalSeconds is how often the throughput summary is logged.
	SummaryIntervalSeconds int `yaml:"summary_interval_seconds"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: PULSEGRID_SECTION_KEY
// For example: PULSEGRID_DATABASE_PATH, PULSEGRID_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

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

// Default returns a Config with sensible defaults.
//
// The defaults are usable without a config file: MQTT runs in stub mode
// and InfluxDB export is disabled.
func Default() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "PulseGrid",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/pulsegrid.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Stub: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "pulsegrid-core",
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
		Resilience: ResilienceConfig{
			RetryAttempts:           3,
			BackoffBaseMs:           1000,
			CircuitBreakerThreshold: 5,
			CircuitBreakerTimeoutMs: 30000,
		},
		EventLog: EventLogConfig{
			BufferSize:             1024,
			SummaryIntervalSeconds: 60,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: PULSEGRID_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("PULSEGRID_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("PULSEGRID_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("PULSEGRID_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("PULSEGRID_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("PULSEGRID_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("PULSEGRID_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Resilience
	if v := os.Getenv("PULSEGRID_RETRY_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Resilience.RetryAttempts = n
		}
	}
	if v := os.Getenv("PULSEGRID_BACKOFF_BASE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Resilience.BackoffBaseMs = n
		}
	}
	if v := os.Getenv("PULSEGRID_CIRCUIT_BREAKER_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Resilience.CircuitBreakerThreshold = n
		}
	}
	if v := os.Getenv("PULSEGRID_CIRCUIT_BREAKER_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Resilience.CircuitBreakerTimeoutMs = n
		}
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if !c.MQTT.Stub {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when stub mode is disabled")
		}
		if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
			errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
		}
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when enabled")
		}
	}

	if c.Resilience.RetryAttempts < 1 {
		errs = append(errs, "resilience.retry_attempts must be at least 1")
	}
	if c.Resilience.BackoffBaseMs < 0 {
		errs = append(errs, "resilience.backoff_base_ms must not be negative")
	}
	if c.Resilience.CircuitBreakerThreshold < 1 {
		errs = append(errs, "resilience.circuit_breaker_threshold must be at least 1")
	}
	if c.Resilience.CircuitBreakerTimeoutMs < 0 {
		errs = append(errs, "resilience.circuit_breaker_timeout_ms must not be negative")
	}

	if c.EventLog.BufferSize < 1 {
		errs = append(errs, "eventlog.buffer_size must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// BackoffBase returns the backoff base as a Duration.
func (c *ResilienceConfig) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseMs) * time.Millisecond
}

// CircuitBreakerTimeout returns the breaker cooldown as a Duration.
func (c *ResilienceConfig) CircuitBreakerTimeout() time.Duration {
	return time.Duration(c.CircuitBreakerTimeoutMs) * time.Millisecond
}

// SummaryInterval returns the event log summary interval as a Duration.
func (c *EventLogConfig) SummaryInterval() time.Duration {
	return time.Duration(c.SummaryIntervalSeconds) * time.Second
}
