package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MinWorkers is the smallest worker pool that lets the default-scene loop,
// one trigger evaluation and one running chain make progress together.
const MinWorkers = 3

// Config is the root configuration structure for the rules engine.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Engine   EngineConfig   `yaml:"engine"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Notify   NotifyConfig   `yaml:"notify"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// EngineConfig contains scheduler settings.
type EngineConfig struct {
	// RulesFile is the YAML rule set loaded at startup.
	RulesFile string `yaml:"rules_file"`

	// Workers bounds the shared worker pool. Minimum MinWorkers.
	Workers int `yaml:"workers"`

	// IdleSpin is the default-scene loop delay in milliseconds while a
	// chain is in flight or the default scene has no interval.
	IdleSpin int `yaml:"idle_spin"`

	// Catalogue lists state names a producer may emit even when no rule
	// references them. They are accepted by the registry but never dispatch.
	Catalogue []string `yaml:"catalogue"`

	// TemplateLibrary enables lookup of templates stored in the database
	// after the rule file's own templates.
	TemplateLibrary bool `yaml:"template_library"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
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

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// NotifyConfig controls publication of chain events and notification rules.
type NotifyConfig struct {
	Enabled bool `yaml:"enabled"`
	// Events publishes every dispatch and completion, not only matching rules.
	Events bool `yaml:"events"`
}

// InfluxDBConfig contains fact history settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"` // seconds
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYRULES_SECTION_KEY
// For example: GRAYRULES_DATABASE_PATH, GRAYRULES_ENGINE_WORKERS
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration with environment overrides
// applied. It is used when no config file is given.
func Default() (*Config, error) {
	cfg := defaultConfig()
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			RulesFile: "./configs/rules.yaml",
			Workers:   4,
			IdleSpin:  50,
		},
		Database: DatabaseConfig{
			Path:        "./data/grayrules.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "grayrules",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Notify: NotifyConfig{
			Enabled: true,
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Org:           "grayrules",
			Bucket:        "history",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYRULES_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	// Engine
	if v := os.Getenv("GRAYRULES_ENGINE_RULES_FILE"); v != "" {
		cfg.Engine.RulesFile = v
	}
	if v := os.Getenv("GRAYRULES_ENGINE_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GRAYRULES_ENGINE_WORKERS: %w", err)
		}
		cfg.Engine.Workers = n
	}

	// Database
	if v := os.Getenv("GRAYRULES_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GRAYRULES_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYRULES_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYRULES_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("GRAYRULES_INFLUXDB_URL"); v != "" {
		cfg.InfluxDB.URL = v
	}
	if v := os.Getenv("GRAYRULES_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("GRAYRULES_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	return nil
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Engine.RulesFile == "" {
		errs = append(errs, "engine.rules_file is required")
	}
	if c.Engine.Workers < MinWorkers {
		errs = append(errs, fmt.Sprintf("engine.workers must be at least %d", MinWorkers))
	}
	if c.Engine.IdleSpin <= 0 {
		errs = append(errs, "engine.idle_spin must be positive")
	}

	if c.Engine.TemplateLibrary && c.Database.Path == "" {
		errs = append(errs, "database.path is required when engine.template_library is set")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required")
		}
		if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
			errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
		}
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required")
		}
		if c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.org and influxdb.bucket are required")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// IdleSpinDuration returns the engine idle spin as a Duration.
func (c *Config) IdleSpinDuration() time.Duration {
	return time.Duration(c.Engine.IdleSpin) * time.Millisecond
}
