package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dzpanel/dzpanel/internal/dayz"
)

// Config is the root configuration structure for dzpanel.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
	WS       WebSocketConfig  `yaml:"websocket"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
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

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// ServerConfig contains game-server supervision settings.
type ServerConfig struct {
	// InstallDir is the DayZ server installation directory.
	// The server executable is expected at <install_dir>/DayZServer.
	InstallDir string `yaml:"install_dir"`

	// Executable overrides the server binary name within InstallDir.
	Executable string `yaml:"executable"`

	// GracePeriod is how long to wait after spawning before declaring the
	// server running. A process that dies inside this window is a failed start.
	GracePeriod time.Duration `yaml:"grace_period"`

	// GracefulTimeout is how long to wait for SIGTERM before SIGKILL.
	GracefulTimeout time.Duration `yaml:"graceful_timeout"`

	// RestartInterval is the scheduled-restart interval. Zero disables it.
	RestartInterval time.Duration `yaml:"restart_interval"`

	// SettleDelay is the pause between stop and start during a scheduled restart.
	SettleDelay time.Duration `yaml:"settle_delay"`

	// ConsoleLines is the number of captured output lines to retain.
	ConsoleLines int `yaml:"console_lines"`

	// Launch is the initial game launch configuration. Fields absent from
	// the YAML keep their stock defaults.
	Launch dayz.Config `yaml:"launch"`

	// Mods is the initial ordered mod list.
	Mods []string `yaml:"mods"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MQTTConfig contains MQTT broker connection settings for lifecycle
// notifications. Disabled by default.
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

// MetricsConfig contains InfluxDB connection settings for status samples.
// Disabled by default.
type MetricsConfig struct {
	Enabled       bool          `yaml:"enabled"`
	URL           string        `yaml:"url"`
	Token         string        `yaml:"token"`
	Org           string        `yaml:"org"`
	Bucket        string        `yaml:"bucket"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval int           `yaml:"flush_interval"`
	Interval      time.Duration `yaml:"interval"`
}

// Load reads configuration from a YAML file and applies environment variable
// overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: DZPANEL_SECTION_KEY
// For example: DZPANEL_API_PORT, DZPANEL_SERVER_DIR.
//
// An empty path skips the YAML step entirely, so the panel can run from
// defaults plus environment variables alone.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
			WS: WebSocketConfig{
				MaxMessageSize: 8192,
				PingInterval:   30,
				PongTimeout:    10,
			},
		},
		Server: ServerConfig{
			InstallDir:      "/opt/dayz-server",
			Executable:      "DayZServer",
			GracePeriod:     10 * time.Second,
			GracefulTimeout: 30 * time.Second,
			RestartInterval: 4 * time.Hour,
			SettleDelay:     5 * time.Second,
			ConsoleLines:    500,
			Launch:          dayz.DefaultConfig(),
		},
		Database: DatabaseConfig{
			Path:        "./data/dzpanel.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "dzpanel",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Metrics: MetricsConfig{
			BatchSize:     100,
			FlushInterval: 10,
			Interval:      30 * time.Second,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: DZPANEL_SECTION_KEY.
func applyEnvOverrides(cfg *Config) {
	// API
	if v := os.Getenv("DZPANEL_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("DZPANEL_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// Game server
	if v := os.Getenv("DZPANEL_SERVER_DIR"); v != "" {
		cfg.Server.InstallDir = v
	}

	// Database
	if v := os.Getenv("DZPANEL_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Logging
	if v := os.Getenv("DZPANEL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// MQTT
	if v := os.Getenv("DZPANEL_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("DZPANEL_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("DZPANEL_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Metrics
	if v := os.Getenv("DZPANEL_METRICS_URL"); v != "" {
		cfg.Metrics.URL = v
	}
	if v := os.Getenv("DZPANEL_METRICS_TOKEN"); v != "" {
		cfg.Metrics.Token = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Server.InstallDir == "" {
		errs = append(errs, "server.install_dir is required")
	}
	if c.Server.Executable == "" {
		errs = append(errs, "server.executable is required")
	}
	if c.Server.GracePeriod < 0 {
		errs = append(errs, "server.grace_period must not be negative")
	}
	if c.Server.RestartInterval < 0 {
		errs = append(errs, "server.restart_interval must not be negative")
	}
	if err := c.Server.Launch.Validate(); err != nil {
		errs = append(errs, "server.launch: "+err.Error())
	}
	if err := dayz.ValidateMods(c.Server.Mods); err != nil {
		errs = append(errs, "server.mods: "+err.Error())
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.URL == "" {
			errs = append(errs, "metrics.url is required when metrics are enabled")
		}
		if c.Metrics.Bucket == "" {
			errs = append(errs, "metrics.bucket is required when metrics are enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c APIConfig) GetReadTimeout() time.Duration {
	return time.Duration(c.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c APIConfig) GetWriteTimeout() time.Duration {
	return time.Duration(c.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c APIConfig) GetIdleTimeout() time.Duration {
	return time.Duration(c.Timeouts.Idle) * time.Second
}
