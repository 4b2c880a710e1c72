package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the hemma hub.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Hub         HubConfig       `yaml:"hub"`
	Keys        KeysConfig      `yaml:"keys"`
	LocalAuth   ListenerConfig  `yaml:"local_auth"`
	LocalStream ListenerConfig  `yaml:"local_stream"`
	Ops         ListenerConfig  `yaml:"ops"`
	TLS         TLSConfig       `yaml:"tls"`
	WebSocket   WebSocketConfig `yaml:"websocket"`
	Upstream    UpstreamConfig  `yaml:"upstream"`
	MQTT        MQTTConfig      `yaml:"mqtt"`
	Database    DatabaseConfig  `yaml:"database"`
	InfluxDB    InfluxDBConfig  `yaml:"influxdb"`
	Logging     LoggingConfig   `yaml:"logging"`
}

// HubConfig lists the sources and plugins to run.
type HubConfig struct {
	RequestQueueSize int            `yaml:"request_queue_size"`
	Sources          []ModuleConfig `yaml:"sources"`
	Plugins          []ModuleConfig `yaml:"plugins"`
}

// ModuleConfig configures one source or plugin.
//
// Type selects the implementation and defaults to ID, so the common case is
// a single "- id: dht" line. Any other keys are passed to the module.
type ModuleConfig struct {
	ID      string         `yaml:"id"`
	Type    string         `yaml:"type"`
	Options map[string]any `yaml:",inline"`
}

// Kind returns the implementation tag for the module.
func (m ModuleConfig) Kind() string {
	if m.Type != "" {
		return m.Type
	}
	return m.ID
}

// String returns a string option, or def when unset.
func (m ModuleConfig) String(key, def string) string {
	v, ok := m.Options[key]
	if !ok || v == nil {
		return def
	}
	return fmt.Sprint(v)
}

// Int returns an integer option, or def when unset or not a number.
func (m ModuleConfig) Int(key string, def int) int {
	switch v := m.Options[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// Seconds returns a duration option given in (possibly fractional)
// seconds, or def when unset.
func (m ModuleConfig) Seconds(key string, def time.Duration) time.Duration {
	switch v := m.Options[key].(type) {
	case int:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	default:
		return def
	}
}

// KeysConfig holds base64-encoded key material.
// Private and signing keys should be supplied via environment variables.
type KeysConfig struct {
	ServerPublicKey  string `yaml:"server_public_key"`
	ServerPrivateKey string `yaml:"server_private_key"`
	ServerSigningKey string `yaml:"server_signing_key"`
	ServerVerifyKey  string `yaml:"server_verify_key"`
	FacadeSigningKey string `yaml:"facade_signing_key"`
}

// ListenerConfig is a TCP listener address.
type ListenerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// Address returns host:port.
func (l ListenerConfig) Address() string {
	return fmt.Sprintf("%s:%d", l.Host, l.Port)
}

// TLSConfig contains TLS certificate settings for the client-facing listeners.
type TLSConfig struct {
	Enabled    bool   `yaml:"enabled"`
	CertFile   string `yaml:"cert_file"`
	KeyFile    string `yaml:"key_file"`
	MinVersion string `yaml:"min_version"`
}

// WebSocketConfig contains WebSocket keepalive settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
	SendBuffer     int `yaml:"send_buffer"`
}

// UpstreamConfig contains the parent hub link settings.
type UpstreamConfig struct {
	URL                  string  `yaml:"url"`
	ReconnectInterval    float64 `yaml:"reconnect_interval"`
	MaxReconnectInterval float64 `yaml:"max_reconnect_interval"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
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

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
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

// Load reads configuration from a YAML file and applies environment overrides.
//
// The loading order is:
//  1. Default values
//  2. YAML file values
//  3. Environment variable overrides
//
// Environment variables use the prefix HEMMA_ followed by the config path.
// For example: HEMMA_FACADE_SIGNING_KEY, HEMMA_UPSTREAM_URL
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

// Default returns a Config with sensible defaults and no key material.
func Default() *Config {
	return &Config{
		Hub: HubConfig{
			RequestQueueSize: 256,
		},
		LocalAuth: ListenerConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    1337,
		},
		LocalStream: ListenerConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    1338,
		},
		Ops: ListenerConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    9090,
		},
		TLS: TLSConfig{
			MinVersion: "1.2",
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 1 << 20,
			PingInterval:   30,
			PongTimeout:    10,
			SendBuffer:     256,
		},
		Upstream: UpstreamConfig{
			ReconnectInterval:    1,
			MaxReconnectInterval: 120,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "hemma-hub",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/hemma.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		InfluxDB: InfluxDBConfig{
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
// Environment variables follow the pattern: HEMMA_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Keys
	if v := os.Getenv("HEMMA_SERVER_PRIVATE_KEY"); v != "" {
		cfg.Keys.ServerPrivateKey = v
	}
	if v := os.Getenv("HEMMA_SERVER_SIGNING_KEY"); v != "" {
		cfg.Keys.ServerSigningKey = v
	}
	if v := os.Getenv("HEMMA_FACADE_SIGNING_KEY"); v != "" {
		cfg.Keys.FacadeSigningKey = v
	}

	// Upstream
	if v := os.Getenv("HEMMA_UPSTREAM_URL"); v != "" {
		cfg.Upstream.URL = v
	}

	// MQTT
	if v := os.Getenv("HEMMA_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HEMMA_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HEMMA_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Database
	if v := os.Getenv("HEMMA_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("HEMMA_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("HEMMA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// The hub cannot answer anyone without its box key and the facade key.
	if c.Keys.ServerPrivateKey == "" {
		errs = append(errs, "keys.server_private_key is required (set HEMMA_SERVER_PRIVATE_KEY environment variable)")
	}
	if c.Keys.FacadeSigningKey == "" {
		errs = append(errs, "keys.facade_signing_key is required (set HEMMA_FACADE_SIGNING_KEY environment variable)")
	}

	if c.Hub.RequestQueueSize < 1 {
		errs = append(errs, "hub.request_queue_size must be at least 1")
	}
	errs = append(errs, validateModules("hub.sources", c.Hub.Sources)...)
	errs = append(errs, validateModules("hub.plugins", c.Hub.Plugins)...)

	for name, l := range map[string]ListenerConfig{
		"local_auth":   c.LocalAuth,
		"local_stream": c.LocalStream,
		"ops":          c.Ops,
	} {
		if l.Enabled && (l.Port < 1 || l.Port > 65535) {
			errs = append(errs, name+".port must be between 1 and 65535")
		}
	}

	if c.TLS.Enabled && (c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
		errs = append(errs, "tls.cert_file and tls.key_file are required when tls is enabled")
	}
	if c.TLS.MinVersion != "1.2" && c.TLS.MinVersion != "1.3" {
		errs = append(errs, "tls.min_version must be 1.2 or 1.3")
	}

	if u := c.Upstream.URL; u != "" && !strings.HasPrefix(u, "ws://") && !strings.HasPrefix(u, "wss://") {
		errs = append(errs, "upstream.url must be a ws:// or wss:// URL")
	}
	if c.Upstream.ReconnectInterval <= 0 {
		errs = append(errs, "upstream.reconnect_interval must be positive")
	}
	if c.Upstream.MaxReconnectInterval < c.Upstream.ReconnectInterval {
		errs = append(errs, "upstream.max_reconnect_interval must not be below upstream.reconnect_interval")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func validateModules(section string, modules []ModuleConfig) []string {
	var errs []string
	seen := make(map[string]bool, len(modules))
	for i, m := range modules {
		if m.ID == "" {
			errs = append(errs, fmt.Sprintf("%s[%d].id is required", section, i))
			continue
		}
		if seen[m.ID] {
			errs = append(errs, fmt.Sprintf("%s: duplicate id %q", section, m.ID))
		}
		seen[m.ID] = true
	}
	return errs
}

// GetPingInterval returns the WebSocket ping interval as a Duration.
func (c *Config) GetPingInterval() time.Duration {
	return time.Duration(c.WebSocket.PingInterval) * time.Second
}

// GetPongTimeout returns the WebSocket pong timeout as a Duration.
func (c *Config) GetPongTimeout() time.Duration {
	return time.Duration(c.WebSocket.PongTimeout) * time.Second
}

// GetReconnectInterval returns the upstream base backoff as a Duration.
func (c *Config) GetReconnectInterval() time.Duration {
	return time.Duration(c.Upstream.ReconnectInterval * float64(time.Second))
}

// GetMaxReconnectInterval returns the upstream backoff ceiling as a Duration.
func (c *Config) GetMaxReconnectInterval() time.Duration {
	return time.Duration(c.Upstream.MaxReconnectInterval * float64(time.Second))
}
