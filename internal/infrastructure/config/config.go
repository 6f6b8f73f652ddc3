package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Controller generations. The generation decides which transport carries
// status pushes to the remote controller.
const (
	// GenerationModern delivers pushes as host "status" messages.
	GenerationModern = "modern"

	// GenerationLegacy delivers pushes as REST report calls against the controller.
	GenerationLegacy = "legacy"
)

// maxProfileNum is the largest profile number that fits the 3-digit node prefix.
const maxProfileNum = 999

// Config is the root configuration structure for the Govee local bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Bridge     BridgeConfig     `yaml:"bridge"`
	Controller ControllerConfig `yaml:"controller"`
	Host       HostConfig       `yaml:"host"`
	Database   DatabaseConfig   `yaml:"database"`
	History    HistoryConfig    `yaml:"history"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	API        APIConfig        `yaml:"api"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
	Security   SecurityConfig   `yaml:"security"`
}

// BridgeConfig contains bridge identity and node-server settings.
type BridgeConfig struct {
	// ID identifies this bridge instance in logs and MQTT client IDs.
	ID string `yaml:"id"`

	// ProfileNum is the node-server slot on the remote controller.
	// It appears in REST paths and in the node address prefix (n007_).
	ProfileNum int `yaml:"profile_num"`

	// CreateTimeout bounds the wait for each add-node acknowledgment (seconds).
	// Default: 30
	CreateTimeout int `yaml:"create_timeout"`

	// ShortPoll and LongPoll make the bridge drive its own poll ticks
	// (seconds). Zero leaves polling to the host.
	ShortPoll int `yaml:"short_poll"`
	LongPoll  int `yaml:"long_poll"`
}

// ControllerConfig describes the single remote controller endpoint.
type ControllerConfig struct {
	// Generation is "modern" or "legacy".
	Generation string `yaml:"generation"`

	// Host and Port address the controller's REST interface (legacy only).
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Username and Password are sent as HTTP Basic credentials.
	// WARNING: Never log Password. Use String() for safe logging.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Authorized mirrors the host's view of the credentials. When false the
	// legacy transport refuses to call the controller.
	Authorized bool `yaml:"authorized"`

	// RequestTimeout bounds a single report call (seconds). 0 means no timeout.
	RequestTimeout int `yaml:"request_timeout"`
}

// String returns a string representation with password masked.
func (c ControllerConfig) String() string {
	password := ""
	if c.Password != "" {
		password = "[REDACTED]"
	}
	return fmt.Sprintf("ControllerConfig{Generation:%q, Host:%q, Port:%d, Username:%q, Password:%s, Authorized:%t}",
		c.Generation, c.Host, c.Port, c.Username, password, c.Authorized)
}

// MarshalJSON implements json.Marshaler to redact the password.
func (c ControllerConfig) MarshalJSON() ([]byte, error) {
	type redacted ControllerConfig
	safe := redacted(c)
	if safe.Password != "" {
		safe.Password = "[REDACTED]"
	}
	return json.Marshal(safe)
}

// IsModern reports whether pushes go through the host message channel.
func (c ControllerConfig) IsModern() bool {
	return strings.EqualFold(c.Generation, GenerationModern)
}

// HostConfig contains settings for the host-process link carried over MQTT.
type HostConfig struct {
	// TopicPrefix is the root of the host link topics.
	// Default: "goveebridge/host"
	TopicPrefix string `yaml:"topic_prefix"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// HistoryConfig controls the SQLite push log.
type HistoryConfig struct {
	Enabled bool `yaml:"enabled"`

	// RetentionDays is how long entries are kept. 0 keeps them forever.
	RetentionDays int `yaml:"retention_days"`
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
}

// APIConfig contains HTTP status API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket stream settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for push telemetry.
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

// SecurityConfig contains security settings for the status API.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT verification settings.
// An empty secret leaves the protected API routes open.
type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GOVEEBRIDGE_SECTION_KEY
// For example: GOVEEBRIDGE_CONTROLLER_HOST, GOVEEBRIDGE_MQTT_PASSWORD
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

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			ID:            "govee-local",
			ProfileNum:    1,
			CreateTimeout: 30,
		},
		Controller: ControllerConfig{
			Generation: GenerationModern,
			Port:       80,
			Authorized: true,
		},
		Host: HostConfig{
			TopicPrefix: "goveebridge/host",
		},
		Database: DatabaseConfig{
			Path:        "./data/goveebridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		History: HistoryConfig{
			Enabled:       true,
			RetentionDays: 7,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "goveebridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Bridge
	if v := os.Getenv("GOVEEBRIDGE_PROFILE_NUM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Bridge.ProfileNum = n
		}
	}

	// Controller
	if v := os.Getenv("GOVEEBRIDGE_CONTROLLER_GENERATION"); v != "" {
		cfg.Controller.Generation = v
	}
	if v := os.Getenv("GOVEEBRIDGE_CONTROLLER_HOST"); v != "" {
		cfg.Controller.Host = v
	}
	if v := os.Getenv("GOVEEBRIDGE_CONTROLLER_USERNAME"); v != "" {
		cfg.Controller.Username = v
	}
	if v := os.Getenv("GOVEEBRIDGE_CONTROLLER_PASSWORD"); v != "" {
		cfg.Controller.Password = v
	}

	// Database
	if v := os.Getenv("GOVEEBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GOVEEBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GOVEEBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GOVEEBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("GOVEEBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security
	if v := os.Getenv("GOVEEBRIDGE_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	errs = append(errs, c.validateBridge()...)
	errs = append(errs, c.validateController()...)

	if c.Host.TopicPrefix == "" {
		errs = append(errs, "host.topic_prefix is required")
	}
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.History.RetentionDays < 0 {
		errs = append(errs, "history.retention_days must not be negative")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	const minJWTSecretLength = 32
	if c.Security.JWT.Secret != "" && len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validateBridge validates bridge identity and timing settings.
func (c *Config) validateBridge() []string {
	var errs []string
	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}
	if c.Bridge.ProfileNum < 1 || c.Bridge.ProfileNum > maxProfileNum {
		errs = append(errs, "bridge.profile_num must be between 1 and 999")
	}
	if c.Bridge.CreateTimeout < 1 {
		errs = append(errs, "bridge.create_timeout must be at least 1 second")
	}
	if c.Bridge.ShortPoll < 0 || c.Bridge.LongPoll < 0 {
		errs = append(errs, "bridge poll intervals must not be negative")
	}
	return errs
}

// validateController validates the remote controller endpoint.
func (c *Config) validateController() []string {
	var errs []string
	switch strings.ToLower(c.Controller.Generation) {
	case GenerationModern:
		return nil
	case GenerationLegacy:
	default:
		return append(errs, "controller.generation must be \"modern\" or \"legacy\"")
	}

	if c.Controller.Host == "" {
		errs = append(errs, "controller.host is required for legacy controllers")
	}
	if c.Controller.Port < 1 || c.Controller.Port > 65535 {
		errs = append(errs, "controller.port must be between 1 and 65535")
	}
	if c.Controller.RequestTimeout < 0 {
		errs = append(errs, "controller.request_timeout must not be negative")
	}
	return errs
}

// GetCreateTimeout returns the add-node acknowledgment timeout as a Duration.
func (c *Config) GetCreateTimeout() time.Duration {
	return time.Duration(c.Bridge.CreateTimeout) * time.Second
}

// GetRequestTimeout returns the controller report timeout (0 = none).
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.Controller.RequestTimeout) * time.Second
}

// GetHistoryRetention returns the push log retention as a Duration.
func (c *Config) GetHistoryRetention() time.Duration {
	return time.Duration(c.History.RetentionDays) * 24 * time.Hour
}

// GetShortPoll returns the short poll interval as a Duration.
func (c *Config) GetShortPoll() time.Duration {
	return time.Duration(c.Bridge.ShortPoll) * time.Second
}

// GetLongPoll returns the long poll interval as a Duration.
func (c *Config) GetLongPoll() time.Duration {
	return time.Duration(c.Bridge.LongPoll) * time.Second
}
