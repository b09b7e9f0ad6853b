package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/good-yellow-bee/vitalguard/internal/models"
)

// Environment variables that override secrets from the config file.
const (
	EnvJWTSecret     = "VITALGUARD_JWT_SECRET"
	EnvDatabaseDSN   = "VITALGUARD_DATABASE_DSN"
	EnvSMTPPassword  = "VITALGUARD_SMTP_PASSWORD"
	EnvRedisPassword = "VITALGUARD_REDIS_PASSWORD"
)

// Config represents the VitalGuard configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Logging       LoggingConfig       `yaml:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Thresholds    models.Thresholds   `yaml:"thresholds"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Realtime      RealtimeConfig      `yaml:"realtime"`
	MQTT          MQTTConfig          `yaml:"mqtt"`
	Jobs          JobsConfig          `yaml:"jobs"`
	Verbose       bool                `yaml:"-"` // set via CLI flag
}

// ServerConfig contains HTTP API settings.
type ServerConfig struct {
	HTTPAddress       string        `yaml:"http_address"` // default: :8080
	TLS               TLSConfig     `yaml:"tls"`
	Auth              AuthConfig    `yaml:"auth"`
	RateLimitPerIP    int           `yaml:"rate_limit_per_ip"`   // requests per minute (default: 300)
	DeviceRateLimit   int           `yaml:"device_rate_limit"`   // readings per minute per device (default: 60)
	DeviceBurst       int           `yaml:"device_burst"`        // default: 10
	StreamHeartbeat   time.Duration `yaml:"stream_heartbeat"`    // default: 15s
	StreamMaxDuration time.Duration `yaml:"stream_max_duration"` // default: 30m
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`    // default: 10s
}

// TLSConfig contains TLS settings for the HTTP listener.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// AuthConfig contains operator token settings. An empty secret disables
// authentication of operator routes.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"` // default: 12h
}

// DatabaseConfig selects the storage backend.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"` // sqlite (default) or postgres
	Path            string        `yaml:"path"`   // sqlite file (default: ./data/vitalguard.db)
	DSN             string        `yaml:"dsn"`    // postgres connection string
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// MetricsConfig controls the Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"` // default: :9090
}

// NotificationsConfig configures the alert dispatcher and its channels.
type NotificationsConfig struct {
	Email           EmailConfig     `yaml:"email"`
	Webhook         WebhookConfig   `yaml:"webhook"`
	Recipients      RecipientConfig `yaml:"recipients"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
	DispatchTimeout time.Duration   `yaml:"dispatch_timeout"` // default: 30s
	SMS             bool            `yaml:"sms"`              // log-only channel
	Push            bool            `yaml:"push"`             // log-only channel
}

// EmailConfig contains SMTP settings. The channel is registered only when
// Host is set.
type EmailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"` // default: 587
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// WebhookConfig contains outbound webhook settings.
type WebhookConfig struct {
	Enabled    bool              `yaml:"enabled"`
	Timeout    time.Duration     `yaml:"timeout"` // default: 10s
	RetryCount int               `yaml:"retry_count"`
	Headers    map[string]string `yaml:"headers"`
}

// RecipientConfig lists recipients added to every alert.
type RecipientConfig struct {
	Emails       []string `yaml:"emails"`
	PhoneNumbers []string `yaml:"phone_numbers"`
	WebhookURLs  []string `yaml:"webhook_urls"`
}

// RateLimitConfig bounds dispatches per device.
type RateLimitConfig struct {
	Enabled      bool          `yaml:"enabled"`
	MaxPerWindow int           `yaml:"max_per_window"` // default: 10
	Window       time.Duration `yaml:"window"`         // default: 1m
}

// RealtimeConfig configures the broadcast hub and the optional Redis relay.
type RealtimeConfig struct {
	ClientBuffer int         `yaml:"client_buffer"` // default: 64
	Redis        RedisConfig `yaml:"redis"`
}

// RedisConfig contains Redis settings. Redis is used only when Addr is set.
type RedisConfig struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	Prefix    string        `yaml:"prefix"`     // default: vitalguard
	LatestTTL time.Duration `yaml:"latest_ttl"` // default: 10m
}

// MQTTConfig configures MQTT ingestion.
type MQTTConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Broker   string        `yaml:"broker"`
	ClientID string        `yaml:"client_id"` // default: vitalguard-<hostname>
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Topic    string        `yaml:"topic"` // default: vitalguard/+/readings
	QoS      byte          `yaml:"qos"`
	TLS      MQTTTLSConfig `yaml:"tls"`
}

// MQTTTLSConfig contains client TLS settings for the broker connection.
type MQTTTLSConfig struct {
	Enabled            bool   `yaml:"enabled"`
	CAFile             string `yaml:"ca_file"`
	CertFile           string `yaml:"cert_file"`
	KeyFile            string `yaml:"key_file"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// JobsConfig configures background jobs.
type JobsConfig struct {
	Escalation EscalationJobConfig `yaml:"escalation"`
	Retention  RetentionJobConfig  `yaml:"retention"`
}

// EscalationJobConfig configures the escalation scanner. It is disabled by
// default.
type EscalationJobConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"` // default: 1m
}

// RetentionJobConfig configures the retention purge.
type RetentionJobConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"` // default: 6h
	Readings time.Duration `yaml:"readings"` // default: 720h
	Alerts   time.Duration `yaml:"alerts"`   // default: 2160h
}

// Load loads configuration from a YAML file. Secrets set in the
// environment take precedence over the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Default returns a configuration with default values.
func Default() *Config {
	cfg := &Config{
		Thresholds: models.DefaultThresholds(),
	}
	cfg.Notifications.RateLimit.Enabled = true
	cfg.Notifications.SMS = true
	cfg.Notifications.Push = true
	cfg.Metrics.Enabled = true
	cfg.Jobs.Retention.Enabled = true
	cfg.setDefaults()
	return cfg
}

// FromEnv returns the default configuration with environment secrets
// applied. It is used when no config file is given.
func FromEnv() (*Config, error) {
	cfg := Default()
	cfg.applyEnv()
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvJWTSecret); v != "" {
		c.Server.Auth.JWTSecret = v
	}
	if v := os.Getenv(EnvDatabaseDSN); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(EnvSMTPPassword); v != "" {
		c.Notifications.Email.Password = v
	}
	if v := os.Getenv(EnvRedisPassword); v != "" {
		c.Realtime.Redis.Password = v
	}
}

// setDefaults sets default values for missing config fields.
func (c *Config) setDefaults() {
	if c.Server.HTTPAddress == "" {
		c.Server.HTTPAddress = ":8080"
	}
	if c.Server.Auth.TokenTTL <= 0 {
		c.Server.Auth.TokenTTL = 12 * time.Hour
	}
	if c.Server.RateLimitPerIP <= 0 {
		c.Server.RateLimitPerIP = 300
	}
	if c.Server.DeviceRateLimit <= 0 {
		c.Server.DeviceRateLimit = 60
	}
	if c.Server.DeviceBurst <= 0 {
		c.Server.DeviceBurst = 10
	}
	if c.Server.StreamHeartbeat <= 0 {
		c.Server.StreamHeartbeat = 15 * time.Second
	}
	if c.Server.StreamMaxDuration <= 0 {
		c.Server.StreamMaxDuration = 30 * time.Minute
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "./data/vitalguard.db"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Metrics.Address == "" {
		c.Metrics.Address = ":9090"
	}

	n := &c.Notifications
	if n.Email.Port == 0 {
		n.Email.Port = 587
	}
	if n.Webhook.Timeout <= 0 {
		n.Webhook.Timeout = 10 * time.Second
	}
	if n.RateLimit.MaxPerWindow <= 0 {
		n.RateLimit.MaxPerWindow = 10
	}
	if n.RateLimit.Window <= 0 {
		n.RateLimit.Window = time.Minute
	}
	if n.DispatchTimeout <= 0 {
		n.DispatchTimeout = 30 * time.Second
	}

	if c.Realtime.ClientBuffer <= 0 {
		c.Realtime.ClientBuffer = 64
	}
	if c.Realtime.Redis.Prefix == "" {
		c.Realtime.Redis.Prefix = "vitalguard"
	}
	if c.Realtime.Redis.LatestTTL <= 0 {
		c.Realtime.Redis.LatestTTL = 10 * time.Minute
	}

	if c.MQTT.Topic == "" {
		c.MQTT.Topic = "vitalguard/+/readings"
	}
	if c.MQTT.ClientID == "" {
		host, _ := os.Hostname()
		c.MQTT.ClientID = "vitalguard-" + host
	}

	if c.Jobs.Escalation.Interval <= 0 {
		c.Jobs.Escalation.Interval = time.Minute
	}
	r := &c.Jobs.Retention
	if r.Interval <= 0 {
		r.Interval = 6 * time.Hour
	}
	if r.Readings <= 0 {
		r.Readings = 30 * 24 * time.Hour
	}
	if r.Alerts <= 0 {
		r.Alerts = 90 * 24 * time.Hour
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.HTTPAddress == "" {
		return fmt.Errorf("server.http_address is required")
	}
	if c.Server.TLS.Enabled {
		if c.Server.TLS.CertFile == "" {
			return fmt.Errorf("server.tls.cert_file is required when TLS is enabled")
		}
		if c.Server.TLS.KeyFile == "" {
			return fmt.Errorf("server.tls.key_file is required when TLS is enabled")
		}
	}
	if s := c.Server.Auth.JWTSecret; s != "" && len(s) < 32 {
		return fmt.Errorf("server.auth.jwt_secret must be at least 32 bytes")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn (or %s) is required for postgres", EnvDatabaseDSN)
		}
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}

	if err := validateThresholds(c.Thresholds); err != nil {
		return err
	}

	if e := c.Notifications.Email; e.Host != "" && e.From == "" {
		return fmt.Errorf("notifications.email.from is required when email is enabled")
	}
	if c.Notifications.Webhook.Enabled && len(c.Notifications.Recipients.WebhookURLs) == 0 {
		return fmt.Errorf("notifications.recipients.webhook_urls is required when webhooks are enabled")
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
		}
		if c.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
		}
		if t := c.MQTT.TLS; t.Enabled && (t.CertFile == "") != (t.KeyFile == "") {
			return fmt.Errorf("mqtt.tls.cert_file and mqtt.tls.key_file must be set together")
		}
	}
	return nil
}

func validateThresholds(t models.Thresholds) error {
	if t.MinHeartRate <= 0 || t.MaxHeartRate <= t.MinHeartRate {
		return fmt.Errorf("thresholds: heart rate range %.0f-%.0f is invalid", t.MinHeartRate, t.MaxHeartRate)
	}
	if t.MinSpO2 <= 0 || t.MinSpO2 > 100 {
		return fmt.Errorf("thresholds.min_spo2 must be in (0, 100]")
	}
	if t.MaxTemperature <= t.MinTemperature {
		return fmt.Errorf("thresholds: temperature range %.1f-%.1f is invalid", t.MinTemperature, t.MaxTemperature)
	}
	if t.MinBattery < 0 || t.MinBattery > 100 {
		return fmt.Errorf("thresholds.min_battery must be in [0, 100]")
	}
	return nil
}
