package main

import (
	"fmt"

	"github.com/good-yellow-bee/vitalguard/internal/api"
	"github.com/good-yellow-bee/vitalguard/internal/ingest"
	"github.com/good-yellow-bee/vitalguard/internal/jobs"
	"github.com/good-yellow-bee/vitalguard/internal/realtime"
	"github.com/good-yellow-bee/vitalguard/pkg/config"
)

// overrides holds CLI flag values that take precedence over the config file.
type overrides struct {
	httpAddr    string
	metricsAddr string
	dbPath      string
	logLevel    string
	mqttBroker  string
	escalation  bool
	verbose     bool
}

// loadConfig reads the config file when one is given, otherwise builds the
// defaults with environment secrets, then applies flag overrides.
func loadConfig(path string, o overrides) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if o.httpAddr != "" {
		cfg.Server.HTTPAddress = o.httpAddr
	}
	if o.metricsAddr != "" {
		cfg.Metrics.Address = o.metricsAddr
	}
	if o.dbPath != "" {
		cfg.Database.Driver = "sqlite"
		cfg.Database.Path = o.dbPath
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.mqttBroker != "" {
		cfg.MQTT.Enabled = true
		cfg.MQTT.Broker = o.mqttBroker
	}
	if o.escalation {
		cfg.Jobs.Escalation.Enabled = true
	}
	cfg.Verbose = o.verbose
	if cfg.Verbose {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func apiConfig(cfg *config.Config) *api.Config {
	c := &api.Config{
		Address:           cfg.Server.HTTPAddress,
		TokenTTL:          cfg.Server.Auth.TokenTTL,
		TLSEnabled:        cfg.Server.TLS.Enabled,
		TLSCertFile:       cfg.Server.TLS.CertFile,
		TLSKeyFile:        cfg.Server.TLS.KeyFile,
		RateLimitPerIP:    cfg.Server.RateLimitPerIP,
		DeviceRateLimit:   cfg.Server.DeviceRateLimit,
		DeviceBurst:       cfg.Server.DeviceBurst,
		StreamHeartbeat:   cfg.Server.StreamHeartbeat,
		StreamMaxDuration: cfg.Server.StreamMaxDuration,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
		Version:           config.Version,
		Verbose:           cfg.Verbose,
	}
	if cfg.Server.Auth.JWTSecret != "" {
		c.JWTSecret = []byte(cfg.Server.Auth.JWTSecret)
	}
	return c
}

func redisConfig(cfg config.RedisConfig) realtime.RedisConfig {
	return realtime.RedisConfig{
		Addr:      cfg.Addr,
		Password:  cfg.Password,
		DB:        cfg.DB,
		Prefix:    cfg.Prefix,
		LatestTTL: cfg.LatestTTL,
	}
}

func mqttConfig(cfg config.MQTTConfig) ingest.MQTTConfig {
	c := ingest.MQTTConfig{
		Broker:   cfg.Broker,
		ClientID: cfg.ClientID,
		Username: cfg.Username,
		Password: cfg.Password,
		Topic:    cfg.Topic,
		QoS:      cfg.QoS,
	}
	if cfg.TLS.Enabled {
		c.TLS = &ingest.TLSConfig{
			CAFile:             cfg.TLS.CAFile,
			CertFile:           cfg.TLS.CertFile,
			KeyFile:            cfg.TLS.KeyFile,
			InsecureSkipVerify: cfg.TLS.InsecureSkipVerify,
		}
	}
	return c
}

func retentionConfig(cfg config.RetentionJobConfig) jobs.RetentionConfig {
	return jobs.RetentionConfig{
		Readings: cfg.Readings,
		Alerts:   cfg.Alerts,
	}
}
