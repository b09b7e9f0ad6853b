package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/good-yellow-bee/vitalguard/pkg/config"
)

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	cfg, err := loadConfig("", overrides{})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Server.HTTPAddress != ":8080" {
		t.Errorf("HTTPAddress = %q", cfg.Server.HTTPAddress)
	}
	if cfg.MQTT.Enabled || cfg.Jobs.Escalation.Enabled {
		t.Error("mqtt and escalation should be off by default")
	}
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vitalguard.yaml")
	body := "server:\n  http_address: \":9000\"\nlogging:\n  level: warn\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	dbPath := filepath.Join(t.TempDir(), "vg.db")
	cfg, err := loadConfig(path, overrides{
		httpAddr:   ":7000",
		dbPath:     dbPath,
		mqttBroker: "tcp://localhost:1883",
		escalation: true,
		verbose:    true,
	})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	if cfg.Server.HTTPAddress != ":7000" {
		t.Errorf("HTTPAddress = %q, want flag value", cfg.Server.HTTPAddress)
	}
	if cfg.Database.Path != dbPath || cfg.Database.Driver != "sqlite" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if !cfg.MQTT.Enabled || cfg.MQTT.Broker != "tcp://localhost:1883" {
		t.Errorf("MQTT = %+v", cfg.MQTT)
	}
	if !cfg.Jobs.Escalation.Enabled {
		t.Error("escalation flag ignored")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, verbose should force debug", cfg.Logging.Level)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), overrides{}); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestAPIConfig(t *testing.T) {
	cfg := config.Default()
	c := apiConfig(cfg)
	if c.JWTSecret != nil {
		t.Error("empty secret should leave auth disabled")
	}
	if c.DeviceRateLimit != 60 || c.StreamHeartbeat != 15*time.Second {
		t.Errorf("api config = %+v", c)
	}

	cfg.Server.Auth.JWTSecret = strings.Repeat("k", 32)
	if got := apiConfig(cfg).JWTSecret; string(got) != cfg.Server.Auth.JWTSecret {
		t.Errorf("JWTSecret = %q", got)
	}
}

func TestComponentConfigs(t *testing.T) {
	cfg := config.Default()

	if rc := redisConfig(cfg.Realtime.Redis); rc.Prefix != "vitalguard" || rc.LatestTTL != 10*time.Minute {
		t.Errorf("redis config = %+v", rc)
	}
	if mc := mqttConfig(cfg.MQTT); mc.Topic != "vitalguard/+/readings" || mc.ClientID == "" {
		t.Errorf("mqtt config = %+v", mc)
	}
	if mc := mqttConfig(cfg.MQTT); mc.TLS != nil {
		t.Error("mqtt TLS should be off by default")
	}
	cfg.MQTT.TLS = config.MQTTTLSConfig{Enabled: true, CAFile: "/etc/vitalguard/ca.pem"}
	if mc := mqttConfig(cfg.MQTT); mc.TLS == nil || mc.TLS.CAFile != "/etc/vitalguard/ca.pem" {
		t.Errorf("mqtt TLS = %+v", mc.TLS)
	}
	if rc := retentionConfig(cfg.Jobs.Retention); rc.Readings != 30*24*time.Hour {
		t.Errorf("retention config = %+v", rc)
	}
}
