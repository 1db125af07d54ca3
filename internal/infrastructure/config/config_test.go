package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// validJWTSecret meets the 32-character minimum requirement.
const validJWTSecret = "test-secret-key-at-least-32-chars!"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
database:
  driver: "sqlite"
  path: "/tmp/test.db"
mqtt:
  broker:
    host: "broker.local"
    port: 1883
    client_id: "backend-test"
  topic_prefix: "home/devices"
redis:
  enabled: true
  addr: "redis:6379"
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
	if cfg.MQTT.TopicPrefix != "home/devices" {
		t.Errorf("MQTT.TopicPrefix = %q, want %q", cfg.MQTT.TopicPrefix, "home/devices")
	}
	if cfg.MQTT.Broker.ClientID != "backend-test" {
		t.Errorf("MQTT.Broker.ClientID = %q, want %q", cfg.MQTT.Broker.ClientID, "backend-test")
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "redis:6379" {
		t.Errorf("Redis = %+v, want enabled at redis:6379", cfg.Redis)
	}
	// Defaults survive for unset keys.
	if cfg.MQTT.QoS != 2 || cfg.MQTT.SharedGroup != "backend" {
		t.Errorf("MQTT QoS/SharedGroup = %d/%q, want 2/backend", cfg.MQTT.QoS, cfg.MQTT.SharedGroup)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	_, err := Load(writeConfig(t, `
database:
  driver: "mongo"
`))
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	// Every problem is reported, not just the first.
	if !strings.Contains(err.Error(), "database.driver") || !strings.Contains(err.Error(), "security.jwt.secret") {
		t.Errorf("Load() error = %v, want driver and jwt problems", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid config", func(*Config) {}, false},
		{"memory driver", func(c *Config) { c.Database.Driver = DriverMemory }, false},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mongo" }, true},
		{"missing sqlite path", func(c *Config) { c.Database.Path = "" }, true},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = DriverPostgres }, true},
		{"postgres with dsn", func(c *Config) {
			c.Database.Driver = DriverPostgres
			c.Database.Postgres.DSN = "postgres://localhost/smarthome"
		}, false},
		{"invalid QoS", func(c *Config) { c.MQTT.QoS = 3 }, true},
		{"wildcard topic prefix", func(c *Config) { c.MQTT.TopicPrefix = "home/#" }, true},
		{"multi-level shared group", func(c *Config) { c.MQTT.SharedGroup = "a/b" }, true},
		{"redis enabled without addr", func(c *Config) {
			c.Redis.Enabled = true
			c.Redis.Addr = ""
		}, true},
		{"influx enabled without bucket", func(c *Config) {
			c.InfluxDB.Enabled = true
			c.InfluxDB.URL = "http://influx:8086"
			c.InfluxDB.Org = "home"
		}, true},
		{"invalid port low", func(c *Config) { c.API.Port = 0 }, true},
		{"invalid port high", func(c *Config) { c.API.Port = 70000 }, true},
		{"missing JWT secret", func(c *Config) { c.Security.JWT.Secret = "" }, true},
		{"JWT secret too short", func(c *Config) { c.Security.JWT.Secret = "short" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Security.JWT.Secret = validJWTSecret
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
		Security: SecurityConfig{JWT: JWTConfig{AccessTokenTTL: 90}},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
	if got := cfg.GetAccessTokenTTL().Minutes(); got != 90 {
		t.Errorf("GetAccessTokenTTL() = %v, want 90", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("SMARTHOME_DATABASE_DRIVER", "postgres")
	t.Setenv("SMARTHOME_POSTGRES_DSN", "postgres://db/smarthome")
	t.Setenv("SMARTHOME_MQTT_HOST", "mqtt.example.com")
	t.Setenv("SMARTHOME_MQTT_PORT", "8883")
	t.Setenv("SMARTHOME_MQTT_USERNAME", "testuser")
	t.Setenv("SMARTHOME_MQTT_PASSWORD", "testpass")
	t.Setenv("MQTT_TOPIC", "custom/devices")
	t.Setenv("HOSTNAME", "pod-7")
	t.Setenv("SMARTHOME_REDIS_ADDR", "cache:6379")
	t.Setenv("SMARTHOME_API_PORT", "9090")
	t.Setenv("SMARTHOME_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("SMARTHOME_JWT_SECRET", "jwt-secret")

	applyEnvOverrides(cfg)

	checks := []struct {
		field string
		got   any
		want  any
	}{
		{"Database.Driver", cfg.Database.Driver, "postgres"},
		{"Database.Postgres.DSN", cfg.Database.Postgres.DSN, "postgres://db/smarthome"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Broker.Port", cfg.MQTT.Broker.Port, 8883},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"MQTT.TopicPrefix", cfg.MQTT.TopicPrefix, "custom/devices"},
		{"MQTT.Broker.ClientID", cfg.MQTT.Broker.ClientID, "backend-pod-7"},
		{"Redis.Addr", cfg.Redis.Addr, "cache:6379"},
		{"API.Port", cfg.API.Port, 9090},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"Security.JWT.Secret", cfg.Security.JWT.Secret, "jwt-secret"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.field, c.got, c.want)
		}
	}
}

func TestDefaultClientID(t *testing.T) {
	t.Setenv("HOSTNAME", "")
	if got := DefaultClientID(); got != "backend-unknown-host" {
		t.Errorf("DefaultClientID() = %q, want %q", got, "backend-unknown-host")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Database.Driver != DriverSQLite || cfg.Database.Path == "" {
		t.Errorf("defaultConfig Database = %+v, want sqlite with path", cfg.Database)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.TopicPrefix != "nadavnv-smart-home/devices" {
		t.Errorf("defaultConfig MQTT.TopicPrefix = %q", cfg.MQTT.TopicPrefix)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("defaultConfig API.Port = %d, want 8080", cfg.API.Port)
	}
}
