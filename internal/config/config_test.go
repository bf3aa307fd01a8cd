package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
server:
  port: 9000
  path: /relay
  write_timeout: 2s
routing:
  routes:
    - kind: sensor
      target: processor
      origin_field: clientId
database:
  host: localhost
  name: relay
  user: relay
  password: secret
mqtt:
  broker: tcp://localhost:1883
  topic: gait/#
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Server.Path != "/relay" {
		t.Errorf("Server.Path = %q, want %q", cfg.Server.Path, "/relay")
	}
	if cfg.Server.WriteTimeout != 2*time.Second {
		t.Errorf("Server.WriteTimeout = %v, want 2s", cfg.Server.WriteTimeout)
	}
	if len(cfg.Routing.Routes) != 1 || cfg.Routing.Routes[0].OriginField != "clientId" {
		t.Errorf("Routing.Routes = %+v, want one route with origin_field clientId", cfg.Routing.Routes)
	}
	if !cfg.Database.Enabled() {
		t.Error("Database.Enabled() = false, want true")
	}
	if cfg.MQTT.Topic != "gait/#" {
		t.Errorf("MQTT.Topic = %q, want %q", cfg.MQTT.Topic, "gait/#")
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 0 {
		t.Errorf("Server.Port = %d, want 0 before defaults", cfg.Server.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "read config file") {
		t.Errorf("error = %q, want read config file prefix", err.Error())
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")

	yaml := `
database:
  host: localhost
  name: relay
  user: relay
  password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Password != "secret123" {
		t.Errorf("Database.Password = %q, want %q", cfg.Database.Password, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	t.Setenv(PortEnv, "")

	cfg, err := LoadWithDefaults("")
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Server.Port != DefaultPort {
		t.Errorf("Server.Port = %d, want default %d", cfg.Server.Port, DefaultPort)
	}
	if cfg.Server.Path != DefaultPath {
		t.Errorf("Server.Path = %q, want default %q", cfg.Server.Path, DefaultPath)
	}
	if cfg.Server.ReadLimit != 100<<20 {
		t.Errorf("Server.ReadLimit = %d, want 100 MiB", cfg.Server.ReadLimit)
	}
	if cfg.Server.PingInterval != DefaultPingInterval {
		t.Errorf("Server.PingInterval = %v, want default %v", cfg.Server.PingInterval, DefaultPingInterval)
	}
	if cfg.Routing.TimestampField != DefaultTimestampField {
		t.Errorf("Routing.TimestampField = %q, want default %q", cfg.Routing.TimestampField, DefaultTimestampField)
	}
	if len(cfg.Routing.Routes) != 2 {
		t.Fatalf("len(Routing.Routes) = %d, want 2", len(cfg.Routing.Routes))
	}
	if cfg.Routing.Routes[0].Kind != "sensor" || cfg.Routing.Routes[0].Target != "processor" {
		t.Errorf("Routes[0] = %+v, want sensor → processor", cfg.Routing.Routes[0])
	}
	if cfg.Routing.Routes[1].Kind != "processed" || cfg.Routing.Routes[1].Target != "dashboard" {
		t.Errorf("Routes[1] = %+v, want processed → dashboard", cfg.Routing.Routes[1])
	}
	if cfg.Database.Enabled() {
		t.Error("Database should be disabled by default")
	}
	if cfg.Database.Port != 0 {
		t.Errorf("Database.Port = %d, want 0 when disabled", cfg.Database.Port)
	}
	if cfg.MQTT.Enabled() {
		t.Error("MQTT should be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadWithDefaults_RouteOriginField(t *testing.T) {
	t.Setenv(PortEnv, "")

	yaml := `
routing:
  routes:
    - kind: alert
      target: dashboard
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}
	if len(cfg.Routing.Routes) != 1 {
		t.Fatalf("len(Routing.Routes) = %d, want 1", len(cfg.Routing.Routes))
	}
	if cfg.Routing.Routes[0].OriginField != DefaultOriginField {
		t.Errorf("OriginField = %q, want default %q", cfg.Routing.Routes[0].OriginField, DefaultOriginField)
	}
}

func TestLoadWithDefaults_PortEnv(t *testing.T) {
	t.Setenv(PortEnv, "10000")

	path := writeTempFile(t, "server:\n  port: 9000\n")

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}
	if cfg.Server.Port != 10000 {
		t.Errorf("Server.Port = %d, want 10000 from %s", cfg.Server.Port, PortEnv)
	}
}

func TestLoadWithDefaults_BadPortEnv(t *testing.T) {
	t.Setenv(PortEnv, "eighty")

	if _, err := LoadWithDefaults(""); err == nil {
		t.Fatal("expected error for non-numeric PORT")
	}
}

func TestValidate(t *testing.T) {
	valid := func() RelayConfig {
		cfg := RelayConfig{}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*RelayConfig)
		wantErr string
	}{
		{
			name:    "defaults",
			mutate:  func(c *RelayConfig) {},
			wantErr: "",
		},
		{
			name:    "port out of range",
			mutate:  func(c *RelayConfig) { c.Server.Port = 70000 },
			wantErr: "server.port must be between 1 and 65535, got 70000",
		},
		{
			name:    "relative path",
			mutate:  func(c *RelayConfig) { c.Server.Path = "ws" },
			wantErr: `server.path must start with /, got "ws"`,
		},
		{
			name:    "negative write timeout",
			mutate:  func(c *RelayConfig) { c.Server.WriteTimeout = -time.Second },
			wantErr: "server.write_timeout must be > 0",
		},
		{
			name: "outbox max below size",
			mutate: func(c *RelayConfig) {
				c.Server.OutboxSize = 100
				c.Server.OutboxMax = 10
			},
			wantErr: "server.outbox_max (10) cannot be less than outbox_size (100)",
		},
		{
			name: "reserved kind",
			mutate: func(c *RelayConfig) {
				c.Routing.Routes = []RouteConfig{{Kind: "register", Target: "processor", OriginField: "o"}}
			},
			wantErr: `routing.routes[0].kind "register" is reserved`,
		},
		{
			name: "duplicate kind",
			mutate: func(c *RelayConfig) {
				c.Routing.Routes = append(c.Routing.Routes, RouteConfig{Kind: "sensor", Target: "dashboard", OriginField: "o"})
			},
			wantErr: `routing.routes[2].kind "sensor" is duplicated`,
		},
		{
			name: "unknown target",
			mutate: func(c *RelayConfig) {
				c.Routing.Routes[0].Target = "printer"
			},
			wantErr: `routing.routes[0].target must be sensor, processor or dashboard, got "printer"`,
		},
		{
			name: "origin collides with timestamp",
			mutate: func(c *RelayConfig) {
				c.Routing.Routes[1].OriginField = c.Routing.TimestampField
			},
			wantErr: "routing.routes[1].origin_field collides with routing.timestamp_field",
		},
		{
			name: "origin field shadows kind",
			mutate: func(c *RelayConfig) {
				c.Routing.Routes[0].OriginField = "kind"
			},
			wantErr: `routing.routes[0].origin_field "kind" is reserved`,
		},
		{
			name:    "timestamp field shadows type",
			mutate:  func(c *RelayConfig) { c.Routing.TimestampField = "type" },
			wantErr: `routing.timestamp_field "type" is reserved`,
		},
		{
			name:    "bad log level",
			mutate:  func(c *RelayConfig) { c.Log.Level = "trace" },
			wantErr: `log.level must be one of debug, info, warn, error, got "trace"`,
		},
		{
			name: "database missing name",
			mutate: func(c *RelayConfig) {
				c.Database = DBConfig{Host: "localhost", User: "relay", MaxConns: 4}
			},
			wantErr: "database.name is required",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *RelayConfig) {
				c.Database = DBConfig{Host: "localhost", Name: "relay", User: "relay", MaxConns: 2, MinConns: 5}
			},
			wantErr: "database.min_conns (5) cannot exceed max_conns (2)",
		},
		{
			name: "mqtt qos",
			mutate: func(c *RelayConfig) {
				c.MQTT = MQTTConfig{Broker: "tcp://localhost:1883", QoS: 3}
			},
			wantErr: "mqtt.qos must be 0, 1 or 2, got 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
