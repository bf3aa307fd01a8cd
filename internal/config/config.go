package config

import "time"

// RelayConfig is the root configuration for a relay instance.
type RelayConfig struct {
	Server   ServerConfig  `yaml:"server"`
	Routing  RoutingConfig `yaml:"routing"`
	Log      LogConfig     `yaml:"log"`
	Database DBConfig      `yaml:"database"`
	Audit    AuditConfig   `yaml:"audit"`
	MQTT     MQTTConfig    `yaml:"mqtt"`
}

// ServerConfig holds WebSocket listener settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`
	Path         string        `yaml:"path"`
	ReadLimit    int64         `yaml:"read_limit"`    // Max inbound frame size in bytes
	WriteTimeout time.Duration `yaml:"write_timeout"` // Write deadline per outbound frame
	PingInterval time.Duration `yaml:"ping_interval"` // Keepalive pings; negative disables
	OutboxSize   int           `yaml:"outbox_size"`   // Initial per-connection queue capacity
	OutboxMax    int           `yaml:"outbox_max"`    // Queue capacity ceiling
}

// RoutingConfig describes which payload kinds fan out to which group.
type RoutingConfig struct {
	TimestampField string        `yaml:"timestamp_field"`
	Routes         []RouteConfig `yaml:"routes"`
}

// RouteConfig maps one payload kind to a target role.
type RouteConfig struct {
	Kind        string `yaml:"kind"`
	Target      string `yaml:"target"`       // sensor, processor or dashboard
	OriginField string `yaml:"origin_field"` // Envelope field carrying the sender identity
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// DBConfig holds the Postgres connection for the session audit log.
// An empty Host disables auditing.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// Enabled reports whether a database is configured.
func (db DBConfig) Enabled() bool {
	return db.Host != ""
}

// AuditConfig holds batch settings for the session audit writer.
type AuditConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// MQTTConfig holds the optional MQTT sensor bridge settings.
// An empty Broker disables the bridge.
type MQTTConfig struct {
	Broker      string `yaml:"broker"` // e.g. tcp://localhost:1883
	ClientID    string `yaml:"client_id"`
	Topic       string `yaml:"topic"`
	QoS         byte   `yaml:"qos"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	DefaultKind string `yaml:"default_kind"` // Kind stamped on payloads that carry none
}

// Enabled reports whether the MQTT bridge is configured.
func (m MQTTConfig) Enabled() bool {
	return m.Broker != ""
}
