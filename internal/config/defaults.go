package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultPort           = 8080
	DefaultPath           = "/ws"
	DefaultReadLimit      = 100 << 20
	DefaultWriteTimeout   = 5 * time.Second
	DefaultPingInterval   = 30 * time.Second
	DefaultOutboxSize     = 64
	DefaultOutboxMax      = 4096
	DefaultTimestampField = "serverTimestamp"
	DefaultOriginField    = "originIdentity"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
	DefaultDBPort         = 5432
	DefaultDBSSLMode      = "prefer"
	DefaultMaxConns       = 4
	DefaultMinConns       = 1
	DefaultAuditBatchSize = 100
	DefaultAuditFlush     = 2 * time.Second
	DefaultMQTTClientID   = "gait-relay"
	DefaultMQTTTopic      = "sensors/#"
	DefaultMQTTKind       = "sensor"
)

// DefaultRoutes mirrors the sensor → processor → dashboard pipeline.
func DefaultRoutes() []RouteConfig {
	return []RouteConfig{
		{Kind: "sensor", Target: "processor", OriginField: DefaultOriginField},
		{Kind: "processed", Target: "dashboard", OriginField: DefaultOriginField},
	}
}

func (c *RelayConfig) applyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.Path == "" {
		c.Server.Path = DefaultPath
	}
	if c.Server.ReadLimit == 0 {
		c.Server.ReadLimit = DefaultReadLimit
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.PingInterval == 0 {
		c.Server.PingInterval = DefaultPingInterval
	}
	if c.Server.OutboxSize == 0 {
		c.Server.OutboxSize = DefaultOutboxSize
	}
	if c.Server.OutboxMax == 0 {
		c.Server.OutboxMax = DefaultOutboxMax
	}

	// Routing defaults
	if c.Routing.TimestampField == "" {
		c.Routing.TimestampField = DefaultTimestampField
	}
	if len(c.Routing.Routes) == 0 {
		c.Routing.Routes = DefaultRoutes()
	}
	for i := range c.Routing.Routes {
		if c.Routing.Routes[i].OriginField == "" {
			c.Routing.Routes[i].OriginField = DefaultOriginField
		}
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}

	// Database defaults only matter when auditing is on
	if c.Database.Enabled() {
		if c.Database.Port == 0 {
			c.Database.Port = DefaultDBPort
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = DefaultDBSSLMode
		}
		if c.Database.MaxConns == 0 {
			c.Database.MaxConns = DefaultMaxConns
		}
		if c.Database.MinConns == 0 {
			c.Database.MinConns = DefaultMinConns
		}
	}

	if c.Audit.BatchSize == 0 {
		c.Audit.BatchSize = DefaultAuditBatchSize
	}
	if c.Audit.FlushInterval == 0 {
		c.Audit.FlushInterval = DefaultAuditFlush
	}

	if c.MQTT.Enabled() {
		if c.MQTT.ClientID == "" {
			c.MQTT.ClientID = DefaultMQTTClientID
		}
		if c.MQTT.Topic == "" {
			c.MQTT.Topic = DefaultMQTTTopic
		}
		if c.MQTT.DefaultKind == "" {
			c.MQTT.DefaultKind = DefaultMQTTKind
		}
	}
}
