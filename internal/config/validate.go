package config

import (
	"errors"
	"fmt"
)

// reservedFields carry the payload kind and cannot be envelope fields.
var reservedFields = map[string]bool{
	"kind": true,
	"type": true,
}

var validTargets = map[string]bool{
	"sensor":    true,
	"processor": true,
	"dashboard": true,
}

// Validate checks that all required fields are set and values are valid.
func (c *RelayConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Path == "" || c.Server.Path[0] != '/' {
		return fmt.Errorf("server.path must start with /, got %q", c.Server.Path)
	}
	if c.Server.ReadLimit < 1 {
		return errors.New("server.read_limit must be >= 1")
	}
	if c.Server.WriteTimeout <= 0 {
		return errors.New("server.write_timeout must be > 0")
	}
	if c.Server.OutboxSize < 1 {
		return errors.New("server.outbox_size must be >= 1")
	}
	if c.Server.OutboxMax < c.Server.OutboxSize {
		return fmt.Errorf("server.outbox_max (%d) cannot be less than outbox_size (%d)", c.Server.OutboxMax, c.Server.OutboxSize)
	}

	if err := c.Routing.validate(); err != nil {
		return err
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	if c.Database.Enabled() {
		if err := c.Database.validate("database"); err != nil {
			return err
		}
		if c.Audit.BatchSize < 1 {
			return errors.New("audit.batch_size must be >= 1")
		}
	}

	if c.MQTT.Enabled() && c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}

	return nil
}

func (r *RoutingConfig) validate() error {
	if r.TimestampField == "" {
		return errors.New("routing.timestamp_field is required")
	}
	if reservedFields[r.TimestampField] {
		return fmt.Errorf("routing.timestamp_field %q is reserved", r.TimestampField)
	}
	seen := make(map[string]bool, len(r.Routes))
	for i, route := range r.Routes {
		prefix := fmt.Sprintf("routing.routes[%d]", i)
		if route.Kind == "" {
			return fmt.Errorf("%s.kind is required", prefix)
		}
		if route.Kind == "register" {
			return fmt.Errorf("%s.kind %q is reserved", prefix, route.Kind)
		}
		if seen[route.Kind] {
			return fmt.Errorf("%s.kind %q is duplicated", prefix, route.Kind)
		}
		seen[route.Kind] = true
		if !validTargets[route.Target] {
			return fmt.Errorf("%s.target must be sensor, processor or dashboard, got %q", prefix, route.Target)
		}
		if reservedFields[route.OriginField] {
			return fmt.Errorf("%s.origin_field %q is reserved", prefix, route.OriginField)
		}
		if route.OriginField == r.TimestampField {
			return fmt.Errorf("%s.origin_field collides with routing.timestamp_field", prefix)
		}
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
