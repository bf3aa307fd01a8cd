package router

import (
	"errors"
	"fmt"

	"github.com/rickgao/gait-relay/internal/config"
	"github.com/rickgao/gait-relay/internal/registry"
)

// ErrMalformed is returned for frames that are not a JSON object.
var ErrMalformed = errors.New("malformed frame")

// KindRegister is the reserved kind for role declarations.
const KindRegister = "register"

// Route sends one payload kind to one group.
type Route struct {
	Kind        string
	Target      registry.Role
	OriginField string // Envelope field set to the sender identity
}

// RouterConfig holds configuration for the Router.
type RouterConfig struct {
	TimestampField string // Envelope field set to receipt time, epoch ms
	Routes         []Route
}

// DefaultRouterConfig returns the sensor → processor → dashboard pipeline.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		TimestampField: config.DefaultTimestampField,
		Routes: []Route{
			{Kind: "sensor", Target: registry.RoleProcessor, OriginField: config.DefaultOriginField},
			{Kind: "processed", Target: registry.RoleDashboard, OriginField: config.DefaultOriginField},
		},
	}
}

// ConfigFromRouting converts the YAML routing section.
func ConfigFromRouting(rc config.RoutingConfig) (RouterConfig, error) {
	cfg := RouterConfig{TimestampField: rc.TimestampField}
	for _, r := range rc.Routes {
		target, err := registry.ParseRole(r.Target)
		if err != nil {
			return RouterConfig{}, fmt.Errorf("route %q: %w", r.Kind, err)
		}
		cfg.Routes = append(cfg.Routes, Route{
			Kind:        r.Kind,
			Target:      target,
			OriginField: r.OriginField,
		})
	}
	return cfg, nil
}

// Outcome describes what Route did with one frame.
type Outcome struct {
	Kind string

	// Role is the sender's new role after a valid register frame,
	// RoleUnknown otherwise.
	Role registry.Role

	// Broadcast results; zero for register and unrouted frames.
	Target    registry.Role
	Delivered int
	Skipped   int
}

// Registered reports whether the frame changed the sender's role.
func (o Outcome) Registered() bool {
	return o.Kind == KindRegister && o.Role.Valid()
}

// RouterStats contains runtime statistics.
type RouterStats struct {
	MessagesReceived     int64 `json:"messages_received"`
	MessagesRouted       int64 `json:"messages_routed"`
	Registrations        int64 `json:"registrations"`
	InvalidRegistrations int64 `json:"invalid_registrations"`
	ParseErrors          int64 `json:"parse_errors"`
	UnroutedMessages     int64 `json:"unrouted_messages"`
	Delivered            int64 `json:"delivered"`
	Skipped              int64 `json:"skipped"`
}

// registerWire is the payload of a register frame.
type registerWire struct {
	Role string `json:"role"`
}
