package connection

import (
	"errors"
	"net/http"
	"time"

	"github.com/rickgao/gait-relay/internal/config"
	"github.com/rickgao/gait-relay/internal/registry"
)

// Errors
var (
	ErrClosed    = errors.New("connection closed")
	ErrQueueFull = errors.New("outbound queue full")
)

// Config configures the WebSocket server.
type Config struct {
	ReadLimit    int64         // Max inbound frame size
	WriteTimeout time.Duration // Write deadline per outbound frame
	PingInterval time.Duration // Keepalive ping period, 0 disables
	OutboxSize   int           // Initial outbound queue capacity
	OutboxMax    int           // Outbound queue capacity ceiling

	// CheckOrigin overrides the upgrader origin check. Nil accepts all origins.
	CheckOrigin func(r *http.Request) bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ReadLimit:    config.DefaultReadLimit,
		WriteTimeout: config.DefaultWriteTimeout,
		PingInterval: config.DefaultPingInterval,
		OutboxSize:   config.DefaultOutboxSize,
		OutboxMax:    config.DefaultOutboxMax,
	}
}

// ConfigFromServer converts the YAML server section. A negative
// ping_interval turns keepalives off.
func ConfigFromServer(sc config.ServerConfig) Config {
	ping := sc.PingInterval
	if ping < 0 {
		ping = 0
	}
	return Config{
		ReadLimit:    sc.ReadLimit,
		WriteTimeout: sc.WriteTimeout,
		PingInterval: ping,
		OutboxSize:   sc.OutboxSize,
		OutboxMax:    sc.OutboxMax,
	}
}

// Observer is notified of connection lifecycle events. Calls are made from
// connection goroutines and must not block.
type Observer interface {
	Connected(id, remoteAddr string)
	Registered(id string, role registry.Role)
	Disconnected(id string, role registry.Role)
}

// NopObserver ignores all events.
type NopObserver struct{}

func (NopObserver) Connected(string, string)           {}
func (NopObserver) Registered(string, registry.Role)   {}
func (NopObserver) Disconnected(string, registry.Role) {}

// ConnInfo is a point-in-time view of one connection.
type ConnInfo struct {
	ID         string        `json:"id"`
	Role       registry.Role `json:"role"`
	RemoteAddr string        `json:"remote_addr"`
	Queued     int           `json:"queued"`
	Dropped    int64         `json:"dropped"` // Frames refused because the outbox was full
}
