package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rickgao/gait-relay/internal/audit"
	"github.com/rickgao/gait-relay/internal/bridge"
	"github.com/rickgao/gait-relay/internal/connection"
	"github.com/rickgao/gait-relay/internal/registry"
	"github.com/rickgao/gait-relay/internal/router"
	"github.com/rickgao/gait-relay/internal/version"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// components holds everything the health endpoints report on.
// audit, bridge and db are nil when not configured.
type components struct {
	server   *connection.Server
	registry *registry.Registry
	router   router.Router
	audit    *audit.Writer
	bridge   *bridge.Bridge
	db       pinger
}

// routes mounts the health and debug endpoints.
func (c *components) routes(mux *http.ServeMux) {
	mux.HandleFunc("/health", c.handleHealth)
	mux.HandleFunc("/debug/clients", c.handleClients)
}

func (c *components) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := struct {
		Status     string         `json:"status"`
		Version    string         `json:"version"`
		Components map[string]any `json:"components"`
	}{
		Status:     "healthy",
		Version:    version.String(),
		Components: make(map[string]any),
	}

	health.Components["connections"] = c.server.ConnectionCount()
	health.Components["registry"] = c.registry.Counts()
	health.Components["router"] = c.router.Stats()

	if c.db != nil {
		if err := c.db.Ping(ctx); err != nil {
			// Routing does not depend on the database
			health.Status = "degraded"
			health.Components["postgres"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["postgres"] = "connected"
		}
	}
	if c.audit != nil {
		health.Components["audit"] = c.audit.Stats()
	}
	if c.bridge != nil {
		health.Components["mqtt_bridge"] = c.bridge.Stats()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

func (c *components) handleClients(w http.ResponseWriter, r *http.Request) {
	groups := make(map[registry.Role][]string, len(registry.Roles))
	for _, role := range registry.Roles {
		ids := []string{}
		for _, e := range c.registry.Snapshot(role) {
			ids = append(ids, e.ID)
		}
		groups[role] = ids
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"groups":      groups,
		"connections": c.server.Connections(),
	})
}
