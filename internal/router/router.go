package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rickgao/gait-relay/internal/registry"
)

// KindFields are the discriminator fields, checked in order. "type" is what
// deployed clients send.
var KindFields = []string{"kind", "type"}

// Router routes inbound frames to registry groups.
type Router interface {
	// Route handles one frame from sender. Only malformed frames return
	// an error; the caller logs it and keeps the connection open.
	Route(sender registry.Handle, data []byte) (Outcome, error)

	// Stats returns current router statistics.
	Stats() RouterStats
}

// router is the internal implementation.
type router struct {
	cfg      RouterConfig
	registry *registry.Registry
	routes   map[string]Route
	logger   *slog.Logger
	now      func() time.Time

	mu    sync.Mutex
	stats RouterStats
}

// NewRouter creates a new Router reading from reg.
func NewRouter(cfg RouterConfig, reg *registry.Registry, logger *slog.Logger) Router {
	if logger == nil {
		logger = slog.Default()
	}

	routes := make(map[string]Route, len(cfg.Routes))
	for _, r := range cfg.Routes {
		routes[r.Kind] = r
	}

	return &router{
		cfg:      cfg,
		registry: reg,
		routes:   routes,
		logger:   logger,
		now:      time.Now,
	}
}

// Stats returns current statistics.
func (r *router) Stats() RouterStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Route parses and routes a single frame.
func (r *router) Route(sender registry.Handle, data []byte) (Outcome, error) {
	receivedAt := r.now()

	r.mu.Lock()
	r.stats.MessagesReceived++
	r.mu.Unlock()

	fields, err := decodeObject(data)
	if err != nil {
		r.logger.Warn("failed to parse frame", "conn_id", sender.ID(), "error", err)
		r.mu.Lock()
		r.stats.ParseErrors++
		r.mu.Unlock()
		return Outcome{Role: registry.RoleUnknown}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	kind := KindOf(fields)
	if kind == KindRegister {
		return r.register(sender, data), nil
	}

	route, ok := r.routes[kind]
	if !ok {
		r.logger.Debug("skipping unrouted frame", "conn_id", sender.ID(), "kind", kind)
		r.mu.Lock()
		r.stats.UnroutedMessages++
		r.mu.Unlock()
		return Outcome{Kind: kind, Role: registry.RoleUnknown}, nil
	}

	return r.broadcast(sender, route, fields, receivedAt), nil
}

// register applies a role declaration to the registry.
func (r *router) register(sender registry.Handle, data []byte) Outcome {
	out := Outcome{Kind: KindRegister, Role: registry.RoleUnknown}

	var wire registerWire
	// decodeObject already accepted data, so only a non-string role can fail here
	_ = json.Unmarshal(data, &wire)

	role, err := registry.ParseRole(wire.Role)
	if err == nil {
		err = r.registry.Register(sender.ID(), role, sender)
	}
	if err != nil {
		r.logger.Warn("ignoring registration", "conn_id", sender.ID(), "error", err)
		r.mu.Lock()
		r.stats.InvalidRegistrations++
		r.mu.Unlock()
		return out
	}

	r.logger.Info("registered client", "conn_id", sender.ID(), "role", role)
	r.mu.Lock()
	r.stats.Registrations++
	r.mu.Unlock()

	out.Role = role
	return out
}

// broadcast enriches fields and sends them to every open member of the
// route's target group. One failed recipient never stops the loop.
func (r *router) broadcast(sender registry.Handle, route Route, fields map[string]json.RawMessage, receivedAt time.Time) Outcome {
	out := Outcome{Kind: route.Kind, Role: registry.RoleUnknown, Target: route.Target}

	origin, _ := json.Marshal(sender.ID())
	fields[route.OriginField] = origin
	fields[r.cfg.TimestampField] = json.RawMessage(strconv.FormatInt(receivedAt.UnixMilli(), 10))

	payload, err := json.Marshal(fields)
	if err != nil {
		// Unreachable for values that came out of json.Unmarshal.
		r.logger.Error("failed to encode envelope", "conn_id", sender.ID(), "error", err)
		return out
	}

	for _, member := range r.registry.Snapshot(route.Target) {
		if !member.Handle.IsOpen() {
			out.Skipped++
			continue
		}
		if err := member.Handle.Send(payload); err != nil {
			r.logger.Debug("send failed, skipping recipient",
				"conn_id", member.ID,
				"role", route.Target,
				"error", err,
			)
			out.Skipped++
			continue
		}
		out.Delivered++
	}

	r.mu.Lock()
	r.stats.MessagesRouted++
	r.stats.Delivered += int64(out.Delivered)
	r.stats.Skipped += int64(out.Skipped)
	r.mu.Unlock()

	r.logger.Debug("routed frame",
		"conn_id", sender.ID(),
		"kind", route.Kind,
		"target", route.Target,
		"delivered", out.Delivered,
		"skipped", out.Skipped,
	)

	return out
}

// decodeObject parses a frame that must be a UTF-8 JSON object.
// encoding/json would keep invalid bytes inside a RawMessage and copy them
// to every recipient, so they are rejected up front.
func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	if !utf8.Valid(data) {
		return nil, errors.New("frame is not valid UTF-8")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("frame is not a JSON object")
	}
	return fields, nil
}

// KindOf returns the first string-valued field of KindFields, or "".
func KindOf(fields map[string]json.RawMessage) string {
	for _, name := range KindFields {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		var kind string
		if err := json.Unmarshal(raw, &kind); err == nil {
			return kind
		}
	}
	return ""
}
