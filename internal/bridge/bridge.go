package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/rickgao/gait-relay/internal/config"
	"github.com/rickgao/gait-relay/internal/router"
)

// ErrReadOnly is returned when something tries to send to the bridge.
var ErrReadOnly = errors.New("mqtt bridge does not accept frames")

// Config configures the MQTT bridge.
type Config struct {
	Broker            string
	ClientID          string
	Topic             string
	QoS               byte
	Username          string
	Password          string
	DefaultKind       string
	ConnectTimeout    time.Duration
	ReconnectBaseWait time.Duration
	ReconnectMaxWait  time.Duration
}

// ConfigFromMQTT converts the YAML mqtt section.
func ConfigFromMQTT(mc config.MQTTConfig) Config {
	return Config{
		Broker:            mc.Broker,
		ClientID:          mc.ClientID,
		Topic:             mc.Topic,
		QoS:               mc.QoS,
		Username:          mc.Username,
		Password:          mc.Password,
		DefaultKind:       mc.DefaultKind,
		ConnectTimeout:    10 * time.Second,
		ReconnectBaseWait: time.Second,
		ReconnectMaxWait:  time.Minute,
	}
}

// Stats contains bridge counters.
type Stats struct {
	Received  int64 `json:"received"`
	Forwarded int64 `json:"forwarded"`
	Rejected  int64 `json:"rejected"`
}

// source is the bridge's identity as seen by the router.
type source struct {
	id string
}

func (s source) ID() string          { return s.id }
func (s source) IsOpen() bool        { return true }
func (s source) Send(_ []byte) error { return ErrReadOnly }

// Bridge subscribes to an MQTT topic and routes every message.
type Bridge struct {
	cfg    Config
	router router.Router
	logger *slog.Logger
	source source
	client mqtt.Client

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	stats Stats
}

// New creates a bridge. It does not connect until Start.
func New(cfg Config, rt router.Router, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}

	b := &Bridge{
		cfg:    cfg,
		router: rt,
		source: source{id: uuid.NewString()},
	}
	b.logger = logger.With("component", "mqtt_bridge", "conn_id", b.source.id)
	b.client = mqtt.NewClient(b.clientOptions())
	return b
}

// ID returns the identity stamped on bridged messages.
func (b *Bridge) ID() string {
	return b.source.id
}

func (b *Bridge) clientOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(b.cfg.Broker).
		SetClientID(b.cfg.ClientID).
		SetOrderMatters(true).
		SetCleanSession(true).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetConnectTimeout(b.cfg.ConnectTimeout).
		SetAutoReconnect(true)

	if b.cfg.Username != "" {
		opts.SetUsername(b.cfg.Username)
	}
	if b.cfg.Password != "" {
		opts.SetPassword(b.cfg.Password)
	}

	// Subscribing in OnConnect restores the subscription after auto-reconnect.
	opts.OnConnect = func(c mqtt.Client) {
		b.logger.Info("connected to mqtt broker", "broker", b.cfg.Broker)
		token := c.Subscribe(b.cfg.Topic, b.cfg.QoS, b.handleMessage)
		if token.Wait() && token.Error() != nil {
			b.logger.Error("mqtt subscribe failed", "topic", b.cfg.Topic, "error", token.Error())
			return
		}
		b.logger.Info("subscribed to mqtt topic", "topic", b.cfg.Topic, "qos", b.cfg.QoS)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		b.logger.Warn("mqtt connection lost", "error", err)
	}

	return opts
}

// Start connects in the background, retrying with exponential backoff until
// the broker is reachable or ctx ends.
func (b *Bridge) Start(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.connectWithBackoff(b.ctx)
	}()

	return nil
}

// Stop disconnects from the broker.
func (b *Bridge) Stop(ctx context.Context) error {
	if b.cancel != nil {
		b.cancel()
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	// Disconnect also abandons a connect attempt that is still in flight.
	disconnected := make(chan struct{})
	go func() {
		b.client.Disconnect(250)
		close(disconnected)
	}()

	select {
	case <-disconnected:
	case <-ctx.Done():
		b.logger.Warn("mqtt disconnect timed out")
		return ctx.Err()
	}
	b.logger.Info("mqtt bridge stopped")
	return nil
}

// Stats returns current counters.
func (b *Bridge) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

func (b *Bridge) connectWithBackoff(ctx context.Context) {
	backoff := b.cfg.ReconnectBaseWait
	for {
		token := b.client.Connect()

		var err error
		select {
		case <-token.Done():
			err = token.Error()
		case <-time.After(b.cfg.ConnectTimeout):
			err = errors.New("connect timed out")
		case <-ctx.Done():
			return
		}
		if err == nil {
			return
		}

		b.logger.Warn("mqtt connect failed", "error", err, "retry_in", backoff)

		select {
		case <-time.After(backoff):
			if backoff < b.cfg.ReconnectMaxWait {
				backoff *= 2
				if backoff > b.cfg.ReconnectMaxWait {
					backoff = b.cfg.ReconnectMaxWait
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// handleMessage routes one MQTT message.
func (b *Bridge) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	b.mu.Lock()
	b.stats.Received++
	b.mu.Unlock()

	data, ok := b.normalize(msg.Topic(), msg.Payload())
	if !ok {
		b.logger.Warn("dropping register frame from mqtt", "topic", msg.Topic())
		b.mu.Lock()
		b.stats.Rejected++
		b.mu.Unlock()
		return
	}

	if _, err := b.router.Route(b.source, data); err != nil {
		b.mu.Lock()
		b.stats.Rejected++
		b.mu.Unlock()
		return
	}

	b.mu.Lock()
	b.stats.Forwarded++
	b.mu.Unlock()
}

// normalize stamps the default kind and topic onto a JSON object payload.
// Anything that is not a JSON object is returned unchanged so the router
// rejects and counts it like any other malformed frame. Register frames
// report false: the bridge never joins a role group.
func (b *Bridge) normalize(topic string, payload []byte) ([]byte, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil || fields == nil {
		return payload, true
	}

	if router.KindOf(fields) == router.KindRegister {
		return nil, false
	}
	hasKind := false
	for _, name := range router.KindFields {
		if _, ok := fields[name]; ok {
			hasKind = true
		}
	}
	changed := false

	if !hasKind && b.cfg.DefaultKind != "" {
		fields[router.KindFields[0]], _ = json.Marshal(b.cfg.DefaultKind)
		changed = true
	}
	if _, ok := fields["topic"]; !ok && topic != "" {
		fields["topic"], _ = json.Marshal(topic)
		changed = true
	}
	if !changed {
		return payload, true
	}

	out, err := json.Marshal(fields)
	if err != nil {
		return payload, true
	}
	return out, true
}

