package connection

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/gait-relay/internal/registry"
)

// Conn is one accepted WebSocket connection. It satisfies registry.Handle.
type Conn struct {
	id         string
	remoteAddr string
	cfg        Config
	logger     *slog.Logger

	ws     *websocket.Conn
	outbox *Queue[[]byte]

	// Closed when the write loop exits
	writerDone chan struct{}
	// Closed on first Close call
	done chan struct{}

	mu     sync.RWMutex
	role   registry.Role
	closed bool
}

func newConn(id, remoteAddr string, ws *websocket.Conn, cfg Config, logger *slog.Logger) *Conn {
	return &Conn{
		id:         id,
		remoteAddr: remoteAddr,
		cfg:        cfg,
		logger:     logger.With("conn_id", id),
		ws:         ws,
		outbox:     NewQueue[[]byte](cfg.OutboxSize, cfg.OutboxMax),
		writerDone: make(chan struct{}),
		done:       make(chan struct{}),
		role:       registry.RoleUnknown,
	}
}

// ID returns the connection identity.
func (c *Conn) ID() string {
	return c.id
}

// RemoteAddr returns the peer address reported by the HTTP request.
func (c *Conn) RemoteAddr() string {
	return c.remoteAddr
}

// IsOpen reports whether the connection still accepts sends.
func (c *Conn) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}

// Send queues one text frame for delivery. It never waits on the peer.
func (c *Conn) Send(data []byte) error {
	if !c.IsOpen() {
		return ErrClosed
	}
	return c.outbox.Push(data)
}

// Role returns the role the connection last registered as.
func (c *Conn) Role() registry.Role {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.role
}

func (c *Conn) setRole(role registry.Role) registry.Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.role
	c.role = role
	return prev
}

// Info returns a snapshot of the connection state.
func (c *Conn) Info() ConnInfo {
	qs := c.outbox.Stats()
	return ConnInfo{
		ID:         c.id,
		Role:       c.Role(),
		RemoteAddr: c.remoteAddr,
		Queued:     qs.Count,
		Dropped:    qs.Dropped,
	}
}

// Close stops accepting sends and lets the write loop flush what is queued,
// send a close frame, and tear down the socket.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.done)
	c.outbox.Close()
	return nil
}

// writeLoop drains the outbox onto the socket.
func (c *Conn) writeLoop() {
	defer close(c.writerDone)
	defer c.ws.Close()

	for {
		data, ok := c.outbox.Pop()
		if !ok {
			c.ws.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			return
		}

		c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
		if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
			c.logger.Debug("write failed, closing connection", "error", err)
			return
		}
	}
}

// heartbeatLoop sends keepalive pings. A failed ping is left for the read
// loop to notice; there is no idle eviction.
func (c *Conn) heartbeatLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-c.writerDone:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
				return
			}
		}
	}
}
