package connection

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rickgao/gait-relay/internal/registry"
	"github.com/rickgao/gait-relay/internal/router"
)

// Server accepts WebSocket connections and feeds their frames to a Router.
type Server struct {
	cfg      Config
	registry *registry.Registry
	router   router.Router
	observer Observer
	logger   *slog.Logger
	upgrader websocket.Upgrader
	newID    func() string

	mu     sync.RWMutex
	conns  map[string]*Conn
	closed bool
	wg     sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithObserver sets the lifecycle observer.
func WithObserver(o Observer) Option {
	return func(s *Server) {
		if o != nil {
			s.observer = o
		}
	}
}

// NewServer creates a new WebSocket server.
func NewServer(cfg Config, reg *registry.Registry, rt router.Router, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}

	s := &Server{
		cfg:      cfg,
		registry: reg,
		router:   rt,
		observer: NopObserver{},
		logger:   logger,
		upgrader: websocket.Upgrader{
			CheckOrigin:     checkOrigin,
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		newID: uuid.NewString,
		conns: make(map[string]*Conn),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error response
		s.logger.Warn("failed to upgrade connection", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	c := newConn(s.newID(), r.RemoteAddr, ws, s.cfg, s.logger)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ws.Close()
		return
	}
	s.conns[c.id] = c
	s.wg.Add(1)
	s.mu.Unlock()

	s.observer.Connected(c.id, c.remoteAddr)
	s.logger.Info("client connected", "conn_id", c.id, "remote_addr", c.remoteAddr)

	go s.serve(c)
}

// serve runs the connection's goroutines and cleans up after it.
func (s *Server) serve(c *Conn) {
	defer s.wg.Done()

	go c.writeLoop()
	if s.cfg.PingInterval > 0 {
		go c.heartbeatLoop()
	}

	s.readLoop(c)
	s.finish(c)
}

// readLoop routes frames in arrival order until the socket fails.
func (s *Server) readLoop(c *Conn) {
	if s.cfg.ReadLimit > 0 {
		c.ws.SetReadLimit(s.cfg.ReadLimit)
	}

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			s.logReadError(c, err)
			return
		}

		out, err := s.router.Route(c, data)
		if err != nil {
			// Router already logged it; the connection stays up.
			continue
		}

		if out.Registered() {
			prev := c.setRole(out.Role)
			if prev != out.Role {
				s.observer.Registered(c.id, out.Role)
			}
		}
	}
}

// logReadError warns about reads that end a connection for any reason other
// than a clean close by either side. Oversized frames land here as
// websocket.ErrReadLimit.
func (s *Server) logReadError(c *Conn, err error) {
	var closeErr *websocket.CloseError
	switch {
	case !c.IsOpen():
		// Closed by Shutdown; the socket error is expected.
		c.logger.Debug("read stopped after close", "error", err)
	case errors.As(err, &closeErr) && !websocket.IsUnexpectedCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	):
		c.logger.Debug("peer closed connection", "code", closeErr.Code)
	case errors.Is(err, websocket.ErrReadLimit):
		c.logger.Warn("frame exceeds read limit, closing connection", "read_limit", s.cfg.ReadLimit)
	default:
		c.logger.Warn("read failed, closing connection", "error", err)
	}
}

// finish releases everything tied to a connection that stopped reading.
func (s *Server) finish(c *Conn) {
	c.Close()
	c.ws.Close()
	<-c.writerDone

	role := c.Role()
	s.registry.Unregister(c.id, role)

	s.mu.Lock()
	delete(s.conns, c.id)
	s.mu.Unlock()

	s.observer.Disconnected(c.id, role)
	s.logger.Info("client disconnected", "conn_id", c.id, "role", role)
}

// Connections returns a snapshot of all live connections ordered by ID.
func (s *Server) Connections() []ConnInfo {
	s.mu.RLock()
	infos := make([]ConnInfo, 0, len(s.conns))
	for _, c := range s.conns {
		infos = append(infos, c.Info())
	}
	s.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// ConnectionCount returns the number of live connections.
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// Shutdown closes every connection and waits for cleanup to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	conns := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	s.logger.Info("closing connections", "count", len(conns))
	for _, c := range conns {
		c.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("all connections closed")
		return nil
	case <-ctx.Done():
		s.logger.Warn("connection shutdown timed out")
		return ctx.Err()
	}
}
