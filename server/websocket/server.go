// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package websocket

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/absmach/liveassist/gateway"
	"github.com/absmach/liveassist/ratelimit"
)

// Config holds WebSocket server configuration.
type Config struct {
	Address         string
	Path            string
	ShutdownTimeout time.Duration
	MaxFrameSize    int64
	WriteTimeout    time.Duration
}

// Server is the gateway's client-facing WebSocket listener. Each upgraded
// connection gets its own goroutine running the gateway handler loop.
type Server struct {
	config   Config
	handler  *gateway.Handler
	limiter  *ratelimit.IPRateLimiter
	logger   *slog.Logger
	server   *http.Server
	upgrader websocket.Upgrader
}

// New creates a new WebSocket server. The limiter is optional; pass nil to
// disable connection rate limiting.
func New(cfg Config, handler *gateway.Handler, limiter *ratelimit.IPRateLimiter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Path == "" {
		cfg.Path = "/ws"
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	s := &Server{
		config:  cfg,
		handler: handler,
		limiter: limiter,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Path, s.handleWebSocket)

	s.server = &http.Server{
		Addr:    cfg.Address,
		Handler: mux,
	}

	return s
}

// Listen starts the WebSocket server and blocks until ctx is canceled or
// the listener fails.
func (s *Server) Listen(ctx context.Context) error {
	s.logger.Info("websocket_server_starting",
		slog.String("addr", s.config.Address),
		slog.String("path", s.config.Path))

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("websocket_server_shutdown_initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("websocket_server_shutdown_error", slog.String("error", err.Error()))
			return err
		}

		s.logger.Info("websocket_server_stopped")
		return nil
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil && !s.limiter.Allow(r.RemoteAddr) {
		s.logger.Warn("connection_rate_limited", slog.String("remote_addr", r.RemoteAddr))
		http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket_upgrade_failed", slog.String("error", err.Error()))
		return
	}

	s.logger.Debug("websocket_connection_accepted", slog.String("remote_addr", r.RemoteAddr))

	conn := newWSConn(ws, s.config)
	go s.handler.HandleConnection(context.Background(), conn)
}

// wsConn implements gateway.Conn for WebSocket transport.
type wsConn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	closed bool
	onPong func()
}

func newWSConn(ws *websocket.Conn, cfg Config) gateway.Conn {
	c := &wsConn{
		ws:           ws,
		writeTimeout: cfg.WriteTimeout,
	}

	if cfg.MaxFrameSize > 0 {
		ws.SetReadLimit(cfg.MaxFrameSize)
	}
	ws.SetPongHandler(func(string) error {
		c.mu.Lock()
		fn := c.onPong
		c.mu.Unlock()
		if fn != nil {
			fn()
		}
		return nil
	})

	return c
}

func (c *wsConn) ReadFrame() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *wsConn) WriteFrame(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return net.ErrClosed
	}
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return net.ErrClosed
	}
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

func (c *wsConn) SetPongHandler(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPong = fn
}

func (c *wsConn) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *wsConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.ws.Close()
}

func (c *wsConn) RemoteAddr() net.Addr {
	return c.ws.RemoteAddr()
}
