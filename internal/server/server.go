// Package server runs the relay: one HTTP listener that upgrades WebSocket
// requests and answers everything else with a health response, plus an
// optional Prometheus listener.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/rendezvous-relay/relay/api/handlers"
	"github.com/rendezvous-relay/relay/internal/config"
	"github.com/rendezvous-relay/relay/internal/metrics"
	"github.com/rendezvous-relay/relay/internal/model"
	"github.com/rendezvous-relay/relay/internal/registry"
	"github.com/rendezvous-relay/relay/internal/ws"
)

// Status strings returned by Start and Stop.
const (
	StatusStarted = "relay started"
	StatusStopped = "stopped"
)

const shutdownTimeout = 5 * time.Second

// Option customizes a Server.
type Option func(*Server)

// WithClock drives connection heartbeats from clk.
func WithClock(clk clock.Clock) Option {
	return func(s *Server) {
		s.clock = clk
	}
}

// WithMetrics records relay activity into m instead of a fresh collector set.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// Server owns the relay listener and every connection accepted on it.
type Server struct {
	cfg      *config.Config
	log      *zap.Logger
	registry *registry.Registry
	metrics  *metrics.Metrics
	clock    clock.Clock

	handler *ws.Handler
	engine  *gin.Engine

	httpServer *http.Server
	listener   net.Listener

	metricsServer   *http.Server
	metricsListener net.Listener

	running bool
	closed  bool
	mu      sync.Mutex
}

// New creates a Server. A nil reg gets a fresh registry and a nil cfg
// selects config.Default.
func New(cfg *config.Config, reg *registry.Registry, log *zap.Logger, opts ...Option) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	if reg == nil {
		reg = registry.New()
	}
	if log == nil {
		log = zap.NewNop()
	}

	s := &Server{
		cfg:      cfg,
		log:      log,
		registry: reg,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	reg.SetObserver(s.metrics)

	s.handler = ws.NewHandler(reg, ws.Options{
		PingInterval:   cfg.PingInterval,
		WriteWait:      cfg.WriteWait,
		MaxMessageSize: cfg.MaxMessageSize,
		SendBuffer:     cfg.SendBuffer,
		Clock:          s.clock,
		Logger:         log,
		Metrics:        s.metrics,
	})

	engine := gin.New()
	engine.Use(gin.Recovery(), handlers.RequestLogger(log), handlers.CORS())
	handlers.NewWebSocketHandler(s.handler, log).RegisterRoutes(engine)
	s.engine = engine

	return s
}

// Start binds the relay listener and serves in the background. Calling Start
// on a running server returns the same status.
func (s *Server) Start() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", model.ErrServerClosed
	}
	if s.running {
		return s.status(), nil
	}

	listener, err := net.Listen("tcp", s.cfg.ListenAddr())
	if err != nil {
		return "", fmt.Errorf("listen %s: %w", s.cfg.ListenAddr(), err)
	}

	if s.cfg.MetricsAddr != "" {
		ml, err := net.Listen("tcp", s.cfg.MetricsAddr)
		if err != nil {
			_ = listener.Close()
			return "", fmt.Errorf("listen metrics %s: %w", s.cfg.MetricsAddr, err)
		}
		s.metricsListener = ml
		s.metricsServer = &http.Server{
			Handler:           s.metrics.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go s.serve(s.metricsServer, ml, "metrics")
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go s.serve(s.httpServer, listener, "relay")

	s.running = true
	s.log.Info("relay started", zap.String("addr", listener.Addr().String()))
	return s.status(), nil
}

func (s *Server) serve(srv *http.Server, l net.Listener, name string) {
	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Error("listener exited", zap.String("listener", name), zap.Error(err))
	}
}

func (s *Server) status() string {
	return fmt.Sprintf("%s on %s", StatusStarted, s.listener.Addr())
}

// Stop closes every live connection and both listeners. It may be called
// before Start and more than once.
func (s *Server) Stop() (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return StatusStopped, nil
	}
	s.closed = true
	s.running = false
	httpServer, metricsServer := s.httpServer, s.metricsServer
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error
	if httpServer != nil {
		// Hijacked WebSocket connections are not tracked by http.Server;
		// Shutdown only stops accepting new ones.
		err = multierr.Append(err, httpServer.Shutdown(ctx))
	}
	err = multierr.Append(err, s.handler.Shutdown(ctx))
	if metricsServer != nil {
		err = multierr.Append(err, metricsServer.Shutdown(ctx))
	}

	if err != nil {
		s.log.Warn("relay stopped with errors", zap.Error(err))
		return StatusStopped, err
	}
	s.log.Info("relay stopped")
	return StatusStopped, nil
}

// Addr returns the bound relay address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.ListenAddr()
}

// MetricsAddr returns the bound metrics address, or "" when metrics are off.
func (s *Server) MetricsAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.metricsListener != nil {
		return s.metricsListener.Addr().String()
	}
	return s.cfg.MetricsAddr
}

// Registry returns the topic registry shared by all connections.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// Connections returns the number of live connections.
func (s *Server) Connections() int {
	return s.handler.Hub().Count()
}
