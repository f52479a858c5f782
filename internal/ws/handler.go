package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rendezvous-relay/relay/internal/config"
	"github.com/rendezvous-relay/relay/internal/metrics"
	"github.com/rendezvous-relay/relay/internal/registry"
)

// Options tunes connection handling. Zero values select config.Default.
type Options struct {
	PingInterval   time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
	SendBuffer     int

	// Clock drives the heartbeat; tests substitute clock.NewMock().
	Clock   clock.Clock
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

func (o Options) withDefaults() Options {
	def := config.Default()
	if o.PingInterval <= 0 {
		o.PingInterval = def.PingInterval
	}
	if o.WriteWait <= 0 {
		o.WriteWait = def.WriteWait
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = def.MaxMessageSize
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = def.SendBuffer
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Handler accepts WebSocket connections and attaches a Session to each.
type Handler struct {
	hub        *Hub
	registry   *registry.Registry
	dispatcher *Dispatcher
	upgrader   websocket.Upgrader
	opts       Options
	log        *zap.Logger
}

// NewHandler creates a Handler sharing reg between all its connections.
func NewHandler(reg *registry.Registry, opts Options) *Handler {
	opts = opts.withDefaults()
	return &Handler{
		hub:        NewHub(opts.Metrics),
		registry:   reg,
		dispatcher: NewDispatcher(reg, opts.Logger, opts.Metrics),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Clients are not authenticated; any origin may connect.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		opts: opts,
		log:  opts.Logger,
	}
}

// Hub returns the set of live sessions.
func (h *Handler) Hub() *Hub {
	return h.hub
}

// HandleConnection upgrades the request and serves the connection in the
// background. The request path, query and headers are not inspected.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	if _, err := h.Attach(conn); err != nil {
		_ = conn.Close()
		return err
	}
	return nil
}

// Attach binds an established connection to a new Session and starts it.
func (h *Handler) Attach(conn Conn) (*Session, error) {
	client := NewClient(conn, h.opts.SendBuffer, h.opts.WriteWait, h.log, h.opts.Metrics)
	s := newSession(client, h.registry, h.dispatcher, h.opts, h.hub.Unregister)
	if err := h.hub.Register(s); err != nil {
		s.monitor.Stop()
		return nil, err
	}
	h.log.Debug("connection opened", zap.String("conn", client.ID()))

	go s.Serve(h.opts.MaxMessageSize)
	return s, nil
}

// Shutdown closes every connection and waits for their sessions to finish
// or for ctx to expire.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.hub.Close()

	done := make(chan struct{})
	go func() {
		h.hub.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
