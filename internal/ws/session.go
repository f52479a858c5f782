package ws

import (
	"errors"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rendezvous-relay/relay/internal/keepalive"
	"github.com/rendezvous-relay/relay/internal/metrics"
	"github.com/rendezvous-relay/relay/internal/registry"
)

var errPongTimeout = errors.New("pong not received within heartbeat interval")

// heartbeat adapts a Client to keepalive.Target so that keepalive closures
// are recorded with their own reason.
type heartbeat struct {
	client *Client
}

func (h heartbeat) Ping() error {
	return h.client.Ping()
}

func (h heartbeat) Close() error {
	h.client.ForceClose(metrics.ReasonKeepalive, errPongTimeout)
	return nil
}

type eventKind int

const (
	eventMessage eventKind = iota
	eventPong
)

type event struct {
	kind eventKind
	data []byte
}

// Session drives one connection from upgrade to close.
//
// Inbound frames and pongs arrive on one channel in the order the read pump
// saw them; heartbeat ticks arrive from the monitor. Run handles them one at
// a time. When the read side ends, Run stops the heartbeat and purges the
// client from the registry in the same step, so no tick is ever handled for
// a purged connection.
type Session struct {
	client     *Client
	registry   *registry.Registry
	dispatcher *Dispatcher
	monitor    *keepalive.Monitor
	log        *zap.Logger

	events chan event
	done   chan struct{}

	onClose func(*Session)
}

func newSession(client *Client, reg *registry.Registry, d *Dispatcher, opts Options, onClose func(*Session)) *Session {
	return &Session{
		client:     client,
		registry:   reg,
		dispatcher: d,
		monitor:    keepalive.New(opts.Clock, opts.PingInterval, heartbeat{client: client}),
		log:        client.log,
		events:     make(chan event),
		done:       make(chan struct{}),
		onClose:    onClose,
	}
}

// Client returns the session's connection.
func (s *Session) Client() *Client {
	return s.client
}

// Done is closed once the session has been torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Serve starts the pumps and runs the session until the connection closes.
func (s *Session) Serve(maxMessageSize int64) {
	go s.client.writePump()
	go s.readPump(maxMessageSize)
	s.Run()
}

// readPump feeds inbound frames and pongs to Run. It closes s.events when
// the connection fails or is closed from either side.
func (s *Session) readPump(maxMessageSize int64) {
	defer close(s.events)

	conn := s.client.conn
	if maxMessageSize > 0 {
		conn.SetReadLimit(maxMessageSize)
	}
	// Runs on this goroutine, inside ReadMessage.
	conn.SetPongHandler(func(string) error {
		s.events <- event{kind: eventPong}
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				s.log.Debug("read failed", zap.Error(err))
			}
			return
		}
		s.events <- event{kind: eventMessage, data: message}
	}
}

// Run processes the connection's events until it closes.
func (s *Session) Run() {
	defer s.teardown()

	for {
		select {
		case ev, ok := <-s.events:
			if !ok {
				return
			}
			switch ev.kind {
			case eventMessage:
				s.handleMessage(ev.data)
			case eventPong:
				s.log.Debug("pong")
				s.monitor.Pong()
			}
		case <-s.monitor.C():
			if !s.monitor.Tick() {
				s.log.Debug("heartbeat expired")
			}
		}
	}
}

func (s *Session) handleMessage(message []byte) {
	if s.client.IsClosed() {
		return
	}
	s.log.Debug("message", zap.ByteString("message", message))

	if err := s.dispatcher.Dispatch(s.client, message); err != nil {
		s.log.Info("closing connection after malformed envelope", zap.Error(err))
		s.client.ForceClose(metrics.ReasonMalformed, err)
	}
}

func (s *Session) teardown() {
	s.monitor.Stop()
	topics := s.registry.RemoveConnection(s.client)
	_ = s.client.Close()
	s.log.Debug("close", zap.Strings("topics", topics))

	if s.onClose != nil {
		s.onClose(s)
	}
	close(s.done)
}
