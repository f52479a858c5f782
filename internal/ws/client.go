package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rendezvous-relay/relay/internal/config"
	"github.com/rendezvous-relay/relay/internal/metrics"
	"github.com/rendezvous-relay/relay/internal/model"
)

// Conn is the duplex connection a Client drives. *websocket.Conn satisfies it.
//
// ReadMessage is only called from the read pump and WriteMessage only from
// the write pump; WriteControl and Close may be called from any goroutine.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Client is one relay connection. Its identity is its pointer; the ID only
// serves log correlation.
type Client struct {
	id        string
	conn      Conn
	send      chan []byte
	writeWait time.Duration
	log       *zap.Logger
	metrics   *metrics.Metrics

	mu     sync.Mutex
	closed bool
}

// NewClient wraps conn. sendBuffer bounds the outbound queue.
func NewClient(conn Conn, sendBuffer int, writeWait time.Duration, log *zap.Logger, m *metrics.Metrics) *Client {
	if sendBuffer <= 0 || writeWait <= 0 {
		def := config.Default()
		if sendBuffer <= 0 {
			sendBuffer = def.SendBuffer
		}
		if writeWait <= 0 {
			writeWait = def.WriteWait
		}
	}
	if log == nil {
		log = zap.NewNop()
	}
	id := uuid.NewString()
	return &Client{
		id:        id,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		writeWait: writeWait,
		log:       log.With(zap.String("conn", id)),
		metrics:   m,
	}
}

// ID returns the log correlation ID.
func (c *Client) ID() string {
	return c.id
}

// Send queues data for transmission as one text frame.
//
// Send never blocks and never fails towards the caller: if the client is
// closed the message is dropped, and if the outbound queue is full the
// client is force-closed.
func (c *Client) Send(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.send <- data:
		c.log.Debug("send", zap.ByteString("message", data))
	default:
		c.forceCloseLocked(metrics.ReasonSlowConsumer, model.ErrSlowConsumer)
	}
}

// SendJSON encodes v and queues it. An encoding failure force-closes the client.
func (c *Client) SendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.ForceClose(metrics.ReasonEncode, err)
		return
	}
	c.Send(data)
}

// Ping writes a ping control frame.
func (c *Client) Ping() error {
	if c.IsClosed() {
		return model.ErrClientClosed
	}
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait))
}

// Close closes the client. Queued messages are flushed by the write pump,
// which then sends a close frame and closes the connection. It is safe to
// call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}

// ForceClose closes the client because of a failure and records why.
func (c *Client) ForceClose(reason string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forceCloseLocked(reason, err)
}

func (c *Client) forceCloseLocked(reason string, err error) {
	if c.closed {
		return
	}
	c.log.Debug("force close", zap.String("reason", reason), zap.Error(err))
	c.metrics.ForcedClose(reason)
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// IsClosed returns true if the client is closed.
func (c *Client) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// SendChan returns the outbound queue.
func (c *Client) SendChan() <-chan []byte {
	return c.send
}

// writePump moves queued messages onto the connection, one frame each. It
// owns all data writes and closes the connection when it returns.
func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			c.ForceClose(metrics.ReasonWrite, err)
			return
		}
	}

	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(c.writeWait))
}
