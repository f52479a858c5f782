package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type frame struct {
	messageType int
	data        []byte
}

// fakeConn is an in-memory Conn. Frames pushed with deliver are returned by
// ReadMessage; pong frames are handed to the pong handler on the reading
// goroutine, as gorilla/websocket does.
type fakeConn struct {
	inbound chan frame
	writes  chan []byte
	pings   chan struct{}
	closed  chan struct{}

	mu          sync.Mutex
	pongHandler func(string) error
	pingErr     error
	writeErr    error
	pingCount   int
	closeOnce   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan frame, 16),
		writes:  make(chan []byte, 64),
		pings:   make(chan struct{}, 16),
		closed:  make(chan struct{}),
	}
}

func (f *fakeConn) deliver(data string) {
	f.inbound <- frame{messageType: websocket.TextMessage, data: []byte(data)}
}

func (f *fakeConn) deliverPong() {
	f.inbound <- frame{messageType: websocket.PongMessage}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	for {
		select {
		case fr := <-f.inbound:
			if fr.messageType == websocket.PongMessage {
				f.mu.Lock()
				h := f.pongHandler
				f.mu.Unlock()
				if h != nil {
					_ = h("")
				}
				continue
			}
			return fr.messageType, fr.data, nil
		case <-f.closed:
			return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
		}
	}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	err := f.writeErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	f.writes <- data
	return nil
}

func (f *fakeConn) WriteControl(messageType int, _ []byte, _ time.Time) error {
	if messageType != websocket.PingMessage {
		return nil
	}
	f.mu.Lock()
	f.pingCount++
	err := f.pingErr
	f.mu.Unlock()
	f.pings <- struct{}{}
	return err
}

func (f *fakeConn) SetReadLimit(int64) {}

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeConn) SetPongHandler(h func(string) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pongHandler = h
}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeConn) pingsSent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingCount
}

var errBrokenPipe = errors.New("broken pipe")
