package ws

import (
	"sync"

	"github.com/rendezvous-relay/relay/internal/metrics"
	"github.com/rendezvous-relay/relay/internal/model"
)

// Hub tracks the live sessions so they can be counted and closed together.
type Hub struct {
	sessions map[*Session]struct{}
	closed   bool
	wg       sync.WaitGroup
	metrics  *metrics.Metrics
	mu       sync.RWMutex
}

// NewHub creates an empty Hub.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		sessions: make(map[*Session]struct{}),
		metrics:  m,
	}
}

// Register adds a session to the hub. It fails once the hub is closed.
func (h *Hub) Register(s *Session) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return model.ErrServerClosed
	}
	h.sessions[s] = struct{}{}
	h.wg.Add(1)
	h.metrics.ConnectionOpened()
	return nil
}

// Unregister removes a session from the hub.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[s]; !ok {
		return
	}
	delete(h.sessions, s)
	h.metrics.ConnectionClosed()
	h.wg.Done()
}

// Count returns the number of live sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Close refuses new sessions and closes every live one. Sessions finish
// their teardown asynchronously; use Wait to block until they are gone.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	sessions := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.client.ForceClose(metrics.ReasonShutdown, model.ErrServerClosed)
	}
}

// Wait blocks until every registered session has unregistered.
func (h *Hub) Wait() {
	h.wg.Wait()
}
