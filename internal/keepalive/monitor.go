// Package keepalive detects half-open connections with a ping/pong heartbeat.
package keepalive

import (
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultInterval is the heartbeat period used when none is configured.
const DefaultInterval = 30 * time.Second

// Target is the connection a Monitor watches.
type Target interface {
	Ping() error
	Close() error
}

// Monitor is the liveness state machine of one connection.
//
// On every tick it either sends a ping and starts awaiting the pong, or,
// when the previous ping is still unanswered, closes the target. A peer that
// stops responding is therefore closed within two intervals.
//
// A Monitor is not safe for concurrent use; it is owned by the goroutine that
// drains C.
type Monitor struct {
	target       Target
	ticker       *clock.Ticker
	awaitingPong bool
	stopped      bool
}

// New starts a Monitor for target ticking every interval on clk.
func New(clk clock.Clock, interval time.Duration, target Target) *Monitor {
	if clk == nil {
		clk = clock.New()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		target: target,
		ticker: clk.Ticker(interval),
	}
}

// C delivers heartbeat ticks. Each value received must be handed to Tick.
func (m *Monitor) C() <-chan time.Time {
	return m.ticker.C
}

// Tick runs one heartbeat step. It returns false once the target has been
// closed, after which the Monitor is stopped.
func (m *Monitor) Tick() bool {
	if m.stopped {
		return false
	}
	if m.awaitingPong {
		m.Stop()
		_ = m.target.Close()
		return false
	}
	m.awaitingPong = true
	if err := m.target.Ping(); err != nil {
		m.Stop()
		_ = m.target.Close()
		return false
	}
	return true
}

// Pong records that the peer answered the last ping.
func (m *Monitor) Pong() {
	m.awaitingPong = false
}

// AwaitingPong reports whether a ping is outstanding.
func (m *Monitor) AwaitingPong() bool {
	return m.awaitingPong
}

// Stop cancels the heartbeat. It is safe to call more than once.
func (m *Monitor) Stop() {
	if m.stopped {
		return
	}
	m.stopped = true
	m.ticker.Stop()
}

// Stopped reports whether the heartbeat has been cancelled.
func (m *Monitor) Stopped() bool {
	return m.stopped
}
