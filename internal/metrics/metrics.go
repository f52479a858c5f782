// Package metrics exposes relay counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "relay"

// Close reasons reported by ForcedClose.
const (
	ReasonKeepalive    = "keepalive"
	ReasonSlowConsumer = "slow_consumer"
	ReasonEncode       = "encode"
	ReasonWrite        = "write"
	ReasonMalformed    = "malformed"
	ReasonShutdown     = "shutdown"
)

// Metrics holds the relay collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry     *prometheus.Registry
	connections  prometheus.Gauge
	topics       prometheus.Gauge
	received     *prometheus.CounterVec
	deliveries   prometheus.Counter
	forcedCloses *prometheus.CounterVec
}

// New creates the collectors on a private Prometheus registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Number of open client connections.",
		}),
		topics: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "topics",
			Help:      "Number of topics with at least one subscriber.",
		}),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Envelopes received from clients, by kind.",
		}, []string{"kind"}),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Delivery attempts made while fanning out published envelopes.",
		}),
		forcedCloses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forced_closes_total",
			Help:      "Connections closed by the relay, by reason.",
		}, []string{"reason"}),
	}
	m.registry.MustRegister(m.connections, m.topics, m.received, m.deliveries, m.forcedCloses)
	return m
}

// Handler serves the collectors.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer returns the underlying registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

func (m *Metrics) MessageReceived(kind string) {
	if m == nil {
		return
	}
	m.received.WithLabelValues(kind).Inc()
}

func (m *Metrics) ForcedClose(reason string) {
	if m == nil {
		return
	}
	m.forcedCloses.WithLabelValues(reason).Inc()
}

// TopicCreated implements registry.Observer.
func (m *Metrics) TopicCreated(string) {
	if m == nil {
		return
	}
	m.topics.Inc()
}

// TopicDeleted implements registry.Observer.
func (m *Metrics) TopicDeleted(string) {
	if m == nil {
		return
	}
	m.topics.Dec()
}

// Delivered implements registry.Observer.
func (m *Metrics) Delivered(_ string, receivers int) {
	if m == nil {
		return
	}
	m.deliveries.Add(float64(receivers))
}
