package ws

import (
	"errors"

	"go.uber.org/zap"

	"github.com/rendezvous-relay/relay/internal/metrics"
	"github.com/rendezvous-relay/relay/internal/protocol"
	"github.com/rendezvous-relay/relay/internal/registry"
)

// Dispatcher applies client envelopes to the registry.
type Dispatcher struct {
	registry *registry.Registry
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// NewDispatcher creates a Dispatcher working on reg.
func NewDispatcher(reg *registry.Registry, log *zap.Logger, m *metrics.Metrics) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{registry: reg, log: log, metrics: m}
}

// Dispatch handles one inbound frame from client.
//
// Unknown envelope types and envelopes missing their fields are ignored.
// Only a frame that is not valid JSON yields an error, which the caller
// answers by closing the connection. Nothing is ever sent back to the peer
// except the pong for a ping.
func (d *Dispatcher) Dispatch(client *Client, data []byte) error {
	env, err := protocol.Parse(data)
	if errors.Is(err, protocol.ErrMalformedEnvelope) {
		return err
	}
	d.metrics.MessageReceived(env.Kind.String())
	if err != nil {
		d.log.Debug("ignoring envelope", zap.String("conn", client.ID()), zap.Error(err))
		return nil
	}

	switch env.Kind {
	case protocol.KindSubscribe:
		for _, topic := range env.Topics {
			d.registry.Subscribe(client, topic)
		}
	case protocol.KindUnsubscribe:
		for _, topic := range env.Topics {
			d.registry.Unsubscribe(client, topic)
		}
	case protocol.KindPublish:
		d.registry.Publish(env.Topic, env.Raw)
	case protocol.KindPing:
		client.SendJSON(protocol.NewPong())
	}
	return nil
}
