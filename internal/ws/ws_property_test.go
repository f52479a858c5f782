package ws

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/rendezvous-relay/relay/internal/registry"
)

var topicNames = []string{"room1", "room2", "room3"}

// envelopeFor turns a generated int into one client frame.
func envelopeFor(op int) string {
	topic := topicNames[(op/8)%len(topicNames)]
	switch op % 8 {
	case 0, 1:
		return fmt.Sprintf(`{"type":"subscribe","topics":[%q]}`, topic)
	case 2:
		return fmt.Sprintf(`{"type":"unsubscribe","topics":[%q]}`, topic)
	case 3:
		return fmt.Sprintf(`{"type":"publish","topic":%q,"n":%d}`, topic, op)
	case 4:
		return `{"type":"ping"}`
	case 5:
		return `{"type":"subscribe"}`
	case 6:
		return fmt.Sprintf(`{"type":"unknown","topic":%q}`, topic)
	default:
		return fmt.Sprintf(`{"type":"subscribe","topics":[%q, 1, null]}`, topic)
	}
}

// Dispatch property: whatever envelopes arrive, the registry matches a
// plain model of per-connection subscriptions and stays consistent.
func TestDispatcherRegistryProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("dispatch keeps registry equal to the subscription model", prop.ForAll(
		func(ops []int) bool {
			reg := registry.New()
			d := NewDispatcher(reg, nil, nil)

			clients := make([]*Client, 3)
			model := make([]map[string]bool, 3)
			for i := range clients {
				clients[i] = NewClient(newFakeConn(), 1024, time.Second, nil, nil)
				model[i] = make(map[string]bool)
			}

			for i, op := range ops {
				c := i % len(clients)
				if err := d.Dispatch(clients[c], []byte(envelopeFor(op))); err != nil {
					return false
				}
				topic := topicNames[(op/8)%len(topicNames)]
				switch op % 8 {
				case 0, 1, 7:
					model[c][topic] = true
				case 2:
					delete(model[c], topic)
				}
			}

			for i, c := range clients {
				for _, topic := range topicNames {
					if reg.IsSubscribed(c, topic) != model[i][topic] {
						return false
					}
				}
			}
			return reg.Consistent()
		},
		gen.SliceOf(gen.IntRange(0, 63)),
	))

	properties.Property("ping yields exactly one pong to the sender only", prop.ForAll(
		func(sender int) bool {
			reg := registry.New()
			d := NewDispatcher(reg, nil, nil)

			clients := make([]*Client, 3)
			for i := range clients {
				clients[i] = NewClient(newFakeConn(), 16, time.Second, nil, nil)
				reg.Subscribe(clients[i], "room1")
			}

			if err := d.Dispatch(clients[sender], []byte(`{"type":"ping"}`)); err != nil {
				return false
			}
			for i, c := range clients {
				want := 0
				if i == sender {
					want = 1
				}
				if len(c.SendChan()) != want {
					return false
				}
			}
			return string(<-clients[sender].SendChan()) == `{"type":"pong"}`
		},
		gen.IntRange(0, 2),
	))

	properties.TestingRun(t)
}
