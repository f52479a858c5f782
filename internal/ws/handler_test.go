package ws

import (
	"testing"
	"time"

	"github.com/rendezvous-relay/relay/internal/config"
)

func TestOptionsDefaultsFollowConfig(t *testing.T) {
	def := config.Default()
	opts := Options{}.withDefaults()

	if opts.PingInterval != def.PingInterval {
		t.Errorf("PingInterval = %v, want %v", opts.PingInterval, def.PingInterval)
	}
	if opts.WriteWait != def.WriteWait {
		t.Errorf("WriteWait = %v, want %v", opts.WriteWait, def.WriteWait)
	}
	if opts.MaxMessageSize != def.MaxMessageSize {
		t.Errorf("MaxMessageSize = %d, want %d", opts.MaxMessageSize, def.MaxMessageSize)
	}
	if opts.SendBuffer != def.SendBuffer {
		t.Errorf("SendBuffer = %d, want %d", opts.SendBuffer, def.SendBuffer)
	}
	if opts.Clock == nil || opts.Logger == nil {
		t.Error("clock and logger must be set")
	}

	custom := Options{PingInterval: time.Second, SendBuffer: 4}.withDefaults()
	if custom.PingInterval != time.Second || custom.SendBuffer != 4 {
		t.Errorf("explicit values overridden: %+v", custom)
	}
}

func TestNewClientDefaultsFollowConfig(t *testing.T) {
	def := config.Default()
	client := NewClient(newFakeConn(), 0, 0, nil, nil)

	if cap(client.send) != def.SendBuffer {
		t.Errorf("send buffer = %d, want %d", cap(client.send), def.SendBuffer)
	}
	if client.writeWait != def.WriteWait {
		t.Errorf("write wait = %v, want %v", client.writeWait, def.WriteWait)
	}
}
