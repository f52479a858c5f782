package ws

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendezvous-relay/relay/internal/model"
)

func TestClientSendQueuesMessages(t *testing.T) {
	client := NewClient(newFakeConn(), 4, time.Second, nil, nil)

	client.Send([]byte("one"))
	client.Send([]byte("two"))

	assert.Equal(t, "one", string(<-client.SendChan()))
	assert.Equal(t, "two", string(<-client.SendChan()))
	assert.False(t, client.IsClosed())
	assert.NotEmpty(t, client.ID())
}

func TestClientSlowConsumerIsClosed(t *testing.T) {
	client := NewClient(newFakeConn(), 1, time.Second, nil, nil)

	client.Send([]byte("fits"))
	client.Send([]byte("overflows"))

	assert.True(t, client.IsClosed())
	// dropped silently once closed
	assert.NotPanics(t, func() { client.Send([]byte("late")) })
}

func TestClientSendJSONEncodeFailureCloses(t *testing.T) {
	client := NewClient(newFakeConn(), 4, time.Second, nil, nil)

	client.SendJSON(map[string]any{"bad": make(chan int)})

	assert.True(t, client.IsClosed())
}

func TestClientSendJSON(t *testing.T) {
	client := NewClient(newFakeConn(), 4, time.Second, nil, nil)

	client.SendJSON(map[string]string{"type": "pong"})

	assert.JSONEq(t, `{"type":"pong"}`, string(<-client.SendChan()))
}

func TestClientCloseIsIdempotent(t *testing.T) {
	client := NewClient(newFakeConn(), 4, time.Second, nil, nil)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
	client.ForceClose("test", errors.New("again"))

	assert.True(t, client.IsClosed())
	assert.ErrorIs(t, client.Ping(), model.ErrClientClosed)
}

func TestClientWritePumpFlushesThenCloses(t *testing.T) {
	conn := newFakeConn()
	client := NewClient(conn, 4, time.Second, nil, nil)

	client.Send([]byte("a"))
	client.Send([]byte("b"))
	require.NoError(t, client.Close())

	client.writePump()

	assert.Equal(t, "a", string(<-conn.writes))
	assert.Equal(t, "b", string(<-conn.writes))
	assert.True(t, conn.isClosed())
}

func TestClientWritePumpErrorCloses(t *testing.T) {
	conn := newFakeConn()
	conn.writeErr = errBrokenPipe
	client := NewClient(conn, 4, time.Second, nil, nil)

	client.Send([]byte("a"))
	done := make(chan struct{})
	go func() {
		client.writePump()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatal("write pump did not stop")
	}
	assert.True(t, client.IsClosed())
	assert.True(t, conn.isClosed())
}
