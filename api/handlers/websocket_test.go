package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rendezvous-relay/relay/internal/registry"
	"github.com/rendezvous-relay/relay/internal/ws"
)

func newEngine(t *testing.T) (*gin.Engine, *registry.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := registry.New()
	wsHandler := ws.NewHandler(reg, ws.Options{})
	h := NewWebSocketHandler(wsHandler, zap.NewNop())

	r := gin.New()
	r.Use(RequestLogger(zap.NewNop()))
	h.RegisterRoutes(r)
	return r, reg
}

func TestHealthOnAnyPathAndMethod(t *testing.T) {
	r, _ := newEngine(t)

	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodHead, http.MethodDelete} {
		for _, path := range []string{"/", "/health", "/deep/path?x=1"} {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))

			assert.Equal(t, http.StatusOK, rec.Code, method+" "+path)
			if method != http.MethodHead {
				assert.Equal(t, HealthBody, rec.Body.String(), method+" "+path)
			}
			assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
		}
	}
}

func TestUpgradeOnAnyPath(t *testing.T) {
	r, reg := newEngine(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/whatever/room?token=ignored"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"subscribe","topics":["room1"]}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"pong"}`, string(data))
	assert.True(t, reg.Has("room1"))
}
