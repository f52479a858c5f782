// Package handlers provides the HTTP surface of the relay.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rendezvous-relay/relay/internal/ws"
)

// HealthBody is the response to every plain HTTP request.
const HealthBody = "okay"

// WebSocketHandler routes every request on the relay port: WebSocket
// upgrades become relay connections, anything else gets the health response.
type WebSocketHandler struct {
	wsHandler *ws.Handler
	log       *zap.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(wsHandler *ws.Handler, log *zap.Logger) *WebSocketHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WebSocketHandler{
		wsHandler: wsHandler,
		log:       log,
	}
}

// Handle serves any path and method. Path, query and headers are not inspected.
func (h *WebSocketHandler) Handle(c *gin.Context) {
	if !websocket.IsWebSocketUpgrade(c.Request) {
		Health(c)
		return
	}

	if err := h.wsHandler.HandleConnection(c.Writer, c.Request); err != nil {
		// The upgrader has already answered the request.
		h.log.Debug("upgrade failed", zap.String("remote", c.ClientIP()), zap.Error(err))
	}
}

// Health answers a liveness probe.
func Health(c *gin.Context) {
	c.String(http.StatusOK, HealthBody)
}

// RegisterRoutes installs the handler for every path on the engine.
func (h *WebSocketHandler) RegisterRoutes(r *gin.Engine) {
	r.NoRoute(h.Handle)
}
