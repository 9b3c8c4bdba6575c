package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-planner/internal/broadcast"
	"github.com/iliyamo/event-planner/internal/model"
)

// writeWait bounds how long a push to one subscriber may take before the
// connection is considered dead.
const writeWait = 10 * time.Second

// SubscribeHandler upgrades GET /v1/resources/:name/subscribe to a
// WebSocket and echoes every committed value of the resource to the peer.
// Subscribers receive nothing retroactively; clients fetch current state
// with a plain GET before or after subscribing.
type SubscribeHandler struct {
	hub      *broadcast.Hub
	upgrader websocket.Upgrader
}

// NewSubscribeHandler constructs a SubscribeHandler over the given hub.
func NewSubscribeHandler(hub *broadcast.Hub) *SubscribeHandler {
	if hub == nil {
		panic("nil hub passed to NewSubscribeHandler")
	}
	return &SubscribeHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Browser sessions are served from the same origin in
			// production; the API itself performs no origin policing.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Subscribe serves one subscriber connection.  The write loop forwards hub
// updates; a read loop runs only to notice the peer going away.
func (h *SubscribeHandler) Subscribe(c echo.Context) error {
	name := c.Param("name")
	if !model.Known(name) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown resource"})
	}
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return nil
	}
	sub := h.hub.Subscribe(name, 16)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		sub.Close()
		conn.Close()
	}()
	for {
		select {
		case u, ok := <-sub.Updates():
			if !ok {
				return nil
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(u); err != nil {
				return nil
			}
		case <-done:
			return nil
		}
	}
}
