package handler

import (
	"net/http"

	"gowa-broadcast/internal/ws"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the route is behind JWT auth
	CheckOrigin: func(r *http.Request) bool { return true },
}

// GET /ws
func (h *Handler) WebSocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.Log.Warn().Err(err).Msg("websocket upgrade failed")
		return err
	}

	client := ws.NewClient(h.Hub, conn)
	h.Hub.Register(client)

	go client.WritePump()
	go client.ReadPump()

	h.Log.Debug().Str("ip", c.RealIP()).Msg("websocket client connected")
	return nil
}
