package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 256
)

// Client is one dashboard WebSocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan WsEvent
}

// Hub fans events out to every registered client. Slow clients are dropped
// instead of blocking publishers.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan WsEvent
	done       chan struct{}
	log        zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan WsEvent, sendBuffer),
		done:       make(chan struct{}),
		log:        logger.With().Str("component", "ws").Logger(),
	}
}

// Run owns the client set until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			h.log.Debug().Int("clients", len(h.clients)).Msg("client connected")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.log.Debug().Int("clients", len(h.clients)).Msg("client disconnected")
			}

		case event := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- event:
				default:
					h.log.Warn().Msg("client too slow, dropping")
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// Register adds a client; it is a no-op once the hub has stopped.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish queues event for all clients. Events are dropped when the hub is
// saturated or stopped.
func (h *Hub) Publish(event WsEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case h.broadcast <- event:
	case <-h.done:
	default:
		h.log.Warn().Str("event", event.Event).Msg("broadcast buffer full, dropping event")
	}
}

// Publisher is what services hold instead of the hub itself.
type Publisher interface {
	Publish(event WsEvent)
}

func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan WsEvent, sendBuffer),
	}
}

// WritePump writes queued events and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				c.hub.log.Error().Err(err).Str("event", event.Event).Msg("failed to marshal event")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.hub.log.Debug().Err(err).Msg("write failed")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump discards client messages and detects disconnects.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug().Err(err).Msg("read error")
			}
			return
		}
	}
}
