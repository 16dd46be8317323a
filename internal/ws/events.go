package ws

import "time"

// Event names published to dashboard clients.
const (
	EventSessionStatus    = "session.status"
	EventSessionQR        = "session.qr"
	EventMessageReceived  = "message.received"
	EventDispatchProgress = "dispatch.progress"
	EventDispatchFinished = "dispatch.completed"
)

// WsEvent is the envelope written to every client.
type WsEvent struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}
