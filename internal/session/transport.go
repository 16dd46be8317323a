package session

import (
	"context"

	"gowa-broadcast/internal/model"
)

// Credentials are opaque pairing credentials. A nil value means none are persisted.
type Credentials any

// CredentialStore persists pairing credentials across restarts.
type CredentialStore interface {
	Load(ctx context.Context) (Credentials, error)
	Save(ctx context.Context, creds Credentials) error
	Purge(ctx context.Context) error
}

type Presence string

const (
	PresenceAvailable Presence = "available"
	PresenceComposing Presence = "composing"
	PresencePaused    Presence = "paused"
)

type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaVideo    MediaKind = "video"
	MediaAudio    MediaKind = "audio"
	MediaDocument MediaKind = "document"
)

// Media is an attachment ready to be uploaded and sent.
type Media struct {
	Kind     MediaKind
	Data     []byte
	MimeType string
	FileName string
	Caption  string
}

// Transport is one connection instance to the chat network. A Transport is
// opened at most once; reconnecting means discarding it and dialing a new one.
//
// Recipients are normalized phone numbers (digits only).
type Transport interface {
	// Open starts connecting and returns the lifecycle event stream. The
	// stream is closed when the transport shuts down.
	Open(ctx context.Context, creds Credentials) (<-chan Event, error)
	SendText(ctx context.Context, to, text, replyTo string) error
	SendMedia(ctx context.Context, to string, media Media) error
	// SendPresence sets account presence when to is empty, chat presence otherwise.
	SendPresence(ctx context.Context, to string, state Presence) error
	// Probe performs a round trip to the server to confirm the link is alive.
	Probe(ctx context.Context) error
	IsRegistered(ctx context.Context, phone string) (bool, error)
	Logout(ctx context.Context) error
	Close()
}

// Dialer creates a fresh, unopened Transport.
type Dialer func() Transport

type EventKind int

const (
	EventQR EventKind = iota + 1
	EventOpen
	EventClose
	EventCredsUpdate
	EventMessage
	EventContacts
)

func (k EventKind) String() string {
	switch k {
	case EventQR:
		return "qr"
	case EventOpen:
		return "open"
	case EventClose:
		return "close"
	case EventCredsUpdate:
		return "creds_update"
	case EventMessage:
		return "message"
	case EventContacts:
		return "contacts"
	}
	return "unknown"
}

// Event is emitted by a Transport. Only the field matching Kind is set.
type Event struct {
	Kind     EventKind
	QR       string
	Identity Identity
	Close    CloseReason
	Creds    Credentials
	Message  model.InboundMessage
	Contacts []model.ContactEvent
}

type CloseCode int

const (
	CloseUnknown CloseCode = iota
	CloseConnectionLost
	CloseStreamReplaced
	CloseScanTimeout
	CloseKeepaliveFailed
	CloseLoggedOut
	CloseAuthInvalid
)

func (c CloseCode) String() string {
	switch c {
	case CloseConnectionLost:
		return "connection_lost"
	case CloseStreamReplaced:
		return "stream_replaced"
	case CloseScanTimeout:
		return "scan_timeout"
	case CloseKeepaliveFailed:
		return "keepalive_failed"
	case CloseLoggedOut:
		return "logged_out"
	case CloseAuthInvalid:
		return "auth_invalid"
	}
	return "unknown"
}

type CloseReason struct {
	Code CloseCode
	Err  error
}

// AuthInvalid reports whether the close requires fresh pairing.
func (r CloseReason) AuthInvalid() bool {
	return r.Code == CloseLoggedOut || r.Code == CloseAuthInvalid
}

func (r CloseReason) String() string {
	if r.Err != nil {
		return r.Code.String() + ": " + r.Err.Error()
	}
	return r.Code.String()
}
