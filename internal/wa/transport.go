// Package wa adapts whatsmeow to the session transport contract.
package wa

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gowa-broadcast/internal/logging"
	"gowa-broadcast/internal/session"

	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

var (
	errNotConnected = errors.New("whatsapp client not connected")
	errNotPaired    = errors.New("whatsapp client not paired")
)

// Transport wraps one whatsmeow client. It is opened once and discarded.
type Transport struct {
	container *sqlstore.Container
	log       zerolog.Logger

	events    chan session.Event
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.RWMutex
	client *whatsmeow.Client
}

// NewDialer returns a session.Dialer producing whatsmeow transports backed by container.
func NewDialer(container *sqlstore.Container, logger zerolog.Logger) session.Dialer {
	log := logger.With().Str("component", "whatsapp").Logger()
	return func() session.Transport {
		return &Transport{
			container: container,
			log:       log,
			events:    make(chan session.Event, 16),
			done:      make(chan struct{}),
		}
	}
}

// SetDeviceName sets the name shown in the phone's linked devices list.
func SetDeviceName(name string) {
	if name != "" {
		store.DeviceProps.Os = proto.String(name)
	}
}

func (t *Transport) Open(ctx context.Context, creds session.Credentials) (<-chan session.Event, error) {
	device, err := t.device(creds)
	if err != nil {
		return nil, err
	}

	client := whatsmeow.NewClient(device, logging.WA(t.log, "Client"))
	// reconnection is owned by the session manager
	client.EnableAutoReconnect = false
	client.AddEventHandler(t.handle)

	t.mu.Lock()
	t.client = client
	t.mu.Unlock()

	if device.ID == nil {
		qrChan, err := client.GetQRChannel(ctx)
		if err != nil {
			return nil, fmt.Errorf("get QR channel: %w", err)
		}
		go t.relayQR(qrChan)
	}

	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return t.events, nil
}

func (t *Transport) device(creds session.Credentials) (*store.Device, error) {
	if creds == nil {
		return t.container.NewDevice(), nil
	}
	device, ok := creds.(*store.Device)
	if !ok {
		return nil, fmt.Errorf("unexpected credentials type %T", creds)
	}
	return device, nil
}

func (t *Transport) relayQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for item := range qrChan {
		switch item.Event {
		case "code":
			t.emit(session.Event{Kind: session.EventQR, QR: item.Code})
		case "success":
			t.log.Info().Msg("✓ QR scanned, pairing successful")
		case "timeout":
			t.emit(session.Event{Kind: session.EventClose, Close: session.CloseReason{
				Code: session.CloseScanTimeout,
				Err:  errors.New("QR codes expired without scan"),
			}})
		default:
			err := item.Error
			if err == nil {
				err = fmt.Errorf("pairing failed: %s", item.Event)
			}
			t.emit(session.Event{Kind: session.EventClose, Close: session.CloseReason{
				Code: session.CloseConnectionLost,
				Err:  err,
			}})
		}
	}
}

func (t *Transport) handle(raw interface{}) {
	switch evt := raw.(type) {
	case *events.Connected:
		t.onConnected()
	case *events.PairSuccess:
		t.log.Info().Str("jid", evt.ID.String()).Str("platform", evt.Platform).Msg("✓ device paired")
		if client := t.current(); client != nil {
			t.emit(session.Event{Kind: session.EventCredsUpdate, Creds: client.Store})
		}
	case *events.Message:
		if msg, ok := inboundMessage(evt); ok {
			t.emit(session.Event{Kind: session.EventMessage, Message: msg})
		}
	case *events.KeepAliveTimeout:
		t.log.Warn().Int("errors", evt.ErrorCount).Time("last_success", evt.LastSuccess).Msg("websocket keepalive timeout")
	default:
		if reason, ok := closeReason(raw); ok {
			t.log.Warn().Str("reason", reason.String()).Msg("connection closed")
			t.emit(session.Event{Kind: session.EventClose, Close: reason})
			return
		}
		if contacts := contactEvents(raw); len(contacts) > 0 {
			t.emit(session.Event{Kind: session.EventContacts, Contacts: contacts})
		}
	}
}

func (t *Transport) onConnected() {
	client := t.current()
	if client == nil || client.Store.ID == nil {
		return
	}
	if err := client.SendPresence(context.Background(), types.PresenceAvailable); err != nil {
		t.log.Warn().Err(err).Msg("failed to send presence")
	}
	t.emit(session.Event{Kind: session.EventOpen, Identity: session.Identity{
		AccountID:   client.Store.ID.User,
		DisplayName: client.Store.PushName,
	}})
}

// emit blocks until the session reads the event or the transport closes.
func (t *Transport) emit(ev session.Event) {
	select {
	case t.events <- ev:
	case <-t.done:
	}
}

func (t *Transport) current() *whatsmeow.Client {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.client
}

func (t *Transport) connected() (*whatsmeow.Client, error) {
	client := t.current()
	if client == nil || !client.IsConnected() {
		return nil, errNotConnected
	}
	if client.Store.ID == nil {
		return nil, errNotPaired
	}
	return client, nil
}

func (t *Transport) SendText(ctx context.Context, to, text, replyTo string) error {
	client, err := t.connected()
	if err != nil {
		return err
	}
	jid := userJID(to)
	_, err = client.SendMessage(ctx, jid, textMessage(jid, text, replyTo))
	return err
}

func (t *Transport) SendMedia(ctx context.Context, to string, media session.Media) error {
	client, err := t.connected()
	if err != nil {
		return err
	}
	uploaded, err := client.Upload(ctx, media.Data, mediaType(media.Kind))
	if err != nil {
		return fmt.Errorf("upload %s: %w", media.Kind, err)
	}
	_, err = client.SendMessage(ctx, userJID(to), mediaMessage(uploaded, media))
	return err
}

func (t *Transport) SendPresence(ctx context.Context, to string, state session.Presence) error {
	client, err := t.connected()
	if err != nil {
		return err
	}
	if to == "" {
		return client.SendPresence(ctx, types.PresenceAvailable)
	}
	chatState := types.ChatPresenceComposing
	if state == session.PresencePaused {
		chatState = types.ChatPresencePaused
	}
	return client.SendChatPresence(ctx, userJID(to), chatState, types.ChatPresenceMediaText)
}

// Probe asks the server whether our own number is registered.
func (t *Transport) Probe(ctx context.Context) error {
	client, err := t.connected()
	if err != nil {
		return err
	}
	_, err = client.IsOnWhatsApp(ctx, []string{"+" + client.Store.ID.User})
	return err
}

func (t *Transport) IsRegistered(ctx context.Context, phone string) (bool, error) {
	client, err := t.connected()
	if err != nil {
		return false, err
	}
	resp, err := client.IsOnWhatsApp(ctx, []string{"+" + phone})
	if err != nil {
		return false, err
	}
	return len(resp) > 0 && resp[0].IsIn, nil
}

func (t *Transport) Logout(ctx context.Context) error {
	client := t.current()
	if client == nil {
		return errNotConnected
	}
	return client.Logout(ctx)
}

func (t *Transport) Close() {
	t.closeOnce.Do(func() {
		close(t.done)
		if client := t.current(); client != nil {
			client.Disconnect()
		}
	})
}

func userJID(phone string) types.JID {
	return types.NewJID(phone, types.DefaultUserServer)
}

func textMessage(to types.JID, text, replyTo string) *waE2E.Message {
	if replyTo == "" {
		return &waE2E.Message{Conversation: proto.String(text)}
	}
	return &waE2E.Message{
		ExtendedTextMessage: &waE2E.ExtendedTextMessage{
			Text: proto.String(text),
			ContextInfo: &waE2E.ContextInfo{
				StanzaID:      proto.String(replyTo),
				Participant:   proto.String(to.String()),
				QuotedMessage: &waE2E.Message{Conversation: proto.String("")},
			},
		},
	}
}
