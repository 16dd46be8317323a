package service

import (
	"context"
	"time"

	"gowa-broadcast/internal/dispatch"
	"gowa-broadcast/internal/helper"
	"gowa-broadcast/internal/model"
	"gowa-broadcast/internal/reconcile"
	"gowa-broadcast/internal/session"
	"gowa-broadcast/internal/ws"

	"github.com/rs/zerolog"
)

type ChatRecorder interface {
	SetLastChatDate(ctx context.Context, phone string, at time.Time) error
}

// Events routes session output to the contact store, the dashboard and the
// webhook.
type Events struct {
	chats      ChatRecorder
	reconciler *reconcile.Reconciler
	hub        ws.Publisher
	webhook    *Webhook
	minDigits  int
	log        zerolog.Logger
}

func NewEvents(chats ChatRecorder, reconciler *reconcile.Reconciler, hub ws.Publisher, webhook *Webhook, minDigits int, logger zerolog.Logger) *Events {
	return &Events{
		chats:      chats,
		reconciler: reconciler,
		hub:        hub,
		webhook:    webhook,
		minDigits:  minDigits,
		log:        logger.With().Str("component", "events").Logger(),
	}
}

// Handle is the session event sink.
func (e *Events) Handle(ctx context.Context, ev session.Event) {
	switch ev.Kind {
	case session.EventMessage:
		e.inbound(ctx, ev.Message)
	case session.EventContacts:
		if _, err := e.reconciler.Reconcile(ctx, ev.Contacts); err != nil {
			e.log.Error().Err(err).Msg("contact reconcile failed")
		}
	}
}

func (e *Events) inbound(ctx context.Context, msg model.InboundMessage) {
	if msg.IsGroup || msg.IsFromMe {
		return
	}
	phone, err := helper.PhoneFromJID(msg.Sender, e.minDigits)
	if err != nil && msg.SenderAlt != "" {
		phone, err = helper.PhoneFromJID(msg.SenderAlt, e.minDigits)
	}
	if err != nil {
		e.log.Debug().Str("sender", msg.Sender).Msg("ignoring message from non-phone sender")
		return
	}

	at := msg.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	if err := e.chats.SetLastChatDate(ctx, phone, at); err != nil {
		e.log.Error().Err(err).Str("from", phone).Msg("failed to record inbound chat")
	}

	e.log.Info().Str("from", phone).Str("text", preview(msg.Text, 50)).Msg("message received")

	data := map[string]any{
		"id":        msg.ID,
		"from":      phone,
		"pushName":  msg.PushName,
		"text":      msg.Text,
		"timestamp": at.UTC(),
	}
	e.hub.Publish(ws.WsEvent{Event: ws.EventMessageReceived, Data: data})
	e.webhook.Notify(ws.EventMessageReceived, data)
}

// Status is the session status hook.
func (e *Events) Status(st session.Status) {
	e.hub.Publish(ws.WsEvent{Event: ws.EventSessionStatus, Data: st})
}

// QR is the session QR hook. The payload is published with a PNG data URL
// so dashboards can render it directly.
func (e *Events) QR(code string) {
	data := map[string]string{"qr": code}
	if img, err := helper.QRDataURL(code, 256); err == nil {
		data["image"] = img
	} else {
		e.log.Warn().Err(err).Msg("failed to render QR image")
	}
	e.hub.Publish(ws.WsEvent{Event: ws.EventSessionQR, Data: data})
}

// JobProgress implements dispatch.Observer.
func (e *Events) JobProgress(job model.DispatchJob, p dispatch.Progress) {
	data := map[string]any{
		"jobId":     job.ID,
		"recipient": p.Recipient,
		"index":     p.Index,
		"total":     p.Total,
		"batch":     p.Batch,
		"ok":        p.Err == nil,
		"success":   p.Success,
		"failure":   p.Failure,
	}
	if p.Err != nil {
		data["error"] = p.Err.Error()
	}
	e.hub.Publish(ws.WsEvent{Event: ws.EventDispatchProgress, Data: data})
}

// JobFinished implements dispatch.Observer.
func (e *Events) JobFinished(job model.DispatchJob) {
	e.hub.Publish(ws.WsEvent{Event: ws.EventDispatchFinished, Data: job})
	e.webhook.Notify(ws.EventDispatchFinished, job)
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
