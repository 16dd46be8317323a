package wa

import (
	"errors"

	"gowa-broadcast/internal/model"
	"gowa-broadcast/internal/session"

	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

// closeReason maps whatsmeow connection-ending events to a CloseReason.
func closeReason(raw interface{}) (session.CloseReason, bool) {
	switch evt := raw.(type) {
	case *events.LoggedOut:
		return session.CloseReason{
			Code: session.CloseLoggedOut,
			Err:  errors.New("logged out: " + evt.Reason.String()),
		}, true
	case *events.ConnectFailure:
		code := session.CloseConnectionLost
		if evt.Reason.IsLoggedOut() {
			code = session.CloseAuthInvalid
		}
		return session.CloseReason{
			Code: code,
			Err:  errors.New("connect failure: " + evt.Reason.String() + " " + evt.Message),
		}, true
	case *events.StreamReplaced:
		return session.CloseReason{Code: session.CloseStreamReplaced}, true
	case *events.TemporaryBan:
		return session.CloseReason{Code: session.CloseConnectionLost, Err: errors.New(evt.String())}, true
	case *events.ClientOutdated:
		return session.CloseReason{Code: session.CloseConnectionLost, Err: errors.New("client outdated")}, true
	case *events.Disconnected:
		return session.CloseReason{Code: session.CloseConnectionLost}, true
	}
	return session.CloseReason{}, false
}

// contactEvents extracts contact payloads from the three contact sources.
func contactEvents(raw interface{}) []model.ContactEvent {
	switch evt := raw.(type) {
	case *events.PushName:
		return []model.ContactEvent{{
			Source:     model.ContactSourceUpdate,
			JID:        evt.JID.String(),
			NotifyName: evt.NewPushName,
		}}
	case *events.BusinessName:
		return []model.ContactEvent{{
			Source:       model.ContactSourceUpdate,
			JID:          evt.JID.String(),
			VerifiedName: evt.NewBusinessName,
		}}
	case *events.Contact:
		if evt.Action == nil {
			return nil
		}
		return []model.ContactEvent{{
			Source:      model.ContactSourceUpsert,
			JID:         evt.JID.String(),
			ProfileName: evt.Action.GetFullName(),
		}}
	case *events.HistorySync:
		if evt.Data == nil {
			return nil
		}
		var out []model.ContactEvent
		for _, conv := range evt.Data.GetConversations() {
			out = append(out, model.ContactEvent{
				Source:      model.ContactSourceHistorySync,
				JID:         conv.GetID(),
				ProfileName: conv.GetName(),
			})
		}
		for _, pn := range evt.Data.GetPushnames() {
			out = append(out, model.ContactEvent{
				Source:   model.ContactSourceHistorySync,
				JID:      pn.GetID(),
				PushName: pn.GetPushname(),
			})
		}
		return out
	}
	return nil
}

// inboundMessage converts an incoming message, skipping our own and
// status broadcasts.
func inboundMessage(evt *events.Message) (model.InboundMessage, bool) {
	if evt.Info.IsFromMe || evt.Info.Chat.Server == types.BroadcastServer {
		return model.InboundMessage{}, false
	}
	msg := model.InboundMessage{
		ID:        string(evt.Info.ID),
		Chat:      evt.Info.Chat.String(),
		Sender:    evt.Info.Sender.ToNonAD().String(),
		PushName:  evt.Info.PushName,
		Text:      messageText(evt),
		IsGroup:   evt.Info.IsGroup,
		IsFromMe:  evt.Info.IsFromMe,
		Timestamp: evt.Info.Timestamp,
	}
	if evt.Info.Sender.Server == types.HiddenUserServer && !evt.Info.SenderAlt.IsEmpty() {
		msg.SenderAlt = evt.Info.SenderAlt.ToNonAD().String()
	}
	return msg, true
}

func messageText(evt *events.Message) string {
	msg := evt.Message
	if msg == nil {
		return ""
	}
	switch {
	case msg.Conversation != nil:
		return msg.GetConversation()
	case msg.ExtendedTextMessage != nil:
		return msg.GetExtendedTextMessage().GetText()
	case msg.ImageMessage != nil:
		return msg.GetImageMessage().GetCaption()
	case msg.VideoMessage != nil:
		return msg.GetVideoMessage().GetCaption()
	case msg.DocumentMessage != nil:
		return msg.GetDocumentMessage().GetCaption()
	}
	return ""
}
