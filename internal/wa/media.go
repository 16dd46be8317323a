package wa

import (
	"gowa-broadcast/internal/session"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"google.golang.org/protobuf/proto"
)

func mediaType(kind session.MediaKind) whatsmeow.MediaType {
	switch kind {
	case session.MediaImage:
		return whatsmeow.MediaImage
	case session.MediaVideo:
		return whatsmeow.MediaVideo
	case session.MediaAudio:
		return whatsmeow.MediaAudio
	default:
		return whatsmeow.MediaDocument
	}
}

func mediaMessage(up whatsmeow.UploadResponse, m session.Media) *waE2E.Message {
	switch m.Kind {
	case session.MediaImage:
		return &waE2E.Message{ImageMessage: &waE2E.ImageMessage{
			Caption:       optional(m.Caption),
			Mimetype:      proto.String(m.MimeType),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
		}}
	case session.MediaVideo:
		return &waE2E.Message{VideoMessage: &waE2E.VideoMessage{
			Caption:       optional(m.Caption),
			Mimetype:      proto.String(m.MimeType),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
		}}
	case session.MediaAudio:
		return &waE2E.Message{AudioMessage: &waE2E.AudioMessage{
			Mimetype:      proto.String(m.MimeType),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
		}}
	default:
		return &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{
			Caption:       optional(m.Caption),
			Mimetype:      proto.String(m.MimeType),
			FileName:      optional(m.FileName),
			Title:         optional(m.FileName),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
		}}
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return proto.String(s)
}
