package helper

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"gowa-broadcast/internal/session"
)

var ErrUnsupportedMedia = errors.New("unsupported media type")

var mediaKinds = map[string]session.MediaKind{
	"image/jpeg":         session.MediaImage,
	"image/png":          session.MediaImage,
	"image/gif":          session.MediaImage,
	"image/webp":         session.MediaImage,
	"image/x-icon":       session.MediaImage,
	"video/mp4":          session.MediaVideo,
	"video/3gpp":         session.MediaVideo,
	"audio/mpeg":         session.MediaAudio,
	"audio/ogg":          session.MediaAudio,
	"audio/mp4":          session.MediaAudio,
	"application/pdf":    session.MediaDocument,
	"application/msword": session.MediaDocument,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": session.MediaDocument,
	"application/vnd.ms-excel": session.MediaDocument,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": session.MediaDocument,
}

// PrepareMedia classifies an upload and normalizes images to JPEG.
// mimeType may be empty; it is then derived from the name and content.
func PrepareMedia(data []byte, fileName, mimeType, caption string) (session.Media, error) {
	if len(data) == 0 {
		return session.Media{}, fmt.Errorf("%w: empty file", ErrUnsupportedMedia)
	}
	mimeType = resolveMime(data, fileName, mimeType)

	kind, ok := mediaKinds[mimeType]
	if !ok {
		return session.Media{}, fmt.Errorf("%w: %s", ErrUnsupportedMedia, mimeType)
	}

	m := session.Media{Kind: kind, Data: data, MimeType: mimeType, FileName: fileName, Caption: caption}
	if kind == session.MediaImage {
		normalized, err := NormalizeImage(data)
		if err != nil {
			return session.Media{}, err
		}
		m.Data = normalized
		m.MimeType = "image/jpeg"
	}
	return m, nil
}

func resolveMime(data []byte, fileName, declared string) string {
	if declared != "" && declared != "application/octet-stream" {
		if base, _, err := mime.ParseMediaType(declared); err == nil {
			return base
		}
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(fileName))); byExt != "" {
		if base, _, err := mime.ParseMediaType(byExt); err == nil {
			return base
		}
	}
	base, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return base
}
