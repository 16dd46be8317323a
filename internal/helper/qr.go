package helper

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// QRDataURL renders a pairing payload as a PNG data URL.
func QRDataURL(payload string, size int) (string, error) {
	png, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// QRTerminal renders a pairing payload for a terminal.
func QRTerminal(payload string) (string, error) {
	q, err := qrcode.New(payload, qrcode.Low)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}
	return q.ToSmallString(false), nil
}
