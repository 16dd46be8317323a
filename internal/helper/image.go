package helper

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "github.com/mat/besticon/ico"
)

const (
	MaxImageDimension     = 1600
	MaxDecompressedSizeMB = 50
	MaxDecompressedSize   = MaxDecompressedSizeMB * 1024 * 1024
	jpegQuality           = 85
)

// NormalizeImage decodes jpeg, png, gif, webp or ico data, bounds it to
// MaxImageDimension and re-encodes it as JPEG.
func NormalizeImage(data []byte) ([]byte, error) {
	head := data
	if len(head) > 8192 {
		head = head[:8192]
	}
	if DetectMaliciousContent(head) {
		return nil, errors.New("malicious content detected in file")
	}

	img, err := decodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if err := ValidateDecompressedSize(img); err != nil {
		return nil, err
	}

	b := img.Bounds()
	if b.Dx() > MaxImageDimension || b.Dy() > MaxImageDimension {
		img = imaging.Fit(img, MaxImageDimension, MaxImageDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeImage(data []byte) (image.Image, error) {
	if isWebP(data) {
		return webp.Decode(bytes.NewReader(data))
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unsupported image format or corrupted file")
	}
	return img, nil
}

func isWebP(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP"
}

// DetectMaliciousContent scans for embedded scripts.
func DetectMaliciousContent(data []byte) bool {
	content := strings.ToLower(string(data))
	for _, pattern := range []string{
		"<?php",
		"<script",
		"eval(",
		"base64_decode",
		"shell_exec",
		"<iframe",
		"javascript:",
		"onerror=",
		"onload=",
	} {
		if strings.Contains(content, pattern) {
			return true
		}
	}
	return false
}

// ValidateDecompressedSize rejects images too large to hold as RGBA.
func ValidateDecompressedSize(img image.Image) error {
	b := img.Bounds()
	size := b.Dx() * b.Dy() * 4
	if size > MaxDecompressedSize {
		return fmt.Errorf("decompression bomb detected: image too large when decompressed (%d MB)", size/(1024*1024))
	}
	return nil
}
