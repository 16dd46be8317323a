package helper

import (
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"regexp"
	"strings"
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// ReadUpload reads a multipart file of at most maxBytes. The returned name is
// sanitized and the content type is the one declared by the client.
func ReadUpload(fileHeader *multipart.FileHeader, maxBytes int64) ([]byte, string, string, error) {
	if fileHeader.Size == 0 {
		return nil, "", "", fmt.Errorf("file is empty")
	}
	if maxBytes > 0 && fileHeader.Size > maxBytes {
		return nil, "", "", fmt.Errorf("file too large: max size is %d bytes", maxBytes)
	}

	src, err := fileHeader.Open()
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	limit := maxBytes
	if limit <= 0 {
		limit = fileHeader.Size
	}
	data, err := io.ReadAll(io.LimitReader(src, limit+1))
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, "", "", fmt.Errorf("file too large: max size is %d bytes", limit)
	}

	return data, SanitizeFilename(fileHeader.Filename), fileHeader.Header.Get("Content-Type"), nil
}

// SanitizeFilename removes path components and anything outside [a-zA-Z0-9._-].
func SanitizeFilename(filename string) string {
	filename = filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	filename = strings.ReplaceAll(filename, "..", "")
	filename = unsafeFilenameChars.ReplaceAllString(filename, "")
	if filename == "" || filename == "." {
		return "file"
	}
	return filename
}
