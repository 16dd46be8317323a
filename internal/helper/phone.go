package helper

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.mau.fi/whatsmeow/types"
)

var (
	ErrInvalidPhone = errors.New("invalid phone number")

	validPhoneFormat = regexp.MustCompile(`^[\d\s\+\-\(\)\.]+$`)
	nonDigits        = regexp.MustCompile(`[^\d]`)
)

// PhoneNormalizer turns user-entered numbers into international digits.
type PhoneNormalizer struct {
	// CountryCode replaces a single leading trunk zero, e.g. "972".
	CountryCode string
	MinDigits   int
}

// Normalize converts phone to digits only, e.g. "050-123 4567" -> "972501234567".
func (n PhoneNormalizer) Normalize(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPhone)
	}
	if !validPhoneFormat.MatchString(phone) {
		return "", fmt.Errorf("%w: %q contains invalid characters", ErrInvalidPhone, phone)
	}

	cleaned := nonDigits.ReplaceAllString(phone, "")

	switch {
	case strings.HasPrefix(cleaned, "00"):
		cleaned = cleaned[2:]
	case strings.HasPrefix(cleaned, "0") && n.CountryCode != "":
		cleaned = n.CountryCode + cleaned[1:]
	}

	if len(cleaned) < n.minDigits() || len(cleaned) > 15 {
		return "", fmt.Errorf("%w: %q has invalid length", ErrInvalidPhone, phone)
	}
	return cleaned, nil
}

func (n PhoneNormalizer) minDigits() int {
	if n.MinDigits <= 0 {
		return 7
	}
	return n.MinDigits
}

// PhoneFromJID extracts the phone number from an individual-chat JID such as
// "972501234567:12@s.whatsapp.net". Group, broadcast and LID identifiers are
// rejected, as are numbers shorter than minDigits.
func PhoneFromJID(jid string, minDigits int) (string, error) {
	user, server, ok := strings.Cut(jid, "@")
	if !ok || server != types.DefaultUserServer {
		return "", fmt.Errorf("%w: %q is not an individual chat", ErrInvalidPhone, jid)
	}
	// drop ":device" and ".agent" suffixes
	if i := strings.IndexAny(user, ":."); i >= 0 {
		user = user[:i]
	}
	if user == "" || nonDigits.MatchString(user) {
		return "", fmt.Errorf("%w: %q is not numeric", ErrInvalidPhone, jid)
	}
	if minDigits <= 0 {
		minDigits = 7
	}
	if len(user) < minDigits {
		return "", fmt.Errorf("%w: %q is too short", ErrInvalidPhone, jid)
	}
	return user, nil
}
