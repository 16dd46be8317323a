package session

import (
	"errors"
	"fmt"
)

var (
	ErrNoActiveSession  = errors.New("no active session")
	ErrNoQRNeeded       = errors.New("session already connected, no QR needed")
	ErrQRTimeout        = errors.New("timed out waiting for QR code")
	ErrQRUnavailable    = errors.New("no QR code available")
	ErrRetriesExhausted = errors.New("reconnect attempts exhausted")
	ErrClosed           = errors.New("session manager closed")
)

// AuthInvalidError marks a transport failure that requires re-pairing.
type AuthInvalidError struct {
	Reason string
}

func (e *AuthInvalidError) Error() string {
	return fmt.Sprintf("authentication invalid: %s", e.Reason)
}

// IsAuthInvalid reports whether err is, or wraps, an AuthInvalidError.
func IsAuthInvalid(err error) bool {
	var ae *AuthInvalidError
	return errors.As(err, &ae)
}
