package session

import "time"

// Phase is the lifecycle state of the single chat connection.
type Phase string

const (
	PhaseDisconnected Phase = "disconnected"
	PhaseInitializing Phase = "initializing"
	PhaseAwaitingScan Phase = "awaiting_scan"
	PhaseConnected    Phase = "connected"
	PhaseReconnecting Phase = "reconnecting"
	PhaseLoggedOut    Phase = "logged_out"
)

// inFlight reports whether a connection attempt is underway.
func (p Phase) inFlight() bool {
	return p == PhaseInitializing || p == PhaseReconnecting
}

// idle reports whether no transport exists and none is scheduled.
func (p Phase) idle() bool {
	return p == PhaseDisconnected || p == PhaseLoggedOut
}

// Identity of the paired account, known only while connected.
type Identity struct {
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName"`
}

// Status is a consistent snapshot of the session.
type Status struct {
	Phase            Phase  `json:"phase"`
	Connected        bool   `json:"connected"`
	AccountID        string `json:"accountId,omitempty"`
	DisplayName      string `json:"displayName,omitempty"`
	QRAvailable      bool   `json:"qrAvailable"`
	Initializing     bool   `json:"initializing"`
	ReconnectAttempt int    `json:"reconnectAttempt"`
	RescanRequired   bool   `json:"rescanRequired"`
	LastError        string `json:"lastError,omitempty"`
}

type Config struct {
	// MaxReconnectAttempts bounds automatic retries after unexpected closes.
	MaxReconnectAttempts int
	// BackoffUnit is multiplied by the attempt number, capped at BackoffCap.
	BackoffUnit time.Duration
	BackoffCap  time.Duration

	KeepaliveInterval time.Duration
	ProbeTimeout      time.Duration

	// ScanTimeout closes an attempt whose QR was never scanned.
	ScanTimeout time.Duration
	// QRWait bounds how long GetQRCode waits for a payload.
	QRWait time.Duration

	LogoutTimeout time.Duration
	LogoutOnClose bool

	// TypingDelay is the composing pause before a text send. Zero disables typing simulation.
	TypingDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxReconnectAttempts: 5,
		BackoffUnit:          5 * time.Second,
		BackoffCap:           30 * time.Second,
		KeepaliveInterval:    30 * time.Second,
		ProbeTimeout:         10 * time.Second,
		ScanTimeout:          3 * time.Minute,
		QRWait:               300 * time.Second,
		LogoutTimeout:        10 * time.Second,
		LogoutOnClose:        true,
		TypingDelay:          time.Second,
	}
}

// backoff returns min(attempt*unit, cap).
func (c Config) backoff(attempt int) time.Duration {
	d := time.Duration(attempt) * c.BackoffUnit
	if c.BackoffCap > 0 && d > c.BackoffCap {
		return c.BackoffCap
	}
	return d
}
