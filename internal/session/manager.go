package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Manager owns the single Transport and its lifecycle. All state transitions
// happen under mu; transport I/O never does.
type Manager struct {
	cfg   Config
	dial  Dialer
	creds CredentialStore
	log   zerolog.Logger

	sink       func(context.Context, Event)
	statusHook func(Status)
	qrHook     func(string)

	baseCtx context.Context
	stop    context.CancelFunc
	outbox  chan func()
	wg      sync.WaitGroup

	mu        sync.Mutex
	phase     Phase
	qr        string
	identity  *Identity
	attempts  int
	lastErr   error
	rescan    bool
	gen       uint64
	transport Transport
	runCtx    context.Context
	cancelRun context.CancelFunc
	retry     *time.Timer
	scan      *time.Timer
	changed   chan struct{}
	closed    bool
}

type Option func(*Manager)

// WithEventSink receives inbound messages and contact events in order, off
// the state lock.
func WithEventSink(fn func(context.Context, Event)) Option {
	return func(m *Manager) { m.sink = fn }
}

// WithStatusHook is called with a snapshot after every transition.
func WithStatusHook(fn func(Status)) Option {
	return func(m *Manager) { m.statusHook = fn }
}

// WithQRHook is called with every QR payload issued.
func WithQRHook(fn func(string)) Option {
	return func(m *Manager) { m.qrHook = fn }
}

func NewManager(cfg Config, dial Dialer, creds CredentialStore, logger zerolog.Logger, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:     cfg,
		dial:    dial,
		creds:   creds,
		log:     logger.With().Str("component", "session").Logger(),
		baseCtx: ctx,
		stop:    cancel,
		outbox:  make(chan func(), 256),
		phase:   PhaseDisconnected,
		changed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.wg.Add(1)
	go m.deliver()
	return m
}

// Start resumes a persisted session, if any. Without stored credentials the
// manager stays Disconnected until Connect or GetQRCode is called.
func (m *Manager) Start(ctx context.Context) error {
	creds, err := m.creds.Load(ctx)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	if creds == nil {
		m.log.Info().Msg("no stored credentials, waiting for pairing request")
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.phase.idle() {
		m.log.Info().Msg("resuming stored session")
		m.beginLocked(false)
	}
	return nil
}

// Connect starts a connection attempt unless one is underway, then waits for
// it to resolve. It returns true once connected, false while a QR scan is
// pending or after the attempt failed.
func (m *Manager) Connect(ctx context.Context) (bool, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false, ErrClosed
	}
	if m.phase.idle() {
		m.attempts = 0
		m.lastErr = nil
		m.beginLocked(false)
	}
	return m.waitLocked(ctx)
}

// Reconnect discards the current transport without logging out and opens a
// new one with a fresh retry budget.
func (m *Manager) Reconnect(ctx context.Context) (bool, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false, ErrClosed
	}
	if t := m.transport; t != nil {
		m.closeTransportLocked(t)
	}
	m.discardLocked()
	m.attempts = 0
	m.lastErr = nil
	m.beginLocked(false)
	return m.waitLocked(ctx)
}

// waitLocked must be called with mu held and returns with it released.
func (m *Manager) waitLocked(ctx context.Context) (bool, error) {
	for {
		switch {
		case m.closed:
			m.mu.Unlock()
			return false, ErrClosed
		case m.phase == PhaseConnected:
			m.mu.Unlock()
			return true, nil
		case m.phase == PhaseAwaitingScan:
			m.mu.Unlock()
			return false, nil
		case m.phase.idle():
			err := m.lastErr
			m.mu.Unlock()
			return false, err
		}
		ch := m.changed
		m.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return false, ctx.Err()
		}
		m.mu.Lock()
	}
}

// Disconnect logs the account out, purges credentials and leaves the session
// LoggedOut. No automatic reconnection follows.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	t := m.transport
	connected := m.phase == PhaseConnected
	m.discardLocked()
	m.attempts = 0
	m.lastErr = nil
	m.rescan = false
	m.setPhaseLocked(PhaseLoggedOut)
	m.mu.Unlock()

	if t != nil {
		if connected {
			m.logout(ctx, t)
		}
		t.Close()
	}
	if err := m.creds.Purge(ctx); err != nil {
		return fmt.Errorf("purge credentials: %w", err)
	}
	m.log.Info().Msg("session logged out")
	return nil
}

// Close shuts the manager down. A connected session is logged out within
// LogoutTimeout when LogoutOnClose is set; shutdown proceeds either way.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	t := m.transport
	connected := m.phase == PhaseConnected
	m.discardLocked()
	m.closed = true
	m.setPhaseLocked(PhaseDisconnected)
	m.mu.Unlock()

	if t != nil {
		if connected && m.cfg.LogoutOnClose {
			if m.logout(ctx, t) {
				if err := m.creds.Purge(ctx); err != nil {
					m.log.Warn().Err(err).Msg("failed to purge credentials on shutdown")
				}
			}
		}
		t.Close()
	}
	m.stop()
	m.wg.Wait()
	return nil
}

func (m *Manager) logout(ctx context.Context, t Transport) bool {
	lctx, cancel := context.WithTimeout(ctx, m.cfg.LogoutTimeout)
	defer cancel()
	if err := t.Logout(lctx); err != nil {
		m.log.Warn().Err(err).Msg("graceful logout failed")
		return false
	}
	return true
}

// GetQRCode returns the current pairing payload, starting a connection
// attempt if the session is idle and waiting up to QRWait for a payload.
func (m *Manager) GetQRCode(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", ErrClosed
	}
	if m.phase == PhaseConnected {
		m.mu.Unlock()
		return "", ErrNoQRNeeded
	}
	if m.qr != "" {
		qr := m.qr
		m.mu.Unlock()
		return qr, nil
	}
	if m.phase.idle() {
		m.attempts = 0
		m.lastErr = nil
		m.beginLocked(false)
	}
	m.mu.Unlock()

	wctx, cancel := context.WithTimeout(ctx, m.cfg.QRWait)
	defer cancel()

	m.mu.Lock()
	for {
		switch {
		case m.closed:
			m.mu.Unlock()
			return "", ErrClosed
		case m.phase == PhaseConnected:
			m.mu.Unlock()
			return "", ErrNoQRNeeded
		case m.qr != "":
			qr := m.qr
			m.mu.Unlock()
			return qr, nil
		case m.phase.idle():
			err := m.lastErr
			m.mu.Unlock()
			if err == nil {
				err = ErrQRUnavailable
			}
			return "", err
		}
		ch := m.changed
		m.mu.Unlock()
		select {
		case <-ch:
		case <-wctx.Done():
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", ErrQRTimeout
		}
		m.mu.Lock()
	}
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase == PhaseConnected
}

// Changes returns a channel that is closed on the next state transition.
func (m *Manager) Changes() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.changed
}

func (m *Manager) SendText(ctx context.Context, to, text string) error {
	return m.sendText(ctx, to, text, "")
}

// SendReply sends text quoting the message with ID replyTo.
func (m *Manager) SendReply(ctx context.Context, to, text, replyTo string) error {
	return m.sendText(ctx, to, text, replyTo)
}

func (m *Manager) sendText(ctx context.Context, to, text, replyTo string) error {
	t, err := m.active()
	if err != nil {
		return err
	}
	if m.cfg.TypingDelay > 0 {
		_ = t.SendPresence(ctx, to, PresenceComposing)
		timer := time.NewTimer(m.cfg.TypingDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
		_ = t.SendPresence(ctx, to, PresencePaused)
	}
	return t.SendText(ctx, to, text, replyTo)
}

func (m *Manager) SendMedia(ctx context.Context, to string, media Media) error {
	t, err := m.active()
	if err != nil {
		return err
	}
	return t.SendMedia(ctx, to, media)
}

func (m *Manager) IsRegistered(ctx context.Context, phone string) (bool, error) {
	t, err := m.active()
	if err != nil {
		return false, err
	}
	return t.IsRegistered(ctx, phone)
}

func (m *Manager) active() (Transport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseConnected || m.transport == nil {
		return nil, ErrNoActiveSession
	}
	return m.transport, nil
}

// beginLocked dials a new transport and starts its event pump. purge wipes
// stored credentials before loading them.
func (m *Manager) beginLocked(purge bool) {
	m.stopTimersLocked()
	m.gen++
	gen := m.gen
	ctx, cancel := context.WithCancel(m.baseCtx)
	m.runCtx, m.cancelRun = ctx, cancel
	t := m.dial()
	m.transport = t
	m.qr = ""
	m.identity = nil
	m.setPhaseLocked(PhaseInitializing)

	m.wg.Add(1)
	go m.run(ctx, gen, t, purge)
}

func (m *Manager) run(ctx context.Context, gen uint64, t Transport, purge bool) {
	defer m.wg.Done()

	if purge {
		if err := m.creds.Purge(ctx); err != nil {
			m.log.Error().Err(err).Msg("failed to purge credentials")
		}
	}
	creds, err := m.creds.Load(ctx)
	if err != nil {
		m.handleClose(gen, CloseReason{Code: CloseUnknown, Err: fmt.Errorf("load credentials: %w", err)})
		return
	}

	events, err := t.Open(ctx, creds)
	if err != nil {
		code := CloseConnectionLost
		if IsAuthInvalid(err) {
			code = CloseAuthInvalid
		}
		m.handleClose(gen, CloseReason{Code: code, Err: err})
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				m.handleClose(gen, CloseReason{Code: CloseConnectionLost, Err: errors.New("event stream ended")})
				return
			}
			switch ev.Kind {
			case EventCredsUpdate:
				m.saveCreds(ctx, ev.Creds)
			case EventMessage, EventContacts:
				m.forward(ctx, ev)
			case EventClose:
				m.handleClose(gen, ev.Close)
				return
			default:
				m.apply(gen, ev)
			}
		}
	}
}

func (m *Manager) saveCreds(ctx context.Context, creds Credentials) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := m.creds.Save(sctx, creds); err != nil {
		m.log.Error().Err(err).Msg("failed to persist credentials")
	}
}

func (m *Manager) apply(gen uint64, ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen || m.closed {
		return
	}

	switch ev.Kind {
	case EventQR:
		if m.phase != PhaseInitializing && m.phase != PhaseAwaitingScan {
			return
		}
		m.qr = ev.QR
		if m.phase == PhaseInitializing {
			if m.cfg.ScanTimeout > 0 {
				m.scan = time.AfterFunc(m.cfg.ScanTimeout, func() {
					m.handleClose(gen, CloseReason{Code: CloseScanTimeout, Err: errors.New("QR code was not scanned in time")})
				})
			}
			m.setPhaseLocked(PhaseAwaitingScan)
		} else {
			m.notifyLocked()
		}
		if m.qrHook != nil {
			qr := ev.QR
			m.enqueueLocked(func() { m.qrHook(qr) })
		}
		m.log.Info().Msg("QR code issued, waiting for scan")

	case EventOpen:
		m.stopTimersLocked()
		id := ev.Identity
		m.identity = &id
		m.qr = ""
		m.attempts = 0
		m.lastErr = nil
		m.rescan = false
		m.setPhaseLocked(PhaseConnected)
		m.log.Info().Str("account", id.AccountID).Str("name", id.DisplayName).Msg("✓ connected")

		m.wg.Add(1)
		go m.keepalive(m.runCtx, gen, m.transport)
	}
}

func (m *Manager) handleClose(gen uint64, reason CloseReason) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen || m.closed {
		return
	}
	m.closeLocked(reason)
}

// closeLocked applies the reconnection policy to the current attempt.
func (m *Manager) closeLocked(reason CloseReason) {
	if t := m.transport; t != nil {
		m.closeTransportLocked(t)
	}
	m.discardLocked()

	// re-pairing does not spend the retry budget but still waits one unit
	if reason.AuthInvalid() {
		delay := m.cfg.backoff(1)
		gen := m.gen
		m.rescan = true
		m.lastErr = fmt.Errorf("re-scan required: %s", reason)
		m.setPhaseLocked(PhaseReconnecting)
		m.retry = time.AfterFunc(delay, func() { m.reopen(gen, true) })
		m.log.Warn().Str("reason", reason.String()).Dur("delay", delay).Msg("credentials rejected, starting fresh pairing")
		return
	}

	if m.attempts < m.cfg.MaxReconnectAttempts {
		m.attempts++
		delay := m.cfg.backoff(m.attempts)
		gen := m.gen
		m.lastErr = errors.New(reason.String())
		m.setPhaseLocked(PhaseReconnecting)
		m.retry = time.AfterFunc(delay, func() { m.reopen(gen, false) })
		m.log.Warn().
			Str("reason", reason.String()).
			Int("attempt", m.attempts).
			Dur("backoff", delay).
			Msg("connection closed, scheduling reconnect")
		return
	}

	m.lastErr = fmt.Errorf("%w after %d attempts: %s", ErrRetriesExhausted, m.attempts, reason)
	m.setPhaseLocked(PhaseDisconnected)
	m.log.Error().Err(m.lastErr).Msg("giving up on reconnection")
}

func (m *Manager) reopen(gen uint64, purge bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen || m.closed || m.phase != PhaseReconnecting {
		return
	}
	m.beginLocked(purge)
}

// discardLocked invalidates the current attempt so late events are ignored.
func (m *Manager) discardLocked() {
	m.gen++
	if m.cancelRun != nil {
		m.cancelRun()
		m.cancelRun = nil
	}
	m.stopTimersLocked()
	m.transport = nil
	m.qr = ""
	m.identity = nil
}

func (m *Manager) stopTimersLocked() {
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	if m.scan != nil {
		m.scan.Stop()
		m.scan = nil
	}
}

func (m *Manager) closeTransportLocked(t Transport) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		t.Close()
	}()
}

func (m *Manager) setPhaseLocked(p Phase) {
	if m.phase == p {
		return
	}
	m.log.Debug().Str("from", string(m.phase)).Str("to", string(p)).Msg("phase change")
	m.phase = p
	m.notifyLocked()
}

func (m *Manager) notifyLocked() {
	close(m.changed)
	m.changed = make(chan struct{})
	if m.statusHook != nil {
		st := m.statusLocked()
		m.enqueueLocked(func() { m.statusHook(st) })
	}
}

func (m *Manager) statusLocked() Status {
	st := Status{
		Phase:            m.phase,
		Connected:        m.phase == PhaseConnected,
		QRAvailable:      m.qr != "",
		Initializing:     m.phase.inFlight(),
		ReconnectAttempt: m.attempts,
		RescanRequired:   m.rescan,
	}
	if m.identity != nil {
		st.AccountID = m.identity.AccountID
		st.DisplayName = m.identity.DisplayName
	}
	if m.lastErr != nil {
		st.LastError = m.lastErr.Error()
	}
	return st
}

// enqueueLocked never blocks; hooks are best effort.
func (m *Manager) enqueueLocked(fn func()) {
	select {
	case m.outbox <- fn:
	default:
		m.log.Warn().Msg("notification queue full, dropping hook call")
	}
}

func (m *Manager) forward(ctx context.Context, ev Event) {
	if m.sink == nil {
		return
	}
	select {
	case m.outbox <- func() { m.sink(m.baseCtx, ev) }:
	case <-ctx.Done():
	}
}

func (m *Manager) deliver() {
	defer m.wg.Done()
	for {
		select {
		case fn := <-m.outbox:
			fn()
		case <-m.baseCtx.Done():
			return
		}
	}
}
