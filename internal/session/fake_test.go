package session

import (
	"context"
	"errors"
	"sync"
)

type memCreds struct {
	mu      sync.Mutex
	creds   Credentials
	saved   []Credentials
	purges  int
	saveErr error
}

func (s *memCreds) Load(context.Context) (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds, nil
}

func (s *memCreds) Save(_ context.Context, c Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.creds = c
	s.saved = append(s.saved, c)
	return nil
}

func (s *memCreds) Purge(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = nil
	s.purges++
	return nil
}

func (s *memCreds) purgeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.purges
}

// fakeNet hands out scripted transports and records every dial.
type fakeNet struct {
	mu     sync.Mutex
	dials  []*fakeTransport
	script func(n int, t *fakeTransport, creds Credentials) error
}

func (n *fakeNet) dial() Transport {
	n.mu.Lock()
	defer n.mu.Unlock()
	t := &fakeTransport{net: n, index: len(n.dials), events: make(chan Event, 32)}
	n.dials = append(n.dials, t)
	return t
}

func (n *fakeNet) setScript(fn func(n int, t *fakeTransport, creds Credentials) error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.script = fn
}

func (n *fakeNet) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.dials)
}

func (n *fakeNet) get(i int) *fakeTransport {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.dials[i]
}

type fakeTransport struct {
	net    *fakeNet
	index  int
	events chan Event

	mu          sync.Mutex
	opened      bool
	openCreds   Credentials
	texts       []string
	presences   []Presence
	presenceErr error
	probeErr    error
	logouts     int
	logoutBlock bool
	closed      bool
}

func (t *fakeTransport) Open(ctx context.Context, creds Credentials) (<-chan Event, error) {
	t.mu.Lock()
	t.opened = true
	t.openCreds = creds
	t.mu.Unlock()

	t.net.mu.Lock()
	script := t.net.script
	t.net.mu.Unlock()
	if script != nil {
		if err := script(t.index, t, creds); err != nil {
			return nil, err
		}
	}
	return t.events, nil
}

func (t *fakeTransport) emit(ev Event) {
	t.events <- ev
}

func (t *fakeTransport) SendText(_ context.Context, to, text, _ string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.texts = append(t.texts, to+":"+text)
	return nil
}

func (t *fakeTransport) SendMedia(context.Context, string, Media) error { return nil }

func (t *fakeTransport) SendPresence(_ context.Context, _ string, state Presence) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.presences = append(t.presences, state)
	return t.presenceErr
}

func (t *fakeTransport) Probe(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.probeErr
}

func (t *fakeTransport) IsRegistered(context.Context, string) (bool, error) { return true, nil }

func (t *fakeTransport) Logout(ctx context.Context) error {
	t.mu.Lock()
	t.logouts++
	block := t.logoutBlock
	t.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (t *fakeTransport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
}

func (t *fakeTransport) logoutCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.logouts
}

func (t *fakeTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// openImmediately connects every dial as account 972500000001.
func openImmediately(_ int, t *fakeTransport, _ Credentials) error {
	t.emit(Event{Kind: EventOpen, Identity: Identity{AccountID: "972500000001", DisplayName: "Bot"}})
	return nil
}

var errNetworkDown = errors.New("network down")
