package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"gowa-broadcast/internal/model"
)

var errSendFailed = errors.New("send failed")

// fakeSender records sends. failEvery>0 fails sends 1, k+1, 2k+1, ...;
// dropAfter>0 disconnects once that many sends have been attempted.
type fakeSender struct {
	mu        sync.Mutex
	connected bool
	changed   chan struct{}
	sent      []string
	texts     []string
	failEvery int
	dropAfter int
	block     chan struct{}
}

func newFakeSender() *fakeSender {
	return &fakeSender{connected: true, changed: make(chan struct{})}
}

func (f *fakeSender) SendText(ctx context.Context, to, text string) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to)
	f.texts = append(f.texts, text)
	n := len(f.sent)
	if f.dropAfter > 0 && n >= f.dropAfter {
		f.setConnectedLocked(false)
	}
	if f.failEvery > 0 && (n-1)%f.failEvery == 0 {
		return errSendFailed
	}
	return nil
}

func (f *fakeSender) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeSender) Changes() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.changed
}

func (f *fakeSender) setConnected(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setConnectedLocked(v)
}

func (f *fakeSender) setConnectedLocked(v bool) {
	if f.connected == v {
		return
	}
	f.connected = v
	close(f.changed)
	f.changed = make(chan struct{})
}

func (f *fakeSender) sends() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type fakeChats struct {
	mu    sync.Mutex
	dates map[string]time.Time
}

func newFakeChats() *fakeChats {
	return &fakeChats{dates: map[string]time.Time{}}
}

func (f *fakeChats) SetLastChatDate(_ context.Context, phone string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dates[phone] = at
	return nil
}

func (f *fakeChats) has(phone string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.dates[phone]
	return ok
}

type memRecorder struct {
	mu   sync.Mutex
	jobs map[string]model.DispatchJob
}

func (m *memRecorder) Save(_ context.Context, job model.DispatchJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.jobs == nil {
		m.jobs = map[string]model.DispatchJob{}
	}
	m.jobs[job.ID] = job
	return nil
}

func (m *memRecorder) get(id string) model.DispatchJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[id]
}

type recordingObserver struct {
	mu       sync.Mutex
	progress []Progress
	finished []model.DispatchJob
}

func (o *recordingObserver) JobProgress(_ model.DispatchJob, p Progress) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.progress = append(o.progress, p)
}

func (o *recordingObserver) JobFinished(job model.DispatchJob) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, job)
}
