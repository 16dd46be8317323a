package service

import (
	"context"
	"slices"
	"sync"
	"time"

	"gowa-broadcast/internal/dispatch"
	"gowa-broadcast/internal/model"
	"gowa-broadcast/internal/ws"
)

type fakeContacts struct {
	mu       sync.Mutex
	contacts map[string]model.Contact
	chats    map[string]time.Time
	upserts  map[string]model.ContactFields
}

func newFakeContacts(cs ...model.Contact) *fakeContacts {
	f := &fakeContacts{
		contacts: map[string]model.Contact{},
		chats:    map[string]time.Time{},
		upserts:  map[string]model.ContactFields{},
	}
	for _, c := range cs {
		f.contacts[c.Phone] = c
	}
	return f
}

func (f *fakeContacts) Get(_ context.Context, phone string) (*model.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contacts[phone]
	if !ok {
		return nil, model.ErrContactNotFound
	}
	return &c, nil
}

func (f *fakeContacts) List(_ context.Context, filter model.ContactFilter) ([]model.Contact, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Contact
	for _, c := range f.contacts {
		if filter.ActiveOnly && !c.IsActive {
			continue
		}
		if filter.CategoryID != "" && !slices.Contains(c.CategoryIDs, filter.CategoryID) {
			continue
		}
		out = append(out, c)
	}
	return out, len(out), nil
}

func (f *fakeContacts) SetLastChatDate(_ context.Context, phone string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats[phone] = at
	return nil
}

func (f *fakeContacts) UpsertByPhone(_ context.Context, phone string, fields model.ContactFields) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts[phone] = fields
	return nil
}

type fakeTemplates map[string]model.Template

func (f fakeTemplates) Get(_ context.Context, id string) (*model.Template, error) {
	t, ok := f[id]
	if !ok {
		return nil, model.ErrTemplateNotFound
	}
	return &t, nil
}

type fakeCategories map[string]model.Category

func (f fakeCategories) Get(_ context.Context, id string) (*model.Category, error) {
	c, ok := f[id]
	if !ok {
		return nil, model.ErrCategoryNotFound
	}
	return &c, nil
}

type fakeJobs struct {
	cfg  dispatch.Config
	reqs []dispatch.Request
}

func (f *fakeJobs) Submit(req dispatch.Request) (model.DispatchJob, error) {
	f.reqs = append(f.reqs, req)
	return model.DispatchJob{ID: "job-1", Total: len(req.Recipients), State: dispatch.StateScheduled}, nil
}

func (f *fakeJobs) Config() dispatch.Config { return f.cfg }

type fakeHub struct {
	mu     sync.Mutex
	events []ws.WsEvent
}

func (h *fakeHub) Publish(ev ws.WsEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
}

func (h *fakeHub) names() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, ev := range h.events {
		out = append(out, ev.Event)
	}
	return out
}
