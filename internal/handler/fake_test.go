package handler

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"gowa-broadcast/internal/dispatch"
	"gowa-broadcast/internal/model"
	"gowa-broadcast/internal/service"
	"gowa-broadcast/internal/session"
)

type fakeSession struct {
	mu         sync.Mutex
	status     session.Status
	connectOK  bool
	connectErr error
	qr         string
	qrErr      error
	sendErr    error
	registered bool
	sent       []string
	media      []session.Media
}

func (f *fakeSession) Status() session.Status { return f.status }

func (f *fakeSession) Connect(context.Context) (bool, error) { return f.connectOK, f.connectErr }

func (f *fakeSession) Reconnect(context.Context) (bool, error) { return f.connectOK, f.connectErr }

func (f *fakeSession) Disconnect(context.Context) error {
	f.status = session.Status{Phase: session.PhaseDisconnected}
	return nil
}

func (f *fakeSession) GetQRCode(context.Context) (string, error) { return f.qr, f.qrErr }

func (f *fakeSession) SendReply(_ context.Context, to, text, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, to+":"+text)
	return nil
}

func (f *fakeSession) SendMedia(_ context.Context, _ string, m session.Media) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.media = append(f.media, m)
	return nil
}

func (f *fakeSession) IsRegistered(context.Context, string) (bool, error) {
	return f.registered, f.sendErr
}

type fakeJobs struct {
	jobs      map[string]model.DispatchJob
	cancelErr error
}

func (f *fakeJobs) Get(id string) (model.DispatchJob, error) {
	j, ok := f.jobs[id]
	if !ok {
		return model.DispatchJob{}, dispatch.ErrJobNotFound
	}
	return j, nil
}

func (f *fakeJobs) List() []model.DispatchJob {
	out := make([]model.DispatchJob, 0, len(f.jobs))
	for _, j := range f.jobs {
		out = append(out, j)
	}
	return out
}

func (f *fakeJobs) Cancel(id string) error {
	if _, ok := f.jobs[id]; !ok {
		return dispatch.ErrJobNotFound
	}
	return f.cancelErr
}

type fakeContacts struct {
	mu       sync.Mutex
	contacts map[string]model.Contact
	filters  []model.ContactFilter
}

func newFakeContacts(cs ...model.Contact) *fakeContacts {
	f := &fakeContacts{contacts: make(map[string]model.Contact)}
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
	f.filters = append(f.filters, filter)
	var out []model.Contact
	for _, c := range f.contacts {
		if filter.ActiveOnly && !c.IsActive {
			continue
		}
		if filter.Search != "" && !strings.Contains(c.Name, filter.Search) && !strings.Contains(c.Phone, filter.Search) {
			continue
		}
		if filter.CategoryID != "" && !slices.Contains(c.CategoryIDs, filter.CategoryID) {
			continue
		}
		if filter.LastChatDays > 0 && (c.LastChatDate == nil || time.Since(*c.LastChatDate) > time.Duration(filter.LastChatDays)*24*time.Hour) {
			continue
		}
		out = append(out, c)
	}
	return out, len(out), nil
}

func (f *fakeContacts) UpsertByPhone(_ context.Context, phone string, fields model.ContactFields) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.contacts[phone]
	c.Phone = phone
	if fields.Name != "" {
		c.Name = fields.Name
	} else if c.Name == "" {
		c.Name = phone
	}
	if fields.Nickname != "" {
		c.Nickname = fields.Nickname
	}
	if fields.Title != "" {
		c.Title = fields.Title
	}
	c.IsActive = fields.IsActive
	f.contacts[phone] = c
	return nil
}

func (f *fakeContacts) Create(_ context.Context, nc model.NewContact) (*model.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.contacts[nc.Phone]; ok {
		return nil, model.ErrContactExists
	}
	c := model.Contact{Phone: nc.Phone, Name: nc.Name, Nickname: nc.Nickname, Title: nc.Title, IsActive: true}
	f.contacts[nc.Phone] = c
	return &c, nil
}

func (f *fakeContacts) Update(_ context.Context, phone string, u model.ContactUpdate) (*model.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contacts[phone]
	if !ok {
		return nil, model.ErrContactNotFound
	}
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Nickname != nil {
		c.Nickname = *u.Nickname
	}
	if u.Title != nil {
		c.Title = *u.Title
	}
	if u.IsActive != nil {
		c.IsActive = *u.IsActive
	}
	f.contacts[phone] = c
	return &c, nil
}

func (f *fakeContacts) Deactivate(ctx context.Context, phone string) error {
	inactive := false
	_, err := f.Update(ctx, phone, model.ContactUpdate{IsActive: &inactive})
	return err
}

type fakeCategories struct {
	categories map[string]model.Category
	contacts   *fakeContacts
}

func (f *fakeCategories) Create(_ context.Context, req model.CategoryRequest) (*model.Category, error) {
	for _, c := range f.categories {
		if c.Name == req.Name {
			return nil, model.ErrCategoryExists
		}
	}
	c := model.Category{ID: "cat-" + req.Name, Name: req.Name, Description: req.Description, IsActive: true}
	f.categories[c.ID] = c
	return &c, nil
}

func (f *fakeCategories) Update(_ context.Context, id string, req model.CategoryRequest) (*model.Category, error) {
	c, ok := f.categories[id]
	if !ok {
		return nil, model.ErrCategoryNotFound
	}
	c.Name, c.Description = req.Name, req.Description
	f.categories[id] = c
	return &c, nil
}

func (f *fakeCategories) Get(_ context.Context, id string) (*model.Category, error) {
	c, ok := f.categories[id]
	if !ok {
		return nil, model.ErrCategoryNotFound
	}
	return &c, nil
}

func (f *fakeCategories) List(_ context.Context, includeInactive bool) ([]model.Category, error) {
	var out []model.Category
	for _, c := range f.categories {
		if c.IsActive || includeInactive {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCategories) Deactivate(_ context.Context, id string) error {
	c, ok := f.categories[id]
	if !ok {
		return model.ErrCategoryNotFound
	}
	c.IsActive = false
	f.categories[id] = c
	return nil
}

func (f *fakeCategories) AddContact(_ context.Context, id, phone string) error {
	if c, ok := f.categories[id]; !ok || !c.IsActive {
		return model.ErrCategoryNotFound
	}
	f.contacts.mu.Lock()
	defer f.contacts.mu.Unlock()
	ct, ok := f.contacts.contacts[phone]
	if !ok {
		return model.ErrContactNotFound
	}
	if !slices.Contains(ct.CategoryIDs, id) {
		ct.CategoryIDs = append(ct.CategoryIDs, id)
	}
	f.contacts.contacts[phone] = ct
	return nil
}

func (f *fakeCategories) RemoveContact(_ context.Context, id, phone string) error {
	f.contacts.mu.Lock()
	defer f.contacts.mu.Unlock()
	ct, ok := f.contacts.contacts[phone]
	if !ok || !slices.Contains(ct.CategoryIDs, id) {
		return model.ErrNotInCategory
	}
	ct.CategoryIDs = slices.DeleteFunc(ct.CategoryIDs, func(v string) bool { return v == id })
	f.contacts.contacts[phone] = ct
	return nil
}

type fakeTemplates struct {
	templates map[string]model.Template
}

func (f *fakeTemplates) Create(_ context.Context, req model.TemplateRequest) (*model.Template, error) {
	for _, t := range f.templates {
		if t.Name == req.Name {
			return nil, model.ErrTemplateExists
		}
	}
	t := model.Template{ID: "tpl-" + req.Name, Name: req.Name, Content: req.Content, IsActive: true}
	f.templates[t.ID] = t
	return &t, nil
}

func (f *fakeTemplates) Update(_ context.Context, id string, req model.TemplateRequest) (*model.Template, error) {
	t, ok := f.templates[id]
	if !ok {
		return nil, model.ErrTemplateNotFound
	}
	t.Name, t.Content = req.Name, req.Content
	f.templates[id] = t
	return &t, nil
}

func (f *fakeTemplates) Get(_ context.Context, id string) (*model.Template, error) {
	t, ok := f.templates[id]
	if !ok {
		return nil, model.ErrTemplateNotFound
	}
	return &t, nil
}

func (f *fakeTemplates) List(_ context.Context, includeInactive bool) ([]model.Template, error) {
	var out []model.Template
	for _, t := range f.templates {
		if t.IsActive || includeInactive {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTemplates) Deactivate(_ context.Context, id string) error {
	t, ok := f.templates[id]
	if !ok {
		return model.ErrTemplateNotFound
	}
	t.IsActive = false
	f.templates[id] = t
	return nil
}

type fakeBroadcast struct {
	req service.BulkRequest
	err error
}

func (f *fakeBroadcast) Submit(_ context.Context, req service.BulkRequest) (service.BulkResult, error) {
	f.req = req
	if f.err != nil {
		return service.BulkResult{}, f.err
	}
	return service.BulkResult{
		JobID:                "job-1",
		TotalRecipients:      len(req.Recipients),
		EstimatedTimeMinutes: 1,
		ScheduledAt:          time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}, nil
}

func (f *fakeBroadcast) Values(_ context.Context, phone string, extra map[string]string) map[string]string {
	v := map[string]string{"phone": phone, "name": "Dana"}
	for k, val := range extra {
		v[k] = val
	}
	return v
}

type fakeHistory struct {
	jobs  []model.DispatchJob
	limit int
}

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]model.DispatchJob, error) {
	f.limit = limit
	if limit < len(f.jobs) {
		return f.jobs[:limit], nil
	}
	return f.jobs, nil
}
