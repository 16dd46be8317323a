package service

import (
	"context"
	"sort"
	"testing"
	"time"

	"gowa-broadcast/internal/dispatch"
	"gowa-broadcast/internal/helper"
	"gowa-broadcast/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var phones = helper.PhoneNormalizer{CountryCode: "972", MinDigits: 7}

func newTestBroadcaster(contacts *fakeContacts, templates fakeTemplates, jobs *fakeJobs) *Broadcaster {
	categories := fakeCategories{
		"vip": {ID: "vip", Name: "VIP", IsActive: true},
		"old": {ID: "old", Name: "Old", IsActive: false},
	}
	b := NewBroadcaster(contacts, categories, templates, jobs, phones, zerolog.Nop())
	b.now = func() time.Time { return time.Date(2025, 6, 9, 9, 15, 0, 0, time.UTC) }
	return b
}

func TestBroadcasterRendersTemplateWithContactValues(t *testing.T) {
	contacts := newFakeContacts(model.Contact{Phone: "972501111111", Name: "Dana", IsActive: true})
	templates := fakeTemplates{"tpl": {ID: "tpl", Content: "Hi <name>, code <code> on <date>", IsActive: true}}
	jobs := &fakeJobs{cfg: dispatch.Config{BatchSize: 10, MessageDelay: time.Second, BatchDelay: 5 * time.Minute}}
	b := newTestBroadcaster(contacts, templates, jobs)

	res, err := b.Submit(context.Background(), BulkRequest{
		Recipients: []string{"050-111-1111", "0502222222"},
		TemplateID: "tpl",
		Values:     map[string]map[string]string{"0501111111": {"code": "A1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "job-1", res.JobID)
	assert.Equal(t, 2, res.TotalRecipients)
	assert.Equal(t, 1, res.EstimatedTimeMinutes)

	require.Len(t, jobs.reqs, 1)
	render := jobs.reqs[0].Render

	text, err := render("972501111111")
	require.NoError(t, err)
	assert.Equal(t, "Hi Dana, code A1 on 9.6.2025", text)

	text, err = render("972502222222")
	require.NoError(t, err)
	assert.Equal(t, "Hi 972502222222, code <code> on 9.6.2025", text)
}

func TestBroadcasterTargetsActiveContacts(t *testing.T) {
	contacts := newFakeContacts(
		model.Contact{Phone: "972501111111", Name: "A", IsActive: true},
		model.Contact{Phone: "972502222222", Name: "B", IsActive: false},
		model.Contact{Phone: "972503333333", Name: "C", IsActive: true},
	)
	jobs := &fakeJobs{}
	b := newTestBroadcaster(contacts, nil, jobs)

	_, err := b.Submit(context.Background(), BulkRequest{Text: "hello <name>"})
	require.NoError(t, err)

	got := append([]string(nil), jobs.reqs[0].Recipients...)
	sort.Strings(got)
	assert.Equal(t, []string{"972501111111", "972503333333"}, got)
}

func TestBroadcasterTargetsCategory(t *testing.T) {
	contacts := newFakeContacts(
		model.Contact{Phone: "972501111111", Name: "A", IsActive: true, CategoryIDs: []string{"vip"}},
		model.Contact{Phone: "972502222222", Name: "B", IsActive: false, CategoryIDs: []string{"vip"}},
		model.Contact{Phone: "972503333333", Name: "C", IsActive: true},
	)
	jobs := &fakeJobs{}
	b := newTestBroadcaster(contacts, nil, jobs)

	res, err := b.Submit(context.Background(), BulkRequest{Text: "hello", CategoryID: "vip"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalRecipients)
	assert.Equal(t, []string{"972501111111"}, jobs.reqs[0].Recipients)

	_, err = b.Submit(context.Background(), BulkRequest{Text: "hello", CategoryID: "old"})
	assert.ErrorIs(t, err, model.ErrCategoryNotFound)
	_, err = b.Submit(context.Background(), BulkRequest{Text: "hello", CategoryID: "missing"})
	assert.ErrorIs(t, err, model.ErrCategoryNotFound)

	// explicit recipients win over the category
	_, err = b.Submit(context.Background(), BulkRequest{Text: "hello", CategoryID: "missing", Recipients: []string{"0504444444"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"0504444444"}, jobs.reqs[1].Recipients)
}

func TestBroadcasterContentErrors(t *testing.T) {
	templates := fakeTemplates{"old": {ID: "old", Content: "x", IsActive: false}}
	b := newTestBroadcaster(newFakeContacts(), templates, &fakeJobs{})

	_, err := b.Submit(context.Background(), BulkRequest{Recipients: []string{"0501111111"}})
	assert.ErrorIs(t, err, ErrNoContent)

	_, err = b.Submit(context.Background(), BulkRequest{Recipients: []string{"0501111111"}, TemplateID: "missing"})
	assert.ErrorIs(t, err, model.ErrTemplateNotFound)

	_, err = b.Submit(context.Background(), BulkRequest{Recipients: []string{"0501111111"}, TemplateID: "old"})
	assert.ErrorIs(t, err, model.ErrTemplateNotFound)
}

func TestBroadcasterValues(t *testing.T) {
	b := newTestBroadcaster(newFakeContacts(model.Contact{Phone: "972501111111", Name: "Dana"}), nil, &fakeJobs{})

	v := b.Values(context.Background(), "972501111111", map[string]string{"name": "Override"})
	assert.Equal(t, map[string]string{
		"name":     "Override",
		"nickname": "Dana",
		"title":    "",
		"phone":    "972501111111",
		"date":     "9.6.2025",
		"time":     "09:15",
	}, v)
}

func TestBroadcasterNicknameAndTitle(t *testing.T) {
	contacts := newFakeContacts(model.Contact{Phone: "972501111111", Name: "Dana Levi", Nickname: "Dani", Title: "Dr.", IsActive: true})
	b := newTestBroadcaster(contacts, nil, &fakeJobs{})

	text := b.Render(context.Background(), "Hello <title> <name>, hi <nickname>!", "972501111111", nil)
	assert.Equal(t, "Hello Dr. Dana Levi, hi Dani!", text)

	text = b.Render(context.Background(), "Hi <nickname><title>", "972509999999", nil)
	assert.Equal(t, "Hi 972509999999", text)
}
