package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"gowa-broadcast/internal/dispatch"
	"gowa-broadcast/internal/helper"
	"gowa-broadcast/internal/model"

	"github.com/rs/zerolog"
)

var ErrNoContent = errors.New("text or templateId is required")

type ContactReader interface {
	Get(ctx context.Context, phone string) (*model.Contact, error)
	List(ctx context.Context, filter model.ContactFilter) ([]model.Contact, int, error)
}

type TemplateReader interface {
	Get(ctx context.Context, id string) (*model.Template, error)
}

type CategoryReader interface {
	Get(ctx context.Context, id string) (*model.Category, error)
}

type JobSubmitter interface {
	Submit(req dispatch.Request) (model.DispatchJob, error)
	Config() dispatch.Config
}

// BulkRequest is the body of a bulk send. Without recipients the active
// contacts of CategoryID are targeted, or every active contact when it is
// empty. Values are keyed by phone number.
type BulkRequest struct {
	Recipients  []string                     `json:"recipients"`
	CategoryID  string                       `json:"categoryId"`
	Text        string                       `json:"text"`
	TemplateID  string                       `json:"templateId"`
	Values      map[string]map[string]string `json:"values"`
	ScheduledAt *time.Time                   `json:"scheduledAt"`
}

type BulkResult struct {
	JobID                string    `json:"jobId"`
	TotalRecipients      int       `json:"totalRecipients"`
	EstimatedTimeMinutes int       `json:"estimatedTimeMinutes"`
	ScheduledAt          time.Time `json:"scheduledAt"`
}

// Broadcaster turns bulk requests into dispatch jobs.
type Broadcaster struct {
	contacts   ContactReader
	categories CategoryReader
	templates  TemplateReader
	jobs       JobSubmitter
	phones     helper.PhoneNormalizer
	log        zerolog.Logger
	now        func() time.Time
}

func NewBroadcaster(contacts ContactReader, categories CategoryReader, templates TemplateReader, jobs JobSubmitter, phones helper.PhoneNormalizer, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		contacts:   contacts,
		categories: categories,
		templates:  templates,
		jobs:       jobs,
		phones:     phones,
		log:        logger.With().Str("component", "broadcast").Logger(),
		now:        time.Now,
	}
}

func (b *Broadcaster) Submit(ctx context.Context, req BulkRequest) (BulkResult, error) {
	content, err := b.content(ctx, req)
	if err != nil {
		return BulkResult{}, err
	}

	recipients := req.Recipients
	if len(recipients) == 0 {
		if recipients, err = b.audience(ctx, req.CategoryID); err != nil {
			return BulkResult{}, err
		}
	}

	values := b.normalizeValues(req.Values)
	render := func(phone string) (string, error) {
		return b.Render(context.Background(), content, phone, values[phone]), nil
	}

	var scheduledAt time.Time
	if req.ScheduledAt != nil {
		scheduledAt = *req.ScheduledAt
	}

	job, err := b.jobs.Submit(dispatch.Request{
		Recipients:  recipients,
		Render:      render,
		TemplateID:  req.TemplateID,
		ScheduledAt: scheduledAt,
	})
	if err != nil {
		return BulkResult{}, err
	}

	estimate := b.jobs.Config().EstimateDuration(job.Total)
	return BulkResult{
		JobID:                job.ID,
		TotalRecipients:      job.Total,
		EstimatedTimeMinutes: int(math.Ceil(estimate.Minutes())),
		ScheduledAt:          job.ScheduledAt,
	}, nil
}

// audience lists the active contacts of an active category, or every
// active contact when categoryID is empty.
func (b *Broadcaster) audience(ctx context.Context, categoryID string) ([]string, error) {
	filter := model.ContactFilter{ActiveOnly: true}
	if categoryID != "" {
		cat, err := b.categories.Get(ctx, categoryID)
		if err != nil {
			return nil, err
		}
		if !cat.IsActive {
			return nil, model.ErrCategoryNotFound
		}
		filter.CategoryID = categoryID
	}

	contacts, _, err := b.contacts.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("load active contacts: %w", err)
	}
	phones := make([]string, 0, len(contacts))
	for _, c := range contacts {
		phones = append(phones, c.Phone)
	}
	return phones, nil
}

func (b *Broadcaster) content(ctx context.Context, req BulkRequest) (string, error) {
	if req.TemplateID != "" {
		t, err := b.templates.Get(ctx, req.TemplateID)
		if err != nil {
			return "", err
		}
		if !t.IsActive {
			return "", model.ErrTemplateNotFound
		}
		return t.Content, nil
	}
	if strings.TrimSpace(req.Text) == "" {
		return "", ErrNoContent
	}
	return req.Text, nil
}

func (b *Broadcaster) normalizeValues(in map[string]map[string]string) map[string]map[string]string {
	out := make(map[string]map[string]string, len(in))
	for raw, v := range in {
		phone, err := b.phones.Normalize(raw)
		if err != nil {
			b.log.Warn().Str("phone", raw).Msg("ignoring values for invalid phone")
			continue
		}
		out[phone] = v
	}
	return out
}

// Render fills content for phone. Defaults come from the contact record
// and are overridden by extra.
func (b *Broadcaster) Render(ctx context.Context, content, phone string, extra map[string]string) string {
	return helper.RenderTemplate(content, b.Values(ctx, phone, extra))
}

// Values returns the marker values for phone: name, nickname, title, phone,
// date and time, overlaid with extra. The nickname falls back to the name.
func (b *Broadcaster) Values(ctx context.Context, phone string, extra map[string]string) map[string]string {
	now := b.now()
	values := map[string]string{
		"name":  phone,
		"title": "",
		"phone": phone,
		"date":  helper.FormatDate(now),
		"time":  now.Format("15:04"),
	}

	if phone != "" {
		lookupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		c, err := b.contacts.Get(lookupCtx, phone)
		cancel()
		switch {
		case err == nil:
			if c.Name != "" {
				values["name"] = c.Name
			}
			values["nickname"] = c.Nickname
			values["title"] = c.Title
		case !errors.Is(err, model.ErrContactNotFound):
			b.log.Warn().Err(err).Str("phone", phone).Msg("contact lookup failed, using defaults")
		}
	}
	if values["nickname"] == "" {
		values["nickname"] = values["name"]
	}

	for k, v := range extra {
		values[k] = v
	}
	return values
}
