// Package reconcile folds transport contact events into the contact store.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gowa-broadcast/internal/helper"
	"gowa-broadcast/internal/model"

	"github.com/rs/zerolog"
)

// ContactUpserter is the part of the contact store the reconciler writes to.
type ContactUpserter interface {
	UpsertByPhone(ctx context.Context, phone string, fields model.ContactFields) error
}

type Reconciler struct {
	store     ContactUpserter
	minDigits int
	log       zerolog.Logger
}

func New(store ContactUpserter, minDigits int, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		store:     store,
		minDigits: minDigits,
		log:       logger.With().Str("component", "reconcile").Logger(),
	}
}

// Result counts what happened to a batch.
type Result struct {
	Upserted int
	Skipped  int
	Failed   int
}

// Reconcile upserts every event that identifies an individual chat. Events
// for groups or malformed identifiers are skipped. Store errors are counted
// and the remaining events are still applied; the joined errors are
// returned.
func (r *Reconciler) Reconcile(ctx context.Context, events []model.ContactEvent) (Result, error) {
	var (
		res  Result
		errs []error
	)
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		phone, err := helper.PhoneFromJID(ev.JID, r.minDigits)
		if err != nil {
			res.Skipped++
			r.log.Debug().Str("jid", ev.JID).Str("source", string(ev.Source)).Msg("skipping contact event")
			continue
		}

		fields := model.ContactFields{Name: DisplayName(ev), IsActive: true}
		if err := r.store.UpsertByPhone(ctx, phone, fields); err != nil {
			res.Failed++
			errs = append(errs, fmt.Errorf("contact %s: %w", phone, err))
			continue
		}
		res.Upserted++
	}

	if res.Upserted > 0 || res.Failed > 0 {
		r.log.Info().
			Int("upserted", res.Upserted).
			Int("skipped", res.Skipped).
			Int("failed", res.Failed).
			Msg("contacts reconciled")
	}
	return res, errors.Join(errs...)
}

// DisplayName picks notify > profile > verified > push name. An empty
// result means the phone number stands in as the name.
func DisplayName(ev model.ContactEvent) string {
	for _, name := range []string{ev.NotifyName, ev.ProfileName, ev.VerifiedName, ev.PushName} {
		if name = strings.TrimSpace(name); name != "" {
			return name
		}
	}
	return ""
}
