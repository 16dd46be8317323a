// Package dispatch sends one message to many recipients with human-like
// pacing.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"gowa-broadcast/internal/helper"
	"gowa-broadcast/internal/session"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var (
	ErrInvalidRecipient = errors.New("invalid recipient")
	ErrSessionLost      = errors.New("session lost during dispatch")
)

// Sender is the slice of the session manager used for bulk sends.
type Sender interface {
	SendText(ctx context.Context, to, text string) error
	IsConnected() bool
	Changes() <-chan struct{}
}

// ChatRecorder stamps the last conversation time of a contact.
type ChatRecorder interface {
	SetLastChatDate(ctx context.Context, phone string, at time.Time) error
}

// RenderFunc produces the message for one normalized recipient.
type RenderFunc func(recipient string) (string, error)

// Config controls pacing. Zero delays disable the corresponding pause.
type Config struct {
	BatchSize     int
	MessageDelay  time.Duration
	MessageJitter time.Duration
	BatchDelay    time.Duration
	BatchJitter   time.Duration
	// MaxPerMinute caps the send rate regardless of delays; 0 means no cap.
	MaxPerMinute int
}

func DefaultConfig() Config {
	return Config{
		BatchSize:     10,
		MessageDelay:  time.Second,
		MessageJitter: 500 * time.Millisecond,
		BatchDelay:    5 * time.Minute,
		BatchJitter:   30 * time.Second,
		MaxPerMinute:  30,
	}
}

func (c Config) batchSize() int {
	if c.BatchSize <= 0 {
		return 10
	}
	return c.BatchSize
}

func (c Config) limiter() *rate.Limiter {
	if c.MaxPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(c.MaxPerMinute)), 1)
}

// EstimateDuration is the expected wall time for n recipients, ignoring
// send latency.
func (c Config) EstimateDuration(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	size := c.batchSize()
	batches := (n + size - 1) / size
	return time.Duration(n-batches)*c.MessageDelay + time.Duration(batches-1)*c.BatchDelay
}

// Result holds the final counts. Success+Failure always equals the number
// of recipients. Interrupted is set when the job stopped early.
type Result struct {
	Success     int   `json:"successCount"`
	Failure     int   `json:"failureCount"`
	Interrupted error `json:"-"`
}

// Progress is reported after every attempted recipient.
type Progress struct {
	Recipient string
	Index     int
	Total     int
	Batch     int
	Err       error
	Success   int
	Failure   int
}

type Scheduler struct {
	sender   Sender
	contacts ChatRecorder
	phones   helper.PhoneNormalizer
	log      zerolog.Logger
	now      func() time.Time
}

func NewScheduler(sender Sender, contacts ChatRecorder, phones helper.PhoneNormalizer, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		sender:   sender,
		contacts: contacts,
		phones:   phones,
		log:      logger.With().Str("component", "dispatch").Logger(),
		now:      time.Now,
	}
}

// Normalize validates every recipient up front.
func (s *Scheduler) Normalize(recipients []string) ([]string, error) {
	out := make([]string, len(recipients))
	for i, r := range recipients {
		phone, err := s.phones.Normalize(r)
		if err != nil {
			return nil, fmt.Errorf("%w at position %d: %w", ErrInvalidRecipient, i+1, err)
		}
		out[i] = phone
	}
	return out, nil
}

// Dispatch sends render(recipient) to every recipient in order, batch by
// batch, never in parallel. It fails fast on malformed recipients and when
// the session is not connected; otherwise it always returns final counts.
// A cancelled ctx or a dropped session stops the job and counts every
// unattempted recipient as a failure.
func (s *Scheduler) Dispatch(ctx context.Context, recipients []string, render RenderFunc, cfg Config, onProgress func(Progress)) (Result, error) {
	phones, err := s.Normalize(recipients)
	if err != nil {
		return Result{}, err
	}
	if len(phones) == 0 {
		return Result{}, nil
	}
	if !s.sender.IsConnected() {
		return Result{}, session.ErrNoActiveSession
	}

	var (
		res     Result
		total   = len(phones)
		size    = cfg.batchSize()
		limiter = cfg.limiter()
		batches = (total + size - 1) / size
	)

	s.log.Info().Int("recipients", total).Int("batches", batches).Msg("dispatch started")

	attempted := 0
	for b := 0; b < batches && res.Interrupted == nil; b++ {
		start, end := b*size, min((b+1)*size, total)
		s.log.Debug().Int("batch", b+1).Int("of", batches).Int("size", end-start).Msg("batch started")

		for i := start; i < end; i++ {
			if i > start {
				if err := s.pause(ctx, cfg.MessageDelay, cfg.MessageJitter, limiter); err != nil {
					res.Interrupted = err
					break
				}
			} else if err := s.pause(ctx, 0, 0, limiter); err != nil {
				res.Interrupted = err
				break
			}
			if !s.sender.IsConnected() {
				res.Interrupted = ErrSessionLost
				break
			}

			err := s.attempt(ctx, phones[i], render)
			attempted++
			if err != nil {
				res.Failure++
				s.log.Warn().Err(err).Str("to", phones[i]).Int("index", i+1).Msg("send failed")
			} else {
				res.Success++
			}
			if onProgress != nil {
				onProgress(Progress{
					Recipient: phones[i],
					Index:     i + 1,
					Total:     total,
					Batch:     b + 1,
					Err:       err,
					Success:   res.Success,
					Failure:   res.Failure,
				})
			}
		}

		if res.Interrupted == nil && b < batches-1 {
			s.log.Info().Int("batch", b+1).Dur("base_delay", cfg.BatchDelay).Msg("waiting before next batch")
			if err := s.pause(ctx, cfg.BatchDelay, cfg.BatchJitter, nil); err != nil {
				res.Interrupted = err
			}
		}
	}

	if res.Interrupted != nil {
		res.Failure += total - attempted
		s.log.Warn().Err(res.Interrupted).Int("unattempted", total-attempted).Msg("dispatch stopped early")
	}

	s.log.Info().Int("success", res.Success).Int("failure", res.Failure).Msg("dispatch finished")
	return res, nil
}

func (s *Scheduler) attempt(ctx context.Context, phone string, render RenderFunc) error {
	text, err := render(phone)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	if err := s.sender.SendText(ctx, phone, text); err != nil {
		return err
	}
	if s.contacts != nil {
		if err := s.contacts.SetLastChatDate(ctx, phone, s.now()); err != nil {
			s.log.Error().Err(err).Str("to", phone).Msg("failed to record last chat date")
		}
	}
	return nil
}

// pause sleeps for base±jitter, or longer if the limiter requires it. It
// returns early with ctx.Err() or ErrSessionLost.
func (s *Scheduler) pause(ctx context.Context, base, jitter time.Duration, limiter *rate.Limiter) error {
	wait := jittered(base, jitter)
	if limiter != nil {
		r := limiter.Reserve()
		wait = max(wait, r.Delay())
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		changes := s.sender.Changes()
		if !s.sender.IsConnected() {
			return ErrSessionLost
		}
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-changes:
		}
	}
}

func jittered(base, jitter time.Duration) time.Duration {
	if jitter > 0 {
		base += time.Duration(rand.Int64N(int64(2*jitter)+1)) - jitter
	}
	return max(base, 0)
}
