package dispatch

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"gowa-broadcast/internal/model"
	"gowa-broadcast/internal/session"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrJobNotFound = errors.New("dispatch job not found")
	ErrJobFinished = errors.New("dispatch job already finished")
)

// Job states.
const (
	StateScheduled = "scheduled"
	StateRunning   = "running"
	StateCompleted = "completed"
	StateCancelled = "cancelled"
	StateFailed    = "failed"
)

// DefaultRetention is how many finished jobs stay in memory.
const DefaultRetention = 200

// Request describes a bulk send. A zero or past ScheduledAt runs at once.
type Request struct {
	Recipients  []string
	Render      RenderFunc
	TemplateID  string
	ScheduledAt time.Time
}

// JobRecorder persists job snapshots.
type JobRecorder interface {
	Save(ctx context.Context, job model.DispatchJob) error
}

// Observer is told about job progress and completion. Calls are made from
// the job goroutine and must not block.
type Observer interface {
	JobProgress(job model.DispatchJob, p Progress)
	JobFinished(job model.DispatchJob)
}

type job struct {
	info       model.DispatchJob
	recipients []string
	render     RenderFunc
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	queued     bool
}

// Registry runs dispatch jobs in the background, one at a time, in the
// order they become due. Immediate jobs are due at submission.
type Registry struct {
	sched     *Scheduler
	cfg       Config
	recorder  JobRecorder
	observer  Observer
	retention int
	log       zerolog.Logger

	mu       sync.Mutex
	jobs     map[string]*job
	queue    []*job
	finished []string
	running  bool
	closed   bool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

type RegistryOption func(*Registry)

func WithRecorder(r JobRecorder) RegistryOption {
	return func(reg *Registry) { reg.recorder = r }
}

func WithObserver(o Observer) RegistryOption {
	return func(reg *Registry) { reg.observer = o }
}

// WithRetention sets how many finished jobs Get and List still return.
// Older ones are only available from the recorder.
func WithRetention(n int) RegistryOption {
	return func(reg *Registry) {
		if n > 0 {
			reg.retention = n
		}
	}
}

func NewRegistry(sched *Scheduler, cfg Config, logger zerolog.Logger, opts ...RegistryOption) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		sched:     sched,
		cfg:       cfg,
		retention: DefaultRetention,
		log:       logger.With().Str("component", "dispatch_registry").Logger(),
		jobs:      make(map[string]*job),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Config() Config { return r.cfg }

// Submit validates the request and starts or schedules the job. Malformed
// recipients and, for immediate jobs, a disconnected session are reported
// synchronously. An empty recipient list completes at once with zero counts.
func (r *Registry) Submit(req Request) (model.DispatchJob, error) {
	phones, err := r.sched.Normalize(req.Recipients)
	if err != nil {
		return model.DispatchJob{}, err
	}

	now := time.Now().UTC()
	scheduledAt := req.ScheduledAt.UTC()
	if scheduledAt.Before(now) {
		scheduledAt = now
	}
	due := !scheduledAt.After(now)
	if due && len(phones) > 0 && !r.sched.sender.IsConnected() {
		return model.DispatchJob{}, session.ErrNoActiveSession
	}

	ctx, cancel := context.WithCancel(r.ctx)
	j := &job{
		info: model.DispatchJob{
			ID:          uuid.NewString(),
			State:       StateScheduled,
			Total:       len(phones),
			TemplateID:  req.TemplateID,
			ScheduledAt: scheduledAt,
			CreatedAt:   now,
		},
		recipients: phones,
		render:     req.Render,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		cancel()
		return model.DispatchJob{}, session.ErrClosed
	}
	r.jobs[j.info.ID] = j
	snapshot := j.info
	switch {
	case len(phones) == 0:
	case due:
		r.enqueueLocked(j)
	default:
		r.wg.Add(1)
		go r.wait(j)
	}
	r.mu.Unlock()

	r.record(snapshot)
	r.log.Info().Str("job", snapshot.ID).Int("recipients", snapshot.Total).Time("scheduled_at", scheduledAt).Msg("dispatch job submitted")

	if len(phones) == 0 {
		snapshot = r.finish(j, Result{}, StateCompleted, "")
	}
	return snapshot, nil
}

// wait holds a future job until it is due, then queues it.
func (r *Registry) wait(j *job) {
	defer r.wg.Done()

	timer := time.NewTimer(time.Until(j.info.ScheduledAt))
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-j.ctx.Done():
		r.finish(j, Result{Failure: j.info.Total}, StateCancelled, "")
		return
	}

	r.mu.Lock()
	r.enqueueLocked(j)
	r.mu.Unlock()
}

// enqueueLocked appends j to the run queue and starts the runner if idle.
// r.mu must be held.
func (r *Registry) enqueueLocked(j *job) {
	j.queued = true
	r.queue = append(r.queue, j)
	if r.running {
		return
	}
	r.running = true
	r.wg.Add(1)
	go r.drain()
}

// drain runs queued jobs one after another until the queue is empty.
func (r *Registry) drain() {
	defer r.wg.Done()
	for {
		r.mu.Lock()
		if len(r.queue) == 0 {
			r.running = false
			r.mu.Unlock()
			return
		}
		j := r.queue[0]
		r.queue[0] = nil
		r.queue = r.queue[1:]
		j.queued = false
		r.mu.Unlock()

		r.execute(j)
	}
}

func (r *Registry) execute(j *job) {
	ctx := j.ctx
	if ctx.Err() != nil {
		r.finish(j, Result{Failure: j.info.Total}, StateCancelled, "")
		return
	}

	started := time.Now().UTC()
	r.mu.Lock()
	j.info.State = StateRunning
	j.info.StartedAt = &started
	snapshot := j.info
	r.mu.Unlock()
	r.record(snapshot)

	res, err := r.sched.Dispatch(ctx, j.recipients, j.render, r.cfg, func(p Progress) {
		r.mu.Lock()
		j.info.Success = p.Success
		j.info.Failure = p.Failure
		snapshot := j.info
		r.mu.Unlock()
		if r.observer != nil {
			r.observer.JobProgress(snapshot, p)
		}
	})

	switch {
	case err != nil:
		r.finish(j, Result{Failure: j.info.Total}, StateFailed, err.Error())
	case errors.Is(res.Interrupted, context.Canceled):
		r.finish(j, res, StateCancelled, "")
	case res.Interrupted != nil:
		r.finish(j, res, StateFailed, res.Interrupted.Error())
	default:
		r.finish(j, res, StateCompleted, "")
	}
}

func (r *Registry) finish(j *job, res Result, state, errText string) model.DispatchJob {
	finished := time.Now().UTC()
	r.mu.Lock()
	j.info.State = state
	j.info.Success = res.Success
	j.info.Failure = res.Failure
	j.info.Error = errText
	j.info.FinishedAt = &finished
	snapshot := j.info
	r.finished = append(r.finished, j.info.ID)
	for len(r.finished) > r.retention {
		delete(r.jobs, r.finished[0])
		r.finished = r.finished[1:]
	}
	r.mu.Unlock()
	j.cancel()
	defer close(j.done)

	r.record(snapshot)
	r.log.Info().
		Str("job", snapshot.ID).
		Str("state", state).
		Int("success", snapshot.Success).
		Int("failure", snapshot.Failure).
		Msg("dispatch job finished")
	if r.observer != nil {
		r.observer.JobFinished(snapshot)
	}
	return snapshot
}

func (r *Registry) record(job model.DispatchJob) {
	if r.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.recorder.Save(ctx, job); err != nil {
		r.log.Error().Err(err).Str("job", job.ID).Msg("failed to persist dispatch job")
	}
}

func (r *Registry) Get(id string) (model.DispatchJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return model.DispatchJob{}, ErrJobNotFound
	}
	return j.info, nil
}

// List returns every job of this process, newest first.
func (r *Registry) List() []model.DispatchJob {
	r.mu.Lock()
	out := make([]model.DispatchJob, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j.info)
	}
	r.mu.Unlock()

	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].ID > out[b].ID
		}
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	return out
}

// Cancel stops a scheduled or running job. Unattempted recipients count as
// failures.
func (r *Registry) Cancel(id string) error {
	r.mu.Lock()
	j, ok := r.jobs[id]
	if !ok {
		r.mu.Unlock()
		return ErrJobNotFound
	}
	if j.info.State != StateScheduled && j.info.State != StateRunning {
		r.mu.Unlock()
		return ErrJobFinished
	}
	dequeued := j.queued && r.dequeueLocked(j)
	r.mu.Unlock()

	j.cancel()
	if dequeued {
		r.finish(j, Result{Failure: j.info.Total}, StateCancelled, "")
	}
	return nil
}

func (r *Registry) dequeueLocked(j *job) bool {
	for i, q := range r.queue {
		if q == j {
			r.queue = append(r.queue[:i], r.queue[i+1:]...)
			j.queued = false
			return true
		}
	}
	return false
}

// Done is closed when the job reaches a final state.
func (r *Registry) Done(id string) (<-chan struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return j.done, nil
}

// Close cancels all jobs and waits for them to settle. Later submissions
// fail with session.ErrClosed.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
