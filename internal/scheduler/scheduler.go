// Package scheduler owns the single gocron scheduler that drives every periodic job:
// the reminder due-check and each periodic notifier.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	ferrors "git.home.luguber.info/inful/companion/internal/foundation/errors"
	"git.home.luguber.info/inful/companion/internal/logfields"
	"git.home.luguber.info/inful/companion/internal/metrics"
)

// Handle identifies a registered job.
type Handle struct {
	ID   uuid.UUID
	Name string
}

// Valid reports whether h refers to a job that was registered.
func (h Handle) Valid() bool { return h.ID != uuid.Nil }

// Scheduler wraps gocron scheduler for managing periodic tasks.
type Scheduler struct {
	scheduler gocron.Scheduler
	clock     clockwork.Clock
	recorder  metrics.Recorder
	stopOnce  sync.Once
	stopErr   error
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock used by gocron and for tick timing.
func WithClock(c clockwork.Clock) Option { return func(s *Scheduler) { s.clock = c } }

// WithRecorder records tick durations.
func WithRecorder(r metrics.Recorder) Option { return func(s *Scheduler) { s.recorder = r } }

// New creates a scheduler. Jobs may be registered before Start.
func New(opts ...Option) (*Scheduler, error) {
	s := &Scheduler{clock: clockwork.NewRealClock(), recorder: metrics.NoopRecorder{}}
	for _, opt := range opts {
		opt(s)
	}
	s.recorder = metrics.OrNoop(s.recorder)

	gs, err := gocron.NewScheduler(gocron.WithClock(s.clock))
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryScheduler, "create gocron scheduler").Fatal().Build()
	}
	s.scheduler = gs
	return s, nil
}

// Start begins running registered jobs.
func (s *Scheduler) Start(_ context.Context) {
	slog.Info("Starting scheduler", logfields.Count(len(s.scheduler.Jobs())))
	s.scheduler.Start()
}

// Stop shuts the scheduler down, waiting for running jobs to return. Later calls return the
// first call's result.
func (s *Scheduler) Stop(_ context.Context) error {
	s.stopOnce.Do(func() {
		slog.Info("Stopping scheduler")
		if err := s.scheduler.Shutdown(); err != nil {
			s.stopErr = ferrors.WrapError(err, ferrors.CategoryScheduler, "shutdown scheduler").Build()
		}
	})
	return s.stopErr
}

// Every registers fn to run every interval. Executions of the same job never overlap: a tick
// that comes due while the previous one is still running is rescheduled. fn receives a context
// that is canceled on shutdown.
func (s *Scheduler) Every(name string, interval time.Duration, fn func(ctx context.Context), tags ...string) (Handle, error) {
	if interval <= 0 {
		return Handle{}, ferrors.ValidationError("interval must be positive").
			WithContext("job", name).
			WithContext("interval", interval.String()).
			Build()
	}
	if fn == nil {
		return Handle{}, ferrors.ValidationError("job function is nil").WithContext("job", name).Build()
	}

	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func(ctx context.Context) { s.run(ctx, name, fn) }),
		gocron.WithName(name),
		gocron.WithTags(append([]string{name}, tags...)...),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return Handle{}, ferrors.WrapError(err, ferrors.CategoryScheduler, "register periodic job").
			WithContext("job", name).
			Build()
	}

	slog.Debug("Registered periodic job",
		logfields.JobName(name),
		logfields.JobID(job.ID().String()),
		logfields.Interval(interval))
	return Handle{ID: job.ID(), Name: name}, nil
}

func (s *Scheduler) run(ctx context.Context, name string, fn func(context.Context)) {
	start := s.clock.Now()
	fn(ctx)
	s.recorder.ObserveTickDuration(name, s.clock.Since(start))
}

// Cancel removes the job behind h. Cancelling an unknown or already removed job is a no-op.
func (s *Scheduler) Cancel(h Handle) error {
	if !h.Valid() {
		return nil
	}
	if err := s.scheduler.RemoveJob(h.ID); err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
		return ferrors.WrapError(err, ferrors.CategoryScheduler, "remove job").
			WithContext("job", h.Name).
			Build()
	}
	slog.Debug("Removed periodic job", logfields.JobName(h.Name), logfields.JobID(h.ID.String()))
	return nil
}

// JobCount returns the number of registered jobs carrying tag.
func (s *Scheduler) JobCount(tag string) int {
	n := 0
	for _, j := range s.scheduler.Jobs() {
		if slices.Contains(j.Tags(), tag) {
			n++
		}
	}
	return n
}

// NextRun reports when the job behind h fires next.
func (s *Scheduler) NextRun(h Handle) (time.Time, bool) {
	for _, j := range s.scheduler.Jobs() {
		if j.ID() == h.ID {
			next, err := j.NextRun()
			return next, err == nil
		}
	}
	return time.Time{}, false
}
