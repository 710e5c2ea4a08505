// Package reminder implements the reminder store: CRUD, the recurrence state machine and the
// periodic due-check that turns due reminders into timeline notifications.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	ferrors "git.home.luguber.info/inful/companion/internal/foundation/errors"
	"git.home.luguber.info/inful/companion/internal/logfields"
	"git.home.luguber.info/inful/companion/internal/metrics"
	"git.home.luguber.info/inful/companion/internal/persist"
	"git.home.luguber.info/inful/companion/internal/retry"
	"git.home.luguber.info/inful/companion/internal/scheduler"
	"git.home.luguber.info/inful/companion/internal/timeline"
)

const (
	// FileName is the store's file inside the data directory.
	FileName = "reminders.json"

	// JobName names the due-check job in the scheduler.
	JobName = "reminders"

	// DefaultCheckInterval is the due-check period used when Start gets a non-positive interval.
	DefaultCheckInterval = 30 * time.Second

	// pruneAfter drops completed one-off reminders this long past their due time on load.
	pruneAfter = 7 * 24 * time.Hour

	storeName = "reminders"
)

// ErrEmptyTitle is returned by Add when the title is blank.
var ErrEmptyTitle = ferrors.ValidationError("reminder title must not be empty").Build()

// Emitter accepts notifications for the timeline.
type Emitter interface {
	Emit(text string, source timeline.Source) timeline.Entry
}

// Store owns reminders.json and the in-memory reminder list.
type Store struct {
	mu        sync.Mutex
	path      string
	reminders []Reminder
	closed    bool

	sched *scheduler.Scheduler
	job   scheduler.Handle

	sink     Emitter
	clock    clockwork.Clock
	policy   retry.Policy
	recorder metrics.Recorder
}

// Option configures a Store.
type Option func(*Store)

func WithClock(c clockwork.Clock) Option { return func(s *Store) { s.clock = c } }

func WithRetryPolicy(p retry.Policy) Option { return func(s *Store) { s.policy = p } }

func WithRecorder(r metrics.Recorder) Option { return func(s *Store) { s.recorder = r } }

// Open loads the store from path. A missing or corrupt file yields an empty store.
// Completed one-off reminders more than a week past due are pruned.
func Open(path string, sink Emitter, opts ...Option) *Store {
	s := &Store{
		path:     path,
		sink:     sink,
		clock:    clockwork.NewRealClock(),
		policy:   retry.DefaultPolicy(),
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.recorder = metrics.OrNoop(s.recorder)

	loaded := persist.Load(path, func() []Reminder { return []Reminder{} })
	cutoff := s.clock.Now().Add(-pruneAfter)
	s.reminders = make([]Reminder, 0, len(loaded))
	for _, r := range loaded {
		if r.IsCompleted && !r.IsRecurring && r.DueTime.Before(cutoff) {
			continue
		}
		s.reminders = append(s.reminders, r)
	}
	if pruned := len(loaded) - len(s.reminders); pruned > 0 {
		slog.Info("Pruned old completed reminders", logfields.Count(pruned), logfields.Path(path))
		s.save(context.Background())
	}
	s.recorder.SetActiveReminders(s.activeCountLocked())
	return s
}

// Add creates a scheduled reminder and returns its id. The pattern is parsed case-insensitively.
func (s *Store) Add(ctx context.Context, title, message string, due time.Time, isRecurring bool, pattern string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", ErrEmptyTitle
	}

	r := Reminder{
		ID:                uuid.NewString(),
		Title:             title,
		Message:           strings.TrimSpace(message),
		DueTime:           due,
		IsRecurring:       isRecurring,
		RecurrencePattern: ParseRecurrence(pattern),
	}
	if isRecurring && !r.RecurrencePattern.Known() {
		slog.Warn("Unknown recurrence pattern, reminder will fire once",
			logfields.ReminderID(r.ID), slog.String("pattern", string(r.RecurrencePattern)))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.reminders = append(s.reminders, r)
	s.save(ctx)
	s.recorder.SetActiveReminders(s.activeCountLocked())
	slog.Debug("Reminder added", logfields.ReminderID(r.ID), slog.Time("due", due))
	return r.ID, nil
}

// Complete marks the reminder completed, which also ends a recurring series.
// It returns false and emits nothing when id is unknown or already completed.
func (s *Store) Complete(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 || s.reminders[i].IsCompleted {
		return false
	}

	r := &s.reminders[i]
	r.complete(s.clock.Now())
	s.save(ctx)
	s.recorder.SetActiveReminders(s.activeCountLocked())
	s.sink.Emit(fmt.Sprintf("Completed reminder: %s", r.Title), timeline.SourceReminder)
	return true
}

// Delete removes the reminder. It returns false when id is unknown.
func (s *Store) Delete(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return false
	}
	s.reminders = append(s.reminders[:i], s.reminders[i+1:]...)
	s.save(ctx)
	s.recorder.SetActiveReminders(s.activeCountLocked())
	return true
}

// Get returns a copy of the reminder with id.
func (s *Store) Get(id string) (Reminder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.reminders[i].clone(), true
	}
	return Reminder{}, false
}

// All returns a copy of every reminder in insertion order.
func (s *Store) All() []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Reminder, len(s.reminders))
	for i, r := range s.reminders {
		out[i] = r.clone()
	}
	return out
}

// ActiveReminders returns scheduled reminders, earliest due first. Ties keep insertion order.
func (s *Store) ActiveReminders() []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []Reminder{}
	for _, r := range s.reminders {
		if !r.IsCompleted {
			out = append(out, r.clone())
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].DueTime.Before(out[b].DueTime) })
	return out
}

// CompletedOnTime counts reminders completed no later than their due time.
func (s *Store) CompletedOnTime() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.reminders {
		if r.CompletedOnTime() {
			n++
		}
	}
	return n
}

// CheckDue fires every scheduled reminder whose due time is not after now, earliest first.
// now is read once, so a recurring reminder advances at most one period per call.
// It returns the number of reminders fired.
func (s *Store) CheckDue(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0
	}

	now := s.clock.Now()
	var due []int
	for i, r := range s.reminders {
		if !r.IsCompleted && !r.DueTime.After(now) {
			due = append(due, i)
		}
	}
	if len(due) == 0 {
		return 0
	}
	sort.SliceStable(due, func(a, b int) bool {
		return s.reminders[due[a]].DueTime.Before(s.reminders[due[b]].DueTime)
	})

	for _, i := range due {
		r := &s.reminders[i]
		r.fire(now)
		s.save(ctx)
		slog.Debug("Reminder fired",
			logfields.ReminderID(r.ID),
			slog.Bool("completed", r.IsCompleted),
			slog.Time("next_due", r.DueTime))
		s.sink.Emit(fmt.Sprintf("Reminder: %s - %s", r.Title, r.Message), timeline.SourceReminder)
	}
	s.recorder.SetActiveReminders(s.activeCountLocked())
	return len(due)
}

// Start registers the due-check with sched. A non-positive interval uses DefaultCheckInterval.
func (s *Store) Start(sched *scheduler.Scheduler, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ferrors.RuntimeError("reminder store is closed").Build()
	}
	if s.job.Valid() {
		return ferrors.ValidationError("reminder due-check already started").Build()
	}

	h, err := sched.Every(JobName, interval, func(ctx context.Context) { s.CheckDue(ctx) })
	if err != nil {
		return err
	}
	s.sched = sched
	s.job = h
	return nil
}

// Close removes the due-check job. A tick already waiting on the store mutex observes the
// closed flag and does nothing.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.sched != nil {
		return s.sched.Cancel(s.job)
	}
	return nil
}

func (s *Store) indexLocked(id string) int {
	for i := range s.reminders {
		if s.reminders[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) activeCountLocked() int {
	n := 0
	for _, r := range s.reminders {
		if !r.IsCompleted {
			n++
		}
	}
	return n
}

// save persists the list. Failures are logged and counted; the in-memory change stands.
func (s *Store) save(ctx context.Context) {
	if err := persist.SaveWithPolicy(ctx, s.path, s.reminders, s.policy); err != nil {
		s.recorder.IncPersistFailure(storeName)
		slog.Error("Failed to save reminders", logfields.Store(storeName), logfields.Path(s.path), logfields.Error(err))
	}
}
