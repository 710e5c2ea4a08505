// Package notifier injects ambient messages into the timeline at a configurable hourly rate.
package notifier

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	ferrors "git.home.luguber.info/inful/companion/internal/foundation/errors"
	"git.home.luguber.info/inful/companion/internal/logfields"
	"git.home.luguber.info/inful/companion/internal/scheduler"
	"git.home.luguber.info/inful/companion/internal/timeline"
)

const (
	MinRate = 1
	MaxRate = 30
)

// Sink is the timeline as seen by a notifier.
type Sink interface {
	Emit(text string, source timeline.Source) timeline.Entry
	Len() int
}

// Notifier owns at most one scheduler job at any time.
type Notifier struct {
	mu       sync.Mutex
	name     string
	rate     int
	messages []string
	job      scheduler.Handle
	gen      uint64
	closed   bool

	sched *scheduler.Scheduler
	sink  Sink
	pick  func(n int) int
}

type Option func(*Notifier)

// WithPicker replaces the uniform random index source.
func WithPicker(pick func(n int) int) Option { return func(n *Notifier) { n.pick = pick } }

// New creates a notifier and schedules it unless rate <= 0 or messages is empty.
func New(name string, sched *scheduler.Scheduler, sink Sink, rate int, messages []string, opts ...Option) (*Notifier, error) {
	n := &Notifier{
		name:  name,
		sched: sched,
		sink:  sink,
		pick:  rand.IntN,
	}
	for _, opt := range opts {
		opt(n)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.rate = clampRate(rate)
	n.messages = cleanPool(messages)
	if err := n.rescheduleLocked(); err != nil {
		return nil, err
	}
	return n, nil
}

// SetRate changes messages per hour, replacing the running job.
func (n *Notifier) SetRate(rate int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rate = clampRate(rate)
	return n.rescheduleLocked()
}

// SetMessages replaces the message pool. An empty pool stops the notifier.
func (n *Notifier) SetMessages(messages []string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = cleanPool(messages)
	return n.rescheduleLocked()
}

// Configure applies rate and pool together with a single reschedule.
func (n *Notifier) Configure(rate int, messages []string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rate = clampRate(rate)
	n.messages = cleanPool(messages)
	return n.rescheduleLocked()
}

// Close removes the job. Ticks already in flight do nothing afterwards.
func (n *Notifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	n.gen++
	return n.cancelLocked()
}

// Tick emits one random message when the timeline already has entries.
// It reports whether a message was emitted.
func (n *Notifier) Tick(_ context.Context) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.tickLocked(n.gen)
}

func (n *Notifier) tickLocked(gen uint64) bool {
	if n.closed || gen != n.gen || len(n.messages) == 0 || n.rate <= 0 {
		return false
	}
	if n.sink.Len() == 0 {
		return false
	}
	msg := n.messages[n.pick(len(n.messages))]
	n.sink.Emit(msg, timeline.SourceNotifier)
	return true
}

// Interval is the current tick period, zero when disabled.
func (n *Notifier) Interval() time.Duration {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.intervalLocked()
}

func (n *Notifier) Rate() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.rate
}

// Running reports whether a job is registered.
func (n *Notifier) Running() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.job.Valid()
}

func (n *Notifier) Name() string { return n.name }

func (n *Notifier) intervalLocked() time.Duration {
	if n.rate <= 0 || len(n.messages) == 0 {
		return 0
	}
	return time.Hour / time.Duration(n.rate)
}

func (n *Notifier) rescheduleLocked() error {
	if n.closed {
		return ferrors.RuntimeError("notifier is closed").WithContext("notifier", n.name).Build()
	}
	if err := n.cancelLocked(); err != nil {
		return err
	}
	n.gen++

	interval := n.intervalLocked()
	if interval == 0 {
		slog.Info("Notifier disabled", logfields.Notifier(n.name), logfields.Rate(n.rate), logfields.Count(len(n.messages)))
		return nil
	}

	gen := n.gen
	h, err := n.sched.Every(n.name, interval, func(context.Context) {
		n.mu.Lock()
		defer n.mu.Unlock()
		n.tickLocked(gen)
	}, "notifier")
	if err != nil {
		return err
	}
	n.job = h
	slog.Info("Notifier scheduled", logfields.Notifier(n.name), logfields.Rate(n.rate), logfields.Interval(interval))
	return nil
}

func (n *Notifier) cancelLocked() error {
	if !n.job.Valid() {
		return nil
	}
	h := n.job
	n.job = scheduler.Handle{}
	return n.sched.Cancel(h)
}

func clampRate(rate int) int {
	switch {
	case rate <= 0:
		return 0
	case rate < MinRate:
		return MinRate
	case rate > MaxRate:
		return MaxRate
	default:
		return rate
	}
}

func cleanPool(messages []string) []string {
	out := make([]string, 0, len(messages))
	for _, m := range messages {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	return out
}
