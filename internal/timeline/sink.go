// Package timeline holds the single ordered notification timeline (the chat log).
//
// Every producer appends through Sink.Emit, which is the only serialization point. A single
// delivery loop (Sink.Run) hands accepted entries to the journal, metrics and event bus in
// acceptance order.
package timeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/companion/internal/events"
	ferrors "git.home.luguber.info/inful/companion/internal/foundation/errors"
	"git.home.luguber.info/inful/companion/internal/journal"
	"git.home.luguber.info/inful/companion/internal/logfields"
	"git.home.luguber.info/inful/companion/internal/metrics"
)

// Source labels the producer of an entry.
type Source string

const (
	SourceUser        Source = "user"
	SourceCompanion   Source = "companion"
	SourceReminder    Source = "reminder"
	SourceAchievement Source = "achievement"
	SourceMood        Source = "mood"
	SourceNotifier    Source = "notifier"
	SourceSystem      Source = "system"
)

// Entry is one accepted notification.
type Entry struct {
	Seq       uint64
	Text      string
	Source    Source
	Timestamp time.Time
}

// Journal receives every delivered entry.
type Journal interface {
	Append(ctx context.Context, r journal.Record) error
}

// Publisher fans delivered entries out to observers.
type Publisher interface {
	Publish(ctx context.Context, evt any) error
}

// drainTimeout bounds delivery of entries still queued when Run is canceled.
const drainTimeout = 2 * time.Second

// Sink is the append-only timeline. Emit never blocks on consumers.
type Sink struct {
	mu        sync.Mutex
	entries   []Entry
	pending   []Entry
	nextSeq   uint64
	delivered uint64
	signal    chan struct{}

	clock    clockwork.Clock
	journal  Journal
	bus      Publisher
	recorder metrics.Recorder
}

// Option configures a Sink.
type Option func(*Sink)

func WithClock(c clockwork.Clock) Option { return func(s *Sink) { s.clock = c } }

func WithJournal(j Journal) Option { return func(s *Sink) { s.journal = j } }

func WithPublisher(p Publisher) Option { return func(s *Sink) { s.bus = p } }

func WithRecorder(r metrics.Recorder) Option { return func(s *Sink) { s.recorder = r } }

func NewSink(opts ...Option) *Sink {
	s := &Sink{
		signal:   make(chan struct{}, 1),
		clock:    clockwork.NewRealClock(),
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.recorder = metrics.OrNoop(s.recorder)
	return s
}

// Emit accepts text from source, assigns the next sequence number and queues it for delivery.
func (s *Sink) Emit(text string, source Source) Entry {
	s.mu.Lock()
	s.nextSeq++
	e := Entry{Seq: s.nextSeq, Text: text, Source: source, Timestamp: s.clock.Now()}
	s.entries = append(s.entries, e)
	s.pending = append(s.pending, e)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
	return e
}

// Seed loads persisted history into an empty timeline. Seeded entries are not delivered.
func (s *Sink) Seed(history []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) > 0 {
		return ferrors.ValidationError("timeline already has entries").
			WithContext("entries", len(s.entries)).
			Build()
	}
	s.entries = append(s.entries, history...)
	for _, e := range history {
		if e.Seq > s.nextSeq {
			s.nextSeq = e.Seq
		}
	}
	s.delivered = s.nextSeq
	return nil
}

// Run delivers queued entries in acceptance order until ctx is canceled. It must be called
// from exactly one goroutine. Deliveries never use ctx itself: once ctx is canceled, the batch in
// flight and everything still queued are delivered within drainTimeout.
func (s *Sink) Run(ctx context.Context) error {
	deliveryCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	stop := context.AfterFunc(ctx, func() { time.AfterFunc(drainTimeout, cancel) })
	defer stop()

	for {
		if ctx.Err() != nil {
			s.deliverPending(deliveryCtx)
			return nil
		}
		select {
		case <-ctx.Done():
		case <-s.signal:
			s.deliverPending(deliveryCtx)
		}
	}
}

// Drain synchronously delivers everything queued, bounded by drainTimeout. It is for callers
// that never start Run and must not be called while Run is active.
func (s *Sink) Drain(ctx context.Context) {
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
	defer cancel()
	s.deliverPending(drainCtx)
}

func (s *Sink) deliverPending(ctx context.Context) {
	for {
		s.mu.Lock()
		batch := s.pending
		s.pending = nil
		s.mu.Unlock()

		if len(batch) == 0 {
			return
		}
		for _, e := range batch {
			s.deliver(ctx, e)
		}
	}
}

func (s *Sink) deliver(ctx context.Context, e Entry) {
	if s.journal != nil {
		rec := journal.Record{Seq: e.Seq, Source: string(e.Source), Text: e.Text, Timestamp: e.Timestamp}
		if err := s.journal.Append(ctx, rec); err != nil {
			s.recorder.IncJournalFailure()
			slog.Warn("Failed to journal notification", logfields.Seq(e.Seq), logfields.Error(err))
		}
	}
	s.recorder.IncNotification(string(e.Source))

	if s.bus != nil {
		evt := events.NotificationAccepted{Seq: e.Seq, Text: e.Text, Source: string(e.Source), Timestamp: e.Timestamp}
		if err := s.bus.Publish(ctx, evt); err != nil {
			slog.Warn("Failed to publish notification", logfields.Seq(e.Seq), logfields.Error(err))
		}
	}

	s.mu.Lock()
	s.delivered = e.Seq
	s.mu.Unlock()
}

// Delivered returns the sequence number of the last delivered (or seeded) entry.
func (s *Sink) Delivered() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delivered
}

// Snapshot returns a copy of the whole timeline.
func (s *Sink) Snapshot() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Since returns a copy of the entries with Seq > seq.
func (s *Sink) Since(seq uint64) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []Entry{}
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].Seq <= seq {
			out = append(out, s.entries[i+1:]...)
			return out
		}
	}
	return append(out, s.entries...)
}

// Tail returns a copy of the last n entries.
func (s *Sink) Tail(n int) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 {
		return []Entry{}
	}
	if n > len(s.entries) {
		n = len(s.entries)
	}
	out := make([]Entry, n)
	copy(out, s.entries[len(s.entries)-n:])
	return out
}

func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
