// Package mood implements the append-only mood log and the derived current mood.
package mood

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	ferrors "git.home.luguber.info/inful/companion/internal/foundation/errors"
	"git.home.luguber.info/inful/companion/internal/logfields"
	"git.home.luguber.info/inful/companion/internal/metrics"
	"git.home.luguber.info/inful/companion/internal/persist"
	"git.home.luguber.info/inful/companion/internal/retry"
	"git.home.luguber.info/inful/companion/internal/timeline"
)

// FileName is the log's file inside the data directory.
const FileName = "mood_entries.json"

const storeName = "mood"

// ErrUnknownMood is returned by AddEntry for input outside the fixed mood set.
var ErrUnknownMood = ferrors.ValidationError("unknown mood").Build()

// Entry is one immutable mood record. Mood holds the canonical name.
type Entry struct {
	Mood      string    `json:"mood"`
	Note      string    `json:"note"`
	Timestamp time.Time `json:"timestamp"`
}

// Icon returns the entry's mood icon, or DefaultIcon for a name outside the set.
func (e Entry) Icon() string {
	if m, ok := Parse(e.Mood); ok {
		return m.Icon
	}
	return DefaultIcon
}

// Emitter accepts notifications for the timeline.
type Emitter interface {
	Emit(text string, source timeline.Source) timeline.Entry
}

// Log owns mood_entries.json.
type Log struct {
	mu      sync.Mutex
	path    string
	entries []Entry
	current string

	sink     Emitter
	clock    clockwork.Clock
	policy   retry.Policy
	recorder metrics.Recorder
}

type Option func(*Log)

func WithClock(c clockwork.Clock) Option { return func(l *Log) { l.clock = c } }

func WithRetryPolicy(p retry.Policy) Option { return func(l *Log) { l.policy = p } }

func WithRecorder(r metrics.Recorder) Option { return func(l *Log) { l.recorder = r } }

// Open loads the log from path. Entries recorded by icon are mapped to their canonical name.
func Open(path string, sink Emitter, opts ...Option) *Log {
	l := &Log{
		path:     path,
		sink:     sink,
		clock:    clockwork.NewRealClock(),
		policy:   retry.DefaultPolicy(),
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(l)
	}
	l.recorder = metrics.OrNoop(l.recorder)

	l.entries = persist.Load(path, func() []Entry { return []Entry{} })
	for i, e := range l.entries {
		if m, ok := Parse(e.Mood); ok {
			l.entries[i].Mood = m.Name
		}
	}
	l.current = DefaultIcon
	if recent := l.recentLocked(1); len(recent) == 1 {
		l.current = recent[0].Icon()
	}
	return l
}

// AddEntry appends a mood entry stamped now and emits one notification.
func (l *Log) AddEntry(ctx context.Context, mood, note string) (Entry, error) {
	m, ok := Parse(mood)
	if !ok {
		return Entry{}, ferrors.ValidationError(ErrUnknownMood.Message()).
			WithContext("mood", mood).
			WithContext("valid", strings.Join(Names(), ", ")).
			Build()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e := Entry{Mood: m.Name, Note: strings.TrimSpace(note), Timestamp: l.clock.Now()}
	l.entries = append(l.entries, e)
	l.save(ctx)
	l.current = l.recentLocked(1)[0].Icon()
	slog.Debug("Mood recorded", logfields.Mood(m.Name))

	text := fmt.Sprintf("Feeling %s %s", m.Name, m.Icon)
	if e.Note != "" {
		text += " - " + e.Note
	}
	l.sink.Emit(text, timeline.SourceMood)
	return e, nil
}

// RecentEntries returns the n most recent entries, newest first. Later insertion wins ties.
func (l *Log) RecentEntries(n int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.recentLocked(n)
}

func (l *Log) recentLocked(n int) []Entry {
	if n <= 0 || len(l.entries) == 0 {
		return []Entry{}
	}
	idx := make([]int, len(l.entries))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		ta, tb := l.entries[idx[a]].Timestamp, l.entries[idx[b]].Timestamp
		if !ta.Equal(tb) {
			return ta.After(tb)
		}
		return idx[a] > idx[b]
	})
	if n > len(idx) {
		n = len(idx)
	}
	out := make([]Entry, n)
	for i := 0; i < n; i++ {
		out[i] = l.entries[idx[i]]
	}
	return out
}

// CurrentMood returns the icon of the most recent entry, or DefaultIcon.
func (l *Log) CurrentMood() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// DistinctDays counts the calendar days (local time) with at least one entry.
func (l *Log) DistinctDays() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	days := make(map[string]struct{}, len(l.entries))
	for _, e := range l.entries {
		days[e.Timestamp.Local().Format(time.DateOnly)] = struct{}{}
	}
	return len(days)
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Log) save(ctx context.Context) {
	if err := persist.SaveWithPolicy(ctx, l.path, l.entries, l.policy); err != nil {
		l.recorder.IncPersistFailure(storeName)
		slog.Error("Failed to save mood entries", logfields.Store(storeName), logfields.Path(l.path), logfields.Error(err))
	}
}
