// Package achievement holds the fixed achievement catalog and the registry that tracks
// which entries are unlocked.
package achievement

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/companion/internal/logfields"
	"git.home.luguber.info/inful/companion/internal/metrics"
	"git.home.luguber.info/inful/companion/internal/persist"
	"git.home.luguber.info/inful/companion/internal/retry"
	"git.home.luguber.info/inful/companion/internal/timeline"
)

// FileName is the registry's file inside the data directory.
const FileName = "achievements.json"

const storeName = "achievements"

// Emitter accepts notifications for the timeline.
type Emitter interface {
	Emit(text string, source timeline.Source) timeline.Entry
}

// Registry owns achievements.json.
type Registry struct {
	mu           sync.Mutex
	path         string
	achievements []Achievement

	sink     Emitter
	clock    clockwork.Clock
	policy   retry.Policy
	recorder metrics.Recorder
}

type Option func(*Registry)

func WithClock(c clockwork.Clock) Option { return func(r *Registry) { r.clock = c } }

func WithRetryPolicy(p retry.Policy) Option { return func(r *Registry) { r.policy = p } }

func WithRecorder(m metrics.Recorder) Option { return func(r *Registry) { r.recorder = m } }

// Open seeds the registry from the catalog and reconciles it with the file at path.
// When the file is missing, empty or corrupt, the locked catalog is written immediately.
func Open(path string, sink Emitter, opts ...Option) *Registry {
	r := &Registry{
		path:     path,
		sink:     sink,
		clock:    clockwork.NewRealClock(),
		policy:   retry.DefaultPolicy(),
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.recorder = metrics.OrNoop(r.recorder)

	persisted, found := persist.LoadWithStatus(path, func() []Achievement { return nil })
	r.achievements = Reconcile(Catalog(), persisted)

	if !found {
		r.save(context.Background())
	}
	return r
}

// Unlock unlocks id and emits one notification. It returns false when id is not in the
// catalog or is already unlocked.
func (r *Registry) Unlock(ctx context.Context, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(id)
	if i < 0 {
		slog.Warn("Unknown achievement id", logfields.AchievementID(id))
		return false
	}
	a := &r.achievements[i]
	if a.IsUnlocked {
		return false
	}

	now := r.clock.Now()
	a.IsUnlocked = true
	a.UnlockedDate = &now
	r.save(ctx)
	slog.Info("Achievement unlocked", logfields.AchievementID(id))
	r.sink.Emit(fmt.Sprintf("Achievement unlocked: '%s' %s", a.Title, a.Icon), timeline.SourceAchievement)
	return true
}

func (r *Registry) IsUnlocked(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexLocked(id)
	return i >= 0 && r.achievements[i].IsUnlocked
}

// Achievements returns a snapshot in catalog order.
func (r *Registry) Achievements() []Achievement {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Achievement, len(r.achievements))
	for i, a := range r.achievements {
		out[i] = a.clone()
	}
	return out
}

// UnlockedCount returns how many achievements are unlocked.
func (r *Registry) UnlockedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.achievements {
		if a.IsUnlocked {
			n++
		}
	}
	return n
}

// Reset locks every achievement and persists once. It emits nothing.
func (r *Registry) Reset(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.achievements {
		r.achievements[i].IsUnlocked = false
		r.achievements[i].UnlockedDate = nil
	}
	r.save(ctx)
	slog.Info("Achievements reset")
}

func (r *Registry) indexLocked(id string) int {
	for i := range r.achievements {
		if r.achievements[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *Registry) save(ctx context.Context) {
	if err := persist.SaveWithPolicy(ctx, r.path, r.achievements, r.policy); err != nil {
		r.recorder.IncPersistFailure(storeName)
		slog.Error("Failed to save achievements", logfields.Store(storeName), logfields.Path(r.path), logfields.Error(err))
	}
}
