package companion

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"git.home.luguber.info/inful/companion/internal/achievement"
	"git.home.luguber.info/inful/companion/internal/events"
	"git.home.luguber.info/inful/companion/internal/foundation/normalization"
	"git.home.luguber.info/inful/companion/internal/logfields"
	"git.home.luguber.info/inful/companion/internal/timeline"
)

const (
	deepConversationThreshold = 10
	consistentDays            = 3
	goodHabitsCount           = 3
	moodTrackerDays           = 3
)

var bedtimeStoryPhrase = normalization.Fold("bedtime story")

// Unlocker is the part of the achievement registry the rules need.
type Unlocker interface {
	Unlock(ctx context.Context, id string) bool
	IsUnlocked(id string) bool
}

// History exposes the timeline to the rules.
type History interface {
	Snapshot() []timeline.Entry
}

// Rules derives achievement unlocks from delivered notifications. It runs on its own
// goroutine as a bus subscriber and never holds a store lock while calling another store.
type Rules struct {
	achievements Unlocker
	history      History
	onTime       func() int
	moodDays     func() int
	location     *time.Location
}

// NewRules wires the rule inputs. onTime and moodDays may be nil.
func NewRules(achievements Unlocker, history History, onTime, moodDays func() int) *Rules {
	zero := func() int { return 0 }
	if onTime == nil {
		onTime = zero
	}
	if moodDays == nil {
		moodDays = zero
	}
	return &Rules{
		achievements: achievements,
		history:      history,
		onTime:       onTime,
		moodDays:     moodDays,
		location:     time.Local,
	}
}

// Run applies the rules to every event until ch is closed or ctx is done.
func (r *Rules) Run(ctx context.Context, ch <-chan events.NotificationAccepted) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-ch:
			if !ok {
				return nil
			}
			r.Apply(ctx, evt)
		}
	}
}

// Apply evaluates the rules relevant to evt's source.
func (r *Rules) Apply(ctx context.Context, evt events.NotificationAccepted) {
	switch timeline.Source(evt.Source) {
	case timeline.SourceUser:
		r.unlockIf(ctx, achievement.FirstChat, func() bool { return true })
		r.unlockIf(ctx, achievement.BedtimeStory, func() bool {
			return strings.Contains(normalization.Fold(evt.Text), bedtimeStoryPhrase)
		})
		r.unlockIf(ctx, achievement.DeepConversation, func() bool {
			return r.conversationLength() > deepConversationThreshold
		})
		r.unlockIf(ctx, achievement.Consistent, func() bool {
			return r.longestDailyStreak() >= consistentDays
		})
	case timeline.SourceCompanion:
		r.unlockIf(ctx, achievement.DeepConversation, func() bool {
			return r.conversationLength() > deepConversationThreshold
		})
	case timeline.SourceReminder:
		r.unlockIf(ctx, achievement.GoodHabits, func() bool { return r.onTime() >= goodHabitsCount })
	case timeline.SourceMood:
		r.unlockIf(ctx, achievement.MoodTracker, func() bool { return r.moodDays() >= moodTrackerDays })
	}
}

// unlockIf skips the condition entirely once id is unlocked.
func (r *Rules) unlockIf(ctx context.Context, id string, cond func() bool) {
	if r.achievements.IsUnlocked(id) || !cond() {
		return
	}
	if r.achievements.Unlock(ctx, id) {
		slog.Debug("Achievement rule matched", logfields.AchievementID(id))
	}
}

func (r *Rules) conversationLength() int {
	n := 0
	for _, e := range r.history.Snapshot() {
		if e.Source == timeline.SourceUser || e.Source == timeline.SourceCompanion {
			n++
		}
	}
	return n
}

// longestDailyStreak returns the longest run of consecutive calendar days with a user message.
func (r *Rules) longestDailyStreak() int {
	seen := map[time.Time]struct{}{}
	for _, e := range r.history.Snapshot() {
		if e.Source != timeline.SourceUser {
			continue
		}
		t := e.Timestamp.In(r.location)
		seen[time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)] = struct{}{}
	}
	days := make([]time.Time, 0, len(seen))
	for d := range seen {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	best, run := 0, 0
	for i, d := range days {
		if i > 0 && d.Equal(days[i-1].AddDate(0, 0, 1)) {
			run++
		} else {
			run = 1
		}
		best = max(best, run)
	}
	return best
}
