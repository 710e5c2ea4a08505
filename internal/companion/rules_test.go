package companion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"git.home.luguber.info/inful/companion/internal/achievement"
	"git.home.luguber.info/inful/companion/internal/events"
	"git.home.luguber.info/inful/companion/internal/timeline"
)

type fakeUnlocker struct {
	unlocked map[string]bool
	calls    []string
}

func newFakeUnlocker() *fakeUnlocker { return &fakeUnlocker{unlocked: map[string]bool{}} }

func (f *fakeUnlocker) Unlock(_ context.Context, id string) bool {
	f.calls = append(f.calls, id)
	if f.unlocked[id] {
		return false
	}
	f.unlocked[id] = true
	return true
}

func (f *fakeUnlocker) IsUnlocked(id string) bool { return f.unlocked[id] }

type fakeHistory []timeline.Entry

func (h fakeHistory) Snapshot() []timeline.Entry { return h }

var day0 = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func userEvent(text string) events.NotificationAccepted {
	return events.NotificationAccepted{Text: text, Source: string(timeline.SourceUser), Timestamp: day0}
}

func newTestRules(u Unlocker, h History) *Rules {
	r := NewRules(u, h, nil, nil)
	r.location = time.UTC
	return r
}

func TestRules_FirstChatOnUserMessage(t *testing.T) {
	u := newFakeUnlocker()
	r := newTestRules(u, fakeHistory{{Seq: 1, Source: timeline.SourceUser, Text: "hello", Timestamp: day0}})

	r.Apply(context.Background(), userEvent("hello"))

	assert.True(t, u.IsUnlocked(achievement.FirstChat))
	assert.False(t, u.IsUnlocked(achievement.BedtimeStory))
}

func TestRules_BedtimeStoryIsCaseInsensitive(t *testing.T) {
	u := newFakeUnlocker()
	r := newTestRules(u, fakeHistory{})

	r.Apply(context.Background(), userEvent("Could you tell me a BEDTIME Story?"))

	assert.True(t, u.IsUnlocked(achievement.BedtimeStory))
}

func TestRules_IgnoresNonConversationalSources(t *testing.T) {
	u := newFakeUnlocker()
	r := newTestRules(u, fakeHistory{})

	for _, src := range []timeline.Source{timeline.SourceNotifier, timeline.SourceAchievement, timeline.SourceSystem} {
		r.Apply(context.Background(), events.NotificationAccepted{Text: "bedtime story", Source: string(src)})
	}

	assert.Empty(t, u.calls)
}

func TestRules_DeepConversationNeedsMoreThanTenMessages(t *testing.T) {
	u := newFakeUnlocker()
	var h fakeHistory
	for i := range 10 {
		src := timeline.SourceUser
		if i%2 == 1 {
			src = timeline.SourceCompanion
		}
		h = append(h, timeline.Entry{Seq: uint64(i + 1), Source: src, Timestamp: day0})
	}
	h = append(h, timeline.Entry{Seq: 11, Source: timeline.SourceNotifier, Timestamp: day0})

	r := newTestRules(u, h)
	r.Apply(context.Background(), events.NotificationAccepted{Source: string(timeline.SourceCompanion)})
	assert.False(t, u.IsUnlocked(achievement.DeepConversation))

	h = append(h, timeline.Entry{Seq: 12, Source: timeline.SourceUser, Timestamp: day0})
	r.history = h
	r.Apply(context.Background(), userEvent("one more"))
	assert.True(t, u.IsUnlocked(achievement.DeepConversation))
}

func TestRules_UnlockedAchievementIsNotReEvaluated(t *testing.T) {
	u := newFakeUnlocker()
	u.unlocked[achievement.FirstChat] = true
	r := newTestRules(u, fakeHistory{})

	r.Apply(context.Background(), userEvent("hi"))

	assert.NotContains(t, u.calls, achievement.FirstChat)
}

func TestRules_ConsistentNeedsThreeConsecutiveDays(t *testing.T) {
	tests := []struct {
		name string
		days []int
		want bool
	}{
		{name: "single day", days: []int{0, 0, 0}, want: false},
		{name: "gap", days: []int{0, 1, 3, 4}, want: false},
		{name: "three in a row", days: []int{0, 1, 2}, want: true},
		{name: "run after gap", days: []int{0, 2, 3, 4}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var h fakeHistory
			for i, d := range tt.days {
				h = append(h, timeline.Entry{Seq: uint64(i + 1), Source: timeline.SourceUser, Timestamp: day0.AddDate(0, 0, d)})
			}
			u := newFakeUnlocker()
			r := newTestRules(u, h)

			r.Apply(context.Background(), userEvent("x"))

			assert.Equal(t, tt.want, u.IsUnlocked(achievement.Consistent))
		})
	}
}

func TestRules_GoodHabitsAndMoodTracker(t *testing.T) {
	onTime, moodDays := 2, 2
	u := newFakeUnlocker()
	r := NewRules(u, fakeHistory{}, func() int { return onTime }, func() int { return moodDays })

	reminderEvt := events.NotificationAccepted{Source: string(timeline.SourceReminder), Text: "Completed reminder: x"}
	moodEvt := events.NotificationAccepted{Source: string(timeline.SourceMood), Text: "Feeling Happy 😊"}

	r.Apply(context.Background(), reminderEvt)
	r.Apply(context.Background(), moodEvt)
	assert.False(t, u.IsUnlocked(achievement.GoodHabits))
	assert.False(t, u.IsUnlocked(achievement.MoodTracker))

	onTime, moodDays = 3, 3
	r.Apply(context.Background(), reminderEvt)
	r.Apply(context.Background(), moodEvt)
	assert.True(t, u.IsUnlocked(achievement.GoodHabits))
	assert.True(t, u.IsUnlocked(achievement.MoodTracker))
}

func TestRules_RunStopsWhenChannelCloses(t *testing.T) {
	u := newFakeUnlocker()
	r := newTestRules(u, fakeHistory{})
	ch := make(chan events.NotificationAccepted, 2)
	ch <- userEvent("a bedtime story please")
	close(ch)

	assert.NoError(t, r.Run(context.Background(), ch))
	assert.True(t, u.IsUnlocked(achievement.BedtimeStory))
	assert.Equal(t, achievement.FirstChat, u.calls[0])
}
