package notifier

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/companion/internal/scheduler"
	"git.home.luguber.info/inful/companion/internal/timeline"
)

type fakeSink struct {
	mu      sync.Mutex
	entries []timeline.Entry
}

func (f *fakeSink) Emit(text string, source timeline.Source) timeline.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := timeline.Entry{Seq: uint64(len(f.entries) + 1), Text: text, Source: source}
	f.entries = append(f.entries, e)
	return e
}

func (f *fakeSink) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

func newScheduler(t *testing.T) *scheduler.Scheduler {
	t.Helper()
	s, err := scheduler.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
	return s
}

func TestNew_SchedulesAtRate(t *testing.T) {
	sched := newScheduler(t)
	n, err := New("ambient", sched, &fakeSink{}, 5, []string{"hi"})
	require.NoError(t, err)

	assert.True(t, n.Running())
	assert.Equal(t, 5, n.Rate())
	assert.Equal(t, 12*time.Minute, n.Interval())
	assert.Equal(t, 1, sched.JobCount("ambient"))
}

func TestSetRate_ReplacesJob(t *testing.T) {
	sched := newScheduler(t)
	sched.Start(context.Background())

	n, err := New("ambient", sched, &fakeSink{}, 5, []string{"hi"})
	require.NoError(t, err)

	require.NoError(t, n.SetRate(10))
	assert.Equal(t, 6*time.Minute, n.Interval())
	assert.Equal(t, 1, sched.JobCount("ambient"))
	assert.Equal(t, 1, sched.JobCount("notifier"))

	for _, r := range []int{3, 30, 7} {
		require.NoError(t, n.SetRate(r))
	}
	assert.Equal(t, 1, sched.JobCount("ambient"))
	assert.Equal(t, time.Hour/7, n.Interval())
}

func TestRateClamping(t *testing.T) {
	sched := newScheduler(t)
	n, err := New("ambient", sched, &fakeSink{}, 100, []string{"hi"})
	require.NoError(t, err)

	assert.Equal(t, MaxRate, n.Rate())
	assert.Equal(t, 2*time.Minute, n.Interval())
}

func TestDisabledWhenRateZeroOrPoolEmpty(t *testing.T) {
	sched := newScheduler(t)

	n, err := New("ambient", sched, &fakeSink{}, 0, []string{"hi"})
	require.NoError(t, err)
	assert.False(t, n.Running())
	assert.Equal(t, time.Duration(0), n.Interval())
	assert.Equal(t, 0, sched.JobCount("ambient"))

	require.NoError(t, n.SetRate(4))
	assert.True(t, n.Running())

	require.NoError(t, n.SetMessages([]string{"  ", ""}))
	assert.False(t, n.Running())
	assert.Equal(t, 0, sched.JobCount("ambient"))

	require.NoError(t, n.Configure(-1, []string{"back"}))
	assert.False(t, n.Running())
	assert.Equal(t, 0, n.Rate())
}

func TestTick_RequiresConversation(t *testing.T) {
	sched := newScheduler(t)
	sink := &fakeSink{}
	n, err := New("ambient", sched, sink, 5, []string{"a", "b", "c"}, WithPicker(func(int) int { return 1 }))
	require.NoError(t, err)

	assert.False(t, n.Tick(context.Background()), "empty timeline gets no ambient message")

	sink.Emit("hello", timeline.SourceUser)
	assert.True(t, n.Tick(context.Background()))
	require.Equal(t, 2, sink.Len())
	assert.Equal(t, "b", sink.entries[1].Text)
	assert.Equal(t, timeline.SourceNotifier, sink.entries[1].Source)
}

func TestClose(t *testing.T) {
	sched := newScheduler(t)
	sink := &fakeSink{}
	sink.Emit("hello", timeline.SourceUser)

	n, err := New("ambient", sched, sink, 5, []string{"a"})
	require.NoError(t, err)

	require.NoError(t, n.Close())
	require.NoError(t, n.Close())
	assert.False(t, n.Running())
	assert.Equal(t, 0, sched.JobCount("ambient"))
	assert.False(t, n.Tick(context.Background()))
	assert.Error(t, n.SetRate(10))
}

func TestScheduledTicksEmit(t *testing.T) {
	sched := newScheduler(t)
	sink := &fakeSink{}
	sink.Emit("hello", timeline.SourceUser)

	n, err := New("ambient", sched, sink, 5, []string{"ping"})
	require.NoError(t, err)
	// Exercise the job path with a short interval through the scheduler directly.
	h, err := sched.Every("fast", 10*time.Millisecond, func(ctx context.Context) { n.Tick(ctx) })
	require.NoError(t, err)
	defer func() { _ = sched.Cancel(h) }()

	sched.Start(context.Background())
	require.Eventually(t, func() bool { return sink.Len() >= 3 }, 2*time.Second, 5*time.Millisecond)
}
