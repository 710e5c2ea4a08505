package timeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/companion/internal/events"
	"git.home.luguber.info/inful/companion/internal/journal"
)

type memJournal struct {
	mu      sync.Mutex
	records []journal.Record
	fail    bool
}

func (m *memJournal) Append(_ context.Context, r journal.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("disk full")
	}
	m.records = append(m.records, r)
	return nil
}

func (m *memJournal) seqs() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]uint64, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r.Seq)
	}
	return out
}

func startSink(t *testing.T, s *Sink) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestSink_EmitAssignsSequenceAndTimestamp(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	s := NewSink(WithClock(clock))

	a := s.Emit("hello", SourceUser)
	clock.Advance(time.Second)
	b := s.Emit("hi there", SourceCompanion)

	assert.Equal(t, uint64(1), a.Seq)
	assert.Equal(t, uint64(2), b.Seq)
	assert.Equal(t, clock.Now(), b.Timestamp)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []Entry{a, b}, s.Snapshot())
}

func TestSink_EmitDoesNotBlockWithoutConsumer(t *testing.T) {
	s := NewSink()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			s.Emit("x", SourceNotifier)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked without a running consumer")
	}
	assert.Equal(t, 1000, s.Len())
}

func TestSink_DeliversInAcceptanceOrder(t *testing.T) {
	j := &memJournal{}
	bus := events.NewBus()
	defer bus.Close()
	ch, unsubscribe := events.Subscribe[events.NotificationAccepted](bus, 512)
	defer unsubscribe()

	s := NewSink(WithJournal(j), WithPublisher(bus))
	startSink(t, s)

	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				s.Emit(fmt.Sprintf("p%d-%d", p, i), SourceReminder)
			}
		}(p)
	}
	wg.Wait()

	require.Eventually(t, func() bool { return s.Delivered() == 400 }, 2*time.Second, 5*time.Millisecond)

	seqs := j.seqs()
	require.Len(t, seqs, 400)
	for i, seq := range seqs {
		require.Equal(t, uint64(i+1), seq)
	}

	snapshot := s.Snapshot()
	for i := range snapshot {
		evt := <-ch
		require.Equal(t, snapshot[i].Seq, evt.Seq)
		require.Equal(t, snapshot[i].Text, evt.Text)
		require.Equal(t, "reminder", evt.Source)
	}
}

func TestSink_JournalFailureDoesNotStopDelivery(t *testing.T) {
	j := &memJournal{fail: true}
	bus := events.NewBus()
	defer bus.Close()
	ch, unsubscribe := events.Subscribe[events.NotificationAccepted](bus, 4)
	defer unsubscribe()

	s := NewSink(WithJournal(j), WithPublisher(bus))
	startSink(t, s)

	s.Emit("still delivered", SourceSystem)

	select {
	case evt := <-ch:
		assert.Equal(t, "still delivered", evt.Text)
	case <-time.After(time.Second):
		t.Fatal("notification not published")
	}
}

func TestSink_SeedIsNotRedelivered(t *testing.T) {
	j := &memJournal{}
	s := NewSink(WithJournal(j))

	history := []Entry{
		{Seq: 4, Text: "old one", Source: SourceUser},
		{Seq: 9, Text: "old two", Source: SourceCompanion},
	}
	require.NoError(t, s.Seed(history))
	assert.Equal(t, uint64(9), s.Delivered())

	startSink(t, s)
	next := s.Emit("new", SourceUser)
	assert.Equal(t, uint64(10), next.Seq)

	require.Eventually(t, func() bool { return s.Delivered() == 10 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []uint64{10}, j.seqs())
	assert.Equal(t, 3, s.Len())
}

func TestSink_SeedRejectsNonEmptyTimeline(t *testing.T) {
	s := NewSink()
	s.Emit("first", SourceUser)
	require.Error(t, s.Seed([]Entry{{Seq: 1}}))
}

func TestSink_RunDrainsOnCancel(t *testing.T) {
	j := &memJournal{}
	s := NewSink(WithJournal(j))
	s.Emit("a", SourceUser)
	s.Emit("b", SourceUser)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.Run(ctx))

	assert.Equal(t, []uint64{1, 2}, j.seqs())
}

func TestSink_CanceledRunDeliversEveryPendingEntry(t *testing.T) {
	j, err := journal.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	const rounds = 200
	for i := range rounds {
		bus := events.NewBus()
		ch, unsub := events.Subscribe[events.NotificationAccepted](bus, 1)

		s := NewSink(WithJournal(j), WithPublisher(bus))
		s.Emit(fmt.Sprintf("entry %d", i), SourceUser)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.NoError(t, s.Run(ctx))

		select {
		case evt := <-ch:
			require.Equal(t, fmt.Sprintf("entry %d", i), evt.Text)
		default:
			t.Fatalf("round %d: entry was not published", i)
		}
		require.Equal(t, uint64(1), s.Delivered())
		unsub()
		bus.Close()
	}

	n, err := j.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, rounds, n)
}

func TestSink_DrainDeliversWithoutRun(t *testing.T) {
	j := &memJournal{}
	bus := events.NewBus()
	ch, unsub := events.Subscribe[events.NotificationAccepted](bus, 4)
	defer unsub()

	s := NewSink(WithJournal(j), WithPublisher(bus))
	s.Emit("a", SourceUser)
	s.Emit("b", SourceMood)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Drain(ctx)

	assert.Equal(t, []uint64{1, 2}, j.seqs())
	assert.Len(t, ch, 2)
	assert.Equal(t, uint64(2), s.Delivered())
}

func TestSink_SinceAndTail(t *testing.T) {
	s := NewSink()
	for i := 0; i < 5; i++ {
		s.Emit(fmt.Sprint(i), SourceUser)
	}

	since := s.Since(3)
	require.Len(t, since, 2)
	assert.Equal(t, uint64(4), since[0].Seq)
	assert.Len(t, s.Since(0), 5)
	assert.Empty(t, s.Since(5))

	tail := s.Tail(2)
	require.Len(t, tail, 2)
	assert.Equal(t, "3", tail[0].Text)
	assert.Empty(t, s.Tail(0))
	assert.Len(t, s.Tail(50), 5)
}
