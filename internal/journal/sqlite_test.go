package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_AppendAndRange(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, src := range []string{"user", "reminder", "mood", "notifier"} {
		require.NoError(t, s.Append(ctx, Record{
			Seq:       uint64(i + 1),
			Source:    src,
			Text:      src + " text",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	got, err := s.Range(ctx, base.Add(time.Minute), base.Add(2*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "reminder", got[0].Source)
	assert.Equal(t, uint64(2), got[0].Seq)
	assert.Equal(t, "mood text", got[1].Text)
	assert.True(t, got[1].Timestamp.Equal(base.Add(2*time.Minute)))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestStore_RangeEmpty(t *testing.T) {
	s := openMemory(t)
	got, err := s.Range(context.Background(), time.Unix(0, 0), time.Now())
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestStore_RecentOrderAndFilter(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	now := time.Now()

	sources := []string{"user", "reminder", "user", "achievement", "reminder"}
	for i, src := range sources {
		require.NoError(t, s.Append(ctx, Record{Seq: uint64(i + 1), Source: src, Text: src, Timestamp: now}))
	}

	last3, err := s.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, last3, 3)
	assert.Equal(t, []uint64{3, 4, 5}, []uint64{last3[0].Seq, last3[1].Seq, last3[2].Seq})

	reminders, err := s.Recent(ctx, 10, "reminder", "achievement")
	require.NoError(t, err)
	require.Len(t, reminders, 3)
	assert.Equal(t, uint64(2), reminders[0].Seq)
	assert.Equal(t, uint64(5), reminders[2].Seq)

	none, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "journal.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, Record{Seq: 1, Source: "system", Text: "hello", Timestamp: time.Now()}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_AppendAfterCloseIsClassified(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	err = s.Append(context.Background(), Record{Seq: 1, Source: "user", Text: "x", Timestamp: time.Now()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAppendFailed))
}
