package appstate

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/companion/internal/retry"
	"git.home.luguber.info/inful/companion/internal/timeline"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	defaults := State{NotifierRatePerHour: 12, ContextWindowLength: 4}
	st := Load(filepath.Join(t.TempDir(), FileName), defaults)

	assert.Equal(t, 12, st.NotifierRatePerHour)
	assert.Equal(t, 4, st.ContextWindowLength)
	assert.NotNil(t, st.ChatHistory)
	assert.Empty(t, st.ChatHistory)
}

func TestLoad_FileValuesWin(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	body := `{"chatHistory": [], "notifierRatePerHour": 0, "contextWindowLength": 20}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	st := Load(path, Default())
	assert.Equal(t, 0, st.NotifierRatePerHour, "explicit zero disables the notifier")
	assert.Equal(t, 20, st.ContextWindowLength)
}

func TestLoad_LegacyMessagesRenumbered(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	body := `{"ChatHistory": [
		{"Content": "hello", "Timestamp": "2026-01-01T10:00:00Z"},
		{"Content": "hi", "Timestamp": "2026-01-01T10:00:01Z", "source": "companion"}
	]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	st := Load(path, Default())
	require.Len(t, st.ChatHistory, 2)
	assert.Equal(t, uint64(1), st.ChatHistory[0].Seq)
	assert.Equal(t, uint64(2), st.ChatHistory[1].Seq)
	assert.Equal(t, "user", st.ChatHistory[0].Source)
	assert.Equal(t, "companion", st.ChatHistory[1].Source)
	assert.Equal(t, DefaultNotifierRate, st.NotifierRatePerHour)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	ts := time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)
	entries := []timeline.Entry{
		{Seq: 1, Text: "hello", Source: timeline.SourceUser, Timestamp: ts},
		{Seq: 2, Text: "Reminder: x - y", Source: timeline.SourceReminder, Timestamp: ts.Add(time.Second)},
	}
	st := State{ChatHistory: FromEntries(entries), NotifierRatePerHour: 7, ContextWindowLength: 3}

	require.NoError(t, Save(context.Background(), path, st, retry.DefaultPolicy()))

	loaded := Load(path, Default())
	assert.Equal(t, st, loaded)
	assert.Equal(t, entries, loaded.Entries())
}

func TestContextMessages(t *testing.T) {
	st := State{ContextWindowLength: 2, ChatHistory: []Message{
		{Seq: 1, Content: "a", Source: "user"},
		{Seq: 2, Content: "b", Source: "companion"},
		{Seq: 3, Content: "Reminder", Source: "reminder"},
		{Seq: 4, Content: "c", Source: "user"},
	}}

	got := st.ContextMessages()
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Content)
	assert.Equal(t, "c", got[1].Content)
}
