// Package appstate persists the aggregate handed across the engine boundary at shutdown and
// restored at startup: chat history plus the notifier rate and context window length.
package appstate

import (
	"context"
	"time"

	"git.home.luguber.info/inful/companion/internal/persist"
	"git.home.luguber.info/inful/companion/internal/retry"
	"git.home.luguber.info/inful/companion/internal/timeline"
)

// FileName is the aggregate's file inside the data directory.
const FileName = "app_state.json"

const (
	DefaultNotifierRate  = 5
	DefaultContextWindow = 10
)

// Message is one persisted timeline entry.
type Message struct {
	Seq       uint64    `json:"seq"`
	Content   string    `json:"content"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// State is the app_state.json document.
type State struct {
	ChatHistory         []Message `json:"chatHistory"`
	NotifierRatePerHour int       `json:"notifierRatePerHour"`
	ContextWindowLength int       `json:"contextWindowLength"`
}

// fileState distinguishes absent scalars from explicit zeros.
type fileState struct {
	ChatHistory         []Message `json:"chatHistory"`
	NotifierRatePerHour *int      `json:"notifierRatePerHour"`
	ContextWindowLength *int      `json:"contextWindowLength"`
}

// Default returns an empty history with the built-in scalar defaults.
func Default() State {
	return State{
		ChatHistory:         []Message{},
		NotifierRatePerHour: DefaultNotifierRate,
		ContextWindowLength: DefaultContextWindow,
	}
}

// Load reads path. Scalars missing from the file come from defaults, which normally carry the
// settings loader's values. Messages without a usable sequence number are renumbered.
func Load(path string, defaults State) State {
	fs := persist.Load(path, func() fileState { return fileState{} })

	st := State{
		ChatHistory:         fs.ChatHistory,
		NotifierRatePerHour: defaults.NotifierRatePerHour,
		ContextWindowLength: defaults.ContextWindowLength,
	}
	if fs.NotifierRatePerHour != nil {
		st.NotifierRatePerHour = *fs.NotifierRatePerHour
	}
	if fs.ContextWindowLength != nil && *fs.ContextWindowLength > 0 {
		st.ContextWindowLength = *fs.ContextWindowLength
	}
	if st.ChatHistory == nil {
		st.ChatHistory = []Message{}
	}
	renumber(st.ChatHistory)
	for i := range st.ChatHistory {
		if st.ChatHistory[i].Source == "" {
			st.ChatHistory[i].Source = string(timeline.SourceUser)
		}
	}
	return st
}

// renumber assigns 1..n when the stored sequence is not strictly increasing.
func renumber(msgs []Message) {
	var prev uint64
	for _, m := range msgs {
		if m.Seq <= prev {
			for i := range msgs {
				msgs[i].Seq = uint64(i + 1)
			}
			return
		}
		prev = m.Seq
	}
}

// Save writes st to path.
func Save(ctx context.Context, path string, st State, policy retry.Policy) error {
	if st.ChatHistory == nil {
		st.ChatHistory = []Message{}
	}
	return persist.SaveWithPolicy(ctx, path, st, policy)
}

// FromEntries converts timeline entries into persisted messages.
func FromEntries(entries []timeline.Entry) []Message {
	out := make([]Message, len(entries))
	for i, e := range entries {
		out[i] = Message{Seq: e.Seq, Content: e.Text, Source: string(e.Source), Timestamp: e.Timestamp}
	}
	return out
}

// Entries converts persisted messages back into timeline entries for seeding.
func (s State) Entries() []timeline.Entry {
	out := make([]timeline.Entry, len(s.ChatHistory))
	for i, m := range s.ChatHistory {
		out[i] = timeline.Entry{Seq: m.Seq, Text: m.Content, Source: timeline.Source(m.Source), Timestamp: m.Timestamp}
	}
	return out
}

// ContextMessages returns the last ContextWindowLength conversational messages
// (user and companion), oldest first, as handed to the chat client.
func (s State) ContextMessages() []Message {
	out := []Message{}
	for i := len(s.ChatHistory) - 1; i >= 0 && len(out) < s.ContextWindowLength; i-- {
		m := s.ChatHistory[i]
		if m.Source == string(timeline.SourceUser) || m.Source == string(timeline.SourceCompanion) {
			out = append(out, m)
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
