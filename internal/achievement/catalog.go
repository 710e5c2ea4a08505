package achievement

import "time"

// Catalog ids.
const (
	FirstChat        = "first-chat"
	Consistent       = "consistent"
	BedtimeStory     = "bedtime-story"
	GoodHabits       = "good-habits"
	MoodTracker      = "mood-tracker"
	DeepConversation = "deep-conversation"
)

// Achievement is one catalog entry with its unlock state. JSON keys match achievements.json.
type Achievement struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Icon         string     `json:"icon"`
	IsUnlocked   bool       `json:"isUnlocked"`
	UnlockedDate *time.Time `json:"unlockedDate,omitempty"`
}

func (a Achievement) clone() Achievement {
	if a.UnlockedDate != nil {
		d := *a.UnlockedDate
		a.UnlockedDate = &d
	}
	return a
}

var catalog = []Achievement{
	{ID: FirstChat, Title: "First Chat", Description: "Had your first conversation", Icon: "💬"},
	{ID: Consistent, Title: "Consistent Companion", Description: "Chat on 3 days in a row", Icon: "📅"},
	{ID: BedtimeStory, Title: "Bedtime Story", Description: "Ask for a bedtime story", Icon: "📚"},
	{ID: GoodHabits, Title: "Good Habits", Description: "Complete 3 reminders on time", Icon: "⭐"},
	{ID: MoodTracker, Title: "Mood Tracker", Description: "Record your mood on 3 different days", Icon: "📊"},
	{ID: DeepConversation, Title: "Deep Conversation", Description: "Have a long conversation (more than 10 messages)", Icon: "❤️"},
}

// Catalog returns the fixed achievement catalog, all locked.
func Catalog() []Achievement {
	out := make([]Achievement, len(catalog))
	copy(out, catalog)
	return out
}

// Reconcile merges persisted unlock state onto catalog by id. Catalog order and text win,
// catalog entries missing from persisted stay locked and unknown persisted ids are dropped.
func Reconcile(catalog, persisted []Achievement) []Achievement {
	byID := make(map[string]Achievement, len(persisted))
	for _, p := range persisted {
		byID[p.ID] = p
	}

	merged := make([]Achievement, len(catalog))
	for i, c := range catalog {
		c.IsUnlocked = false
		c.UnlockedDate = nil
		if p, ok := byID[c.ID]; ok && p.IsUnlocked {
			c.IsUnlocked = true
			c.UnlockedDate = p.clone().UnlockedDate
		}
		merged[i] = c
	}
	return merged
}
