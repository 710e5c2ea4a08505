package mood

import (
	"git.home.luguber.info/inful/companion/internal/foundation/normalization"
)

// Mood is one value of the fixed mood set.
type Mood struct {
	Name string
	Icon string
}

// DefaultIcon is the current mood of an empty log.
const DefaultIcon = "😊"

var moods = []Mood{
	{Name: "Happy", Icon: "😊"},
	{Name: "Excited", Icon: "🤩"},
	{Name: "Playful", Icon: "😋"},
	{Name: "Cozy", Icon: "🥺"},
	{Name: "Tired", Icon: "😴"},
	{Name: "Sad", Icon: "😢"},
	{Name: "Cranky", Icon: "😡"},
	{Name: "Anxious", Icon: "😰"},
}

var moodNormalizer = func() *normalization.Normalizer[Mood] {
	values := make(map[string]Mood, 2*len(moods))
	for _, m := range moods {
		values[m.Name] = m
		values[m.Icon] = m
	}
	return normalization.NewNormalizer(values, Mood{})
}()

// Moods returns the fixed mood set in display order.
func Moods() []Mood {
	out := make([]Mood, len(moods))
	copy(out, moods)
	return out
}

// Names returns the mood names in display order.
func Names() []string {
	names := make([]string, len(moods))
	for i, m := range moods {
		names[i] = m.Name
	}
	return names
}

// Parse resolves a mood by name (case-insensitive) or by icon.
func Parse(raw string) (Mood, bool) {
	return moodNormalizer.Lookup(raw)
}

func (m Mood) String() string { return m.Name + " " + m.Icon }
