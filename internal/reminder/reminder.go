package reminder

import (
	"slices"
	"strings"
	"time"

	ferrors "git.home.luguber.info/inful/companion/internal/foundation/errors"
	"git.home.luguber.info/inful/companion/internal/foundation/normalization"
)

// Recurrence is the persisted recurrence pattern. Values other than the known constants are
// Unknown: they are kept verbatim in the file and fire once like a non-recurring reminder.
type Recurrence string

const (
	RecurrenceNone   Recurrence = ""
	RecurrenceDaily  Recurrence = "Daily"
	RecurrenceWeekly Recurrence = "Weekly"
)

var recurrenceNormalizer = normalization.NewEnumNormalizer("recurrence pattern", map[string]Recurrence{
	"":       RecurrenceNone,
	"none":   RecurrenceNone,
	"daily":  RecurrenceDaily,
	"weekly": RecurrenceWeekly,
}, RecurrenceNone)

// ParseRecurrence maps user input case-insensitively onto a known pattern.
// Unrecognized input is returned trimmed but otherwise unchanged.
func ParseRecurrence(raw string) Recurrence {
	if r, ok := recurrenceNormalizer.Lookup(raw); ok {
		return r
	}
	return Recurrence(strings.TrimSpace(raw))
}

// RecurrenceChoices lists the accepted non-empty spellings of a recurrence pattern.
func RecurrenceChoices() []string {
	return slices.DeleteFunc(recurrenceNormalizer.ValidValues(), func(k string) bool { return k == "" })
}

// ValidateRecurrence parses user input strictly. Unlike ParseRecurrence it rejects
// unknown patterns with a validation error listing the accepted ones.
func ValidateRecurrence(raw string) (Recurrence, error) {
	r, err := recurrenceNormalizer.NormalizeWithValidation(raw)
	if err != nil {
		return RecurrenceNone, ferrors.WrapError(err, ferrors.CategoryValidation, "unknown recurrence pattern").
			UserAction().
			WithContext("pattern", raw).
			WithContext("valid", strings.Join(RecurrenceChoices(), ", ")).
			Build()
	}
	return r, nil
}

// Known reports whether r is None, Daily or Weekly.
func (r Recurrence) Known() bool {
	_, ok := recurrenceNormalizer.Lookup(string(r))
	return ok
}

// Next returns the due time following due, or false when r does not repeat.
func (r Recurrence) Next(due time.Time) (time.Time, bool) {
	switch ParseRecurrence(string(r)) {
	case RecurrenceDaily:
		return due.AddDate(0, 0, 1), true
	case RecurrenceWeekly:
		return due.AddDate(0, 0, 7), true
	default:
		return time.Time{}, false
	}
}

func (r Recurrence) String() string {
	if r == RecurrenceNone {
		return "None"
	}
	return string(r)
}

// Reminder is one scheduled or completed reminder. JSON keys match reminders.json.
type Reminder struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Message           string     `json:"message"`
	DueTime           time.Time  `json:"dueTime"`
	IsCompleted       bool       `json:"isCompleted"`
	IsRecurring       bool       `json:"isRecurring"`
	RecurrencePattern Recurrence `json:"recurrencePattern"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
}

// CompletedOnTime reports whether the reminder was completed no later than its due time.
func (r Reminder) CompletedOnTime() bool {
	return r.IsCompleted && r.CompletedAt != nil && !r.CompletedAt.After(r.DueTime)
}

func (r *Reminder) complete(at time.Time) {
	r.IsCompleted = true
	r.CompletedAt = &at
}

// fire applies one due-check transition: advance a recurring reminder by its period,
// or complete it when it does not repeat.
func (r *Reminder) fire(now time.Time) {
	if r.IsRecurring {
		if next, ok := r.RecurrencePattern.Next(r.DueTime); ok {
			r.DueTime = next
			return
		}
	}
	r.complete(now)
}

func (r Reminder) clone() Reminder {
	if r.CompletedAt != nil {
		at := *r.CompletedAt
		r.CompletedAt = &at
	}
	return r
}
