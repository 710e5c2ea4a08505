package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyReminderID    = "reminder_id"
	KeyAchievementID = "achievement_id"
	KeyMood          = "mood"
	KeySource        = "source"
	KeyStore         = "store"
	KeyPath          = "path"
	KeyNotifier      = "notifier"
	KeyRate          = "messages_per_hour"
	KeyInterval      = "interval"
	KeySeq           = "seq"
	KeyJobName       = "job_name"
	KeyJobID         = "job_id"
	KeyCount         = "count"
	KeyAttempt       = "attempt"
	KeyDurationMS    = "duration_ms"
	KeyError         = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func ReminderID(id string) slog.Attr      { return slog.String(KeyReminderID, id) }
func AchievementID(id string) slog.Attr   { return slog.String(KeyAchievementID, id) }
func Mood(m string) slog.Attr             { return slog.String(KeyMood, m) }
func Source(s string) slog.Attr           { return slog.String(KeySource, s) }
func Store(name string) slog.Attr         { return slog.String(KeyStore, name) }
func Path(p string) slog.Attr             { return slog.String(KeyPath, p) }
func Notifier(name string) slog.Attr      { return slog.String(KeyNotifier, name) }
func Rate(perHour int) slog.Attr          { return slog.Int(KeyRate, perHour) }
func Interval(d time.Duration) slog.Attr  { return slog.String(KeyInterval, d.String()) }
func Seq(n uint64) slog.Attr              { return slog.Uint64(KeySeq, n) }
func JobName(n string) slog.Attr          { return slog.String(KeyJobName, n) }
func JobID(id string) slog.Attr           { return slog.String(KeyJobID, id) }
func Count(n int) slog.Attr               { return slog.Int(KeyCount, n) }
func Attempt(n int) slog.Attr             { return slog.Int(KeyAttempt, n) }
func DurationMS(ms float64) slog.Attr     { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
