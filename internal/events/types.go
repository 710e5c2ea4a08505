package events

import "time"

// Sourced is implemented by events that originate from a notification producer.
type Sourced interface {
	EventSource() string
}

// NotificationAccepted is published by the timeline's delivery loop once per entry,
// in acceptance order. It is the onNotification stream for views and rule evaluators.
type NotificationAccepted struct {
	Seq       uint64
	Text      string
	Source    string
	Timestamp time.Time
}

func (n NotificationAccepted) EventSource() string { return n.Source }

// ConfigReloaded is published after the configuration file changed and was applied.
type ConfigReloaded struct {
	Path            string
	MessagesPerHour int
	Messages        int
	ReloadedAt      time.Time
}
