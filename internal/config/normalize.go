package config

import (
	"fmt"
	"strings"
)

// Normalize fills defaults and clamps out-of-range values in place.
// It returns human-readable warnings for every value it had to change.
func Normalize(cfg *Config) []string {
	var warnings []string
	warn := func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}

	cfg.DataDir = strings.TrimSpace(cfg.DataDir)
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir()
	}

	if cfg.ContextWindowLength <= 0 {
		if cfg.ContextWindowLength < 0 {
			warn("context_window_length %d is negative, using %d", cfg.ContextWindowLength, DefaultContextWindow)
		}
		cfg.ContextWindowLength = DefaultContextWindow
	}

	switch {
	case cfg.Notifier.MessagesPerHour < 0:
		warn("notifier.messages_per_hour %d is negative, disabling", cfg.Notifier.MessagesPerHour)
		cfg.Notifier.MessagesPerHour = 0
	case cfg.Notifier.MessagesPerHour > MaxMessagesPerHour:
		warn("notifier.messages_per_hour %d exceeds %d, clamping", cfg.Notifier.MessagesPerHour, MaxMessagesPerHour)
		cfg.Notifier.MessagesPerHour = MaxMessagesPerHour
	}

	messages := cfg.Notifier.Messages[:0:0]
	for _, m := range cfg.Notifier.Messages {
		if m = strings.TrimSpace(m); m != "" {
			messages = append(messages, m)
		}
	}
	if len(messages) == 0 {
		messages = append(messages, DefaultMessages...)
	}
	cfg.Notifier.Messages = messages

	if cfg.Reminders.CheckInterval <= 0 {
		cfg.Reminders.CheckInterval = DefaultCheckInterval
	}

	mode := NormalizeRetryBackoff(cfg.Persistence.RetryBackoff)
	if mode == "" {
		if cfg.Persistence.RetryBackoff != "" {
			warn("persistence.retry_backoff %q is unknown, using %s", cfg.Persistence.RetryBackoff, RetryBackoffLinear)
		}
		mode = RetryBackoffLinear
	}
	cfg.Persistence.RetryBackoff = string(mode)
	if cfg.Persistence.MaxRetries < 0 {
		cfg.Persistence.MaxRetries = 0
	}

	level := logLevelNormalizer.NormalizeWithWarning("logging.level", cfg.Logging.Level)
	if level.Changed && cfg.Logging.Level != "" {
		warnings = append(warnings, level.Warning)
	}
	cfg.Logging.Level = string(level.Value)
	cfg.Logging.Format = string(NormalizeLogFormat(cfg.Logging.Format))

	cfg.Metrics.Listen = strings.TrimSpace(cfg.Metrics.Listen)
	return warnings
}
