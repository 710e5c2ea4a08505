package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultConfigFile is the configuration file looked up when no path is given.
const DefaultConfigFile = "companion.yaml"

const (
	// MaxMessagesPerHour bounds the ambient notifier rate.
	MaxMessagesPerHour     = 30
	DefaultMessagesPerHour = 5
	DefaultContextWindow   = 10
	DefaultCheckInterval   = 30 * time.Second
)

// Config represents the application configuration.
type Config struct {
	DataDir             string            `yaml:"data_dir"              env:"COMPANION_DATA_DIR"`
	ContextWindowLength int               `yaml:"context_window_length" env:"COMPANION_CONTEXT_WINDOW_LENGTH" env-default:"10"`
	Notifier            NotifierConfig    `yaml:"notifier"`
	Reminders           RemindersConfig   `yaml:"reminders"`
	Persistence         PersistenceConfig `yaml:"persistence"`
	Journal             JournalConfig     `yaml:"journal"`
	Logging             LoggingConfig     `yaml:"logging"`
	Metrics             MetricsConfig     `yaml:"metrics"`
}

// NotifierConfig configures the ambient periodic message injector.
type NotifierConfig struct {
	MessagesPerHour int      `yaml:"messages_per_hour" env:"COMPANION_NOTIFIER_RATE"     env-default:"5"`
	Messages        []string `yaml:"messages"          env:"COMPANION_NOTIFIER_MESSAGES" env-separator:"|"`
}

// RemindersConfig configures the reminder due-check job.
type RemindersConfig struct {
	CheckInterval time.Duration `yaml:"check_interval" env:"COMPANION_REMINDER_CHECK_INTERVAL" env-default:"30s"`
}

// PersistenceConfig controls how store writes are retried.
type PersistenceConfig struct {
	RetryBackoff string        `yaml:"retry_backoff"       env:"COMPANION_PERSIST_RETRY_BACKOFF" env-default:"linear"`
	RetryInitial time.Duration `yaml:"retry_initial_delay" env:"COMPANION_PERSIST_RETRY_INITIAL" env-default:"50ms"`
	RetryMax     time.Duration `yaml:"retry_max_delay"     env:"COMPANION_PERSIST_RETRY_MAX"     env-default:"1s"`
	MaxRetries   int           `yaml:"max_retries"         env:"COMPANION_PERSIST_MAX_RETRIES"   env-default:"2"`
}

// JournalConfig configures the SQLite notification journal.
type JournalConfig struct {
	Disabled bool   `yaml:"disabled" env:"COMPANION_JOURNAL_DISABLED"`
	Path     string `yaml:"path"     env:"COMPANION_JOURNAL_PATH"`
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	Level  string `yaml:"level"  env:"COMPANION_LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"COMPANION_LOG_FORMAT" env-default:"text"`
}

// MetricsConfig configures the optional Prometheus endpoint. Empty Listen disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen" env:"COMPANION_METRICS_LISTEN"`
}

// DefaultMessages is the ambient message pool used when none is configured.
var DefaultMessages = []string{
	"Just checking in. How are you doing?",
	"Remember to take a short break and stretch.",
	"Have you had some water recently?",
	"I'm here whenever you want to talk.",
	"You're doing great today.",
}

// Default returns the configuration used when no file exists and no environment overrides apply.
func Default() Config {
	cfg := Config{
		ContextWindowLength: DefaultContextWindow,
		Notifier: NotifierConfig{
			MessagesPerHour: DefaultMessagesPerHour,
		},
		Reminders: RemindersConfig{CheckInterval: DefaultCheckInterval},
		Persistence: PersistenceConfig{
			RetryBackoff: string(RetryBackoffLinear),
			RetryInitial: 50 * time.Millisecond,
			RetryMax:     time.Second,
			MaxRetries:   2,
		},
		Logging: LoggingConfig{Level: string(LogLevelInfo), Format: string(LogFormatText)},
	}
	_ = Normalize(&cfg)
	return cfg
}

// DefaultDataDir returns the per-user data directory.
func DefaultDataDir() string {
	if xdg := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdg != "" {
		return filepath.Join(xdg, "companion")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "companion-data")
	}
	return filepath.Join(home, ".local", "share", "companion")
}

// Path joins name onto the data directory.
func (c *Config) Path(name string) string {
	return filepath.Join(c.DataDir, name)
}

// JournalPath resolves the journal database location.
func (c *Config) JournalPath() string {
	if c.Journal.Path != "" {
		return c.Journal.Path
	}
	return c.Path("journal.db")
}
