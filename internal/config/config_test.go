package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/companion/internal/foundation/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "companion.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/xdg/companion", cfg.DataDir)
	assert.Equal(t, DefaultMessagesPerHour, cfg.Notifier.MessagesPerHour)
	assert.Equal(t, DefaultContextWindow, cfg.ContextWindowLength)
	assert.Equal(t, DefaultCheckInterval, cfg.Reminders.CheckInterval)
	assert.Equal(t, DefaultMessages, cfg.Notifier.Messages)
	assert.Equal(t, string(RetryBackoffLinear), cfg.Persistence.RetryBackoff)
	assert.Equal(t, 50*time.Millisecond, cfg.Persistence.RetryInitial)
	assert.False(t, cfg.Journal.Disabled)
}

func TestLoad_FileValuesAndClamping(t *testing.T) {
	path := writeConfig(t, `
data_dir: /var/lib/companion
context_window_length: 20
notifier:
  messages_per_hour: 50
  messages:
    - "  hello there "
    - ""
reminders:
  check_interval: 5s
persistence:
  retry_backoff: EXPONENTIAL
logging:
  level: DEBUG
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/companion", cfg.DataDir)
	assert.Equal(t, 20, cfg.ContextWindowLength)
	assert.Equal(t, MaxMessagesPerHour, cfg.Notifier.MessagesPerHour)
	assert.Equal(t, []string{"hello there"}, cfg.Notifier.Messages)
	assert.Equal(t, 5*time.Second, cfg.Reminders.CheckInterval)
	assert.Equal(t, string(RetryBackoffExponential), cfg.Persistence.RetryBackoff)
	assert.Equal(t, string(LogLevelDebug), cfg.Logging.Level)
	assert.Equal(t, string(LogFormatJSON), cfg.Logging.Format)
	assert.Equal(t, "/var/lib/companion/journal.db", cfg.JournalPath())
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "notifier:\n  messages_per_hour: 3\n")
	t.Setenv("COMPANION_NOTIFIER_RATE", "12")
	t.Setenv("COMPANION_NOTIFIER_MESSAGES", "one|two")
	t.Setenv("COMPANION_DATA_DIR", "/data")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Notifier.MessagesPerHour)
	assert.Equal(t, []string{"one", "two"}, cfg.Notifier.Messages)
	assert.Equal(t, "/data", cfg.DataDir)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "notifier: [unclosed\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestNormalize_NegativeRateDisables(t *testing.T) {
	cfg := Config{Notifier: NotifierConfig{MessagesPerHour: -4}, DataDir: "/x"}
	warnings := Normalize(&cfg)

	assert.Equal(t, 0, cfg.Notifier.MessagesPerHour)
	assert.NotEmpty(t, warnings)
}

func TestInit_WritesLoadableDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg")
	path := filepath.Join(t.TempDir(), "nested", "companion.yaml")

	require.NoError(t, Init(path, false))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)

	err = Init(path, false)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))

	require.NoError(t, Init(path, true))
}

func TestLoggingConfig_SlogLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", LoggingConfig{Level: "debug"}.SlogLevel().String())
	assert.Equal(t, "WARN", LoggingConfig{Level: "Warning"}.SlogLevel().String())
	assert.Equal(t, "INFO", LoggingConfig{Level: "nonsense"}.SlogLevel().String())
}
