package companion

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/companion/internal/config"
)

func TestConfigWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "companion.yaml")
	require.NoError(t, os.WriteFile(path, []byte("notifier:\n  messages_per_hour: 5\n"), 0o600))

	var (
		mu    sync.Mutex
		rates []int
	)
	apply := func(_ context.Context, cfg *config.Config) error {
		mu.Lock()
		defer mu.Unlock()
		rates = append(rates, cfg.Notifier.MessagesPerHour)
		return nil
	}

	w, err := NewConfigWatcher(path, apply, 50*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Several quick writes collapse into one reload.
	for _, rate := range []string{"7", "9", "12"} {
		require.NoError(t, os.WriteFile(path, []byte("notifier:\n  messages_per_hour: "+rate+"\n"), 0o600))
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(rates) > 0 && rates[len(rates)-1] == 12
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestConfigWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "companion.yaml")

	called := make(chan struct{}, 1)
	w, err := NewConfigWatcher(path, func(context.Context, *config.Config) error {
		called <- struct{}{}
		return nil
	}, 20*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o600))

	select {
	case <-called:
		t.Fatal("reload triggered by unrelated file")
	case <-time.After(200 * time.Millisecond):
	}
	assert.Empty(t, called)
}

func TestNewConfigWatcher_MissingDirectory(t *testing.T) {
	_, err := NewConfigWatcher(filepath.Join(t.TempDir(), "nope", "companion.yaml"), nil, 0)
	require.Error(t, err)
}
