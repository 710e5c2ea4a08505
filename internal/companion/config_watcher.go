package companion

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/companion/internal/config"
	ferrors "git.home.luguber.info/inful/companion/internal/foundation/errors"
	"git.home.luguber.info/inful/companion/internal/logfields"
)

const defaultDebounce = 2 * time.Second

// ApplyFunc receives a freshly loaded configuration.
type ApplyFunc func(ctx context.Context, cfg *config.Config) error

// ConfigWatcher monitors the configuration file and applies debounced reloads.
type ConfigWatcher struct {
	configPath   string
	apply        ApplyFunc
	watcher      *fsnotify.Watcher
	reloadChan   chan struct{}
	debounceTime time.Duration
}

// NewConfigWatcher creates a watcher for configPath. A zero debounce uses two seconds.
func NewConfigWatcher(configPath string, apply ApplyFunc, debounce time.Duration) (*ConfigWatcher, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to resolve config path").
			WithContext("path", configPath).Build()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRuntime, "failed to create file watcher").Build()
	}

	// Watch the directory; editors often replace the file instead of writing it.
	configDir := filepath.Dir(absPath)
	if err := watcher.Add(configDir); err != nil {
		_ = watcher.Close()
		return nil, ferrors.WrapError(err, ferrors.CategoryRuntime, "failed to watch config directory").
			WithContext("dir", configDir).Build()
	}

	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &ConfigWatcher{
		configPath:   absPath,
		apply:        apply,
		watcher:      watcher,
		reloadChan:   make(chan struct{}, 1),
		debounceTime: debounce,
	}, nil
}

// Run blocks until ctx is done, then closes the underlying watcher.
func (cw *ConfigWatcher) Run(ctx context.Context) error {
	slog.Info("Starting configuration watcher", logfields.Path(cw.configPath))
	defer func() {
		if err := cw.watcher.Close(); err != nil {
			slog.Error("Error closing file watcher", logfields.Error(err))
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		cw.reloadLoop(ctx)
	}()
	cw.watchLoop(ctx)
	<-done
	return nil
}

func (cw *ConfigWatcher) watchLoop(ctx context.Context) {
	configFile := filepath.Base(cw.configPath)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configFile {
				continue
			}

			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create), event.Has(fsnotify.Rename):
				slog.Debug("Config file change detected", logfields.Path(event.Name), slog.String("op", event.Op.String()))
				cw.triggerReload()
			case event.Has(fsnotify.Remove):
				slog.Warn("Config file removed", logfields.Path(event.Name))
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Config watcher error", logfields.Error(err))
		}
	}
}

// reloadLoop restarts the debounce timer on every trigger and reloads when it fires.
func (cw *ConfigWatcher) reloadLoop(ctx context.Context) {
	timer := time.NewTimer(cw.debounceTime)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.reloadChan:
			timer.Reset(cw.debounceTime)
		case <-timer.C:
			if err := cw.performReload(ctx); err != nil {
				slog.Error("Failed to reload configuration", logfields.Error(err))
			}
		}
	}
}

func (cw *ConfigWatcher) triggerReload() {
	select {
	case cw.reloadChan <- struct{}{}:
	default:
	}
}

func (cw *ConfigWatcher) performReload(ctx context.Context) error {
	slog.Info("Reloading configuration", logfields.Path(cw.configPath))

	cfg, err := config.Load(cw.configPath)
	if err != nil {
		return err
	}
	if err := cw.apply(ctx, cfg); err != nil {
		return err
	}

	slog.Info("Configuration reloaded successfully")
	return nil
}
