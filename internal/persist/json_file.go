package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	ferrors "git.home.luguber.info/inful/companion/internal/foundation/errors"
	"git.home.luguber.info/inful/companion/internal/logfields"
	"git.home.luguber.info/inful/companion/internal/retry"
)

// Load reads path into a T. The fallback is returned when the file is absent, unreadable,
// empty or fails to parse. A file that fails to parse is renamed aside to
// <path>.corrupt-<unix> so the next Save does not overwrite it.
func Load[T any](path string, fallback func() T) T {
	v, _ := LoadWithStatus(path, fallback)
	return v
}

// LoadWithStatus is Load that also reports whether the value came from the file. It is false
// whenever the fallback was used.
func LoadWithStatus[T any](path string, fallback func() T) (T, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Failed to read data file, using defaults", logfields.Path(path), logfields.Error(err))
		}
		return fallback(), false
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return fallback(), false
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		aside := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
		slog.Warn("Data file is corrupt, using defaults",
			logfields.Path(path),
			slog.String("moved_to", aside),
			logfields.Error(err))
		if rerr := os.Rename(path, aside); rerr != nil {
			slog.Warn("Failed to move corrupt data file aside", logfields.Path(path), logfields.Error(rerr))
		}
		return fallback(), false
	}
	return v, true
}

// Save writes value to path with the default retry policy.
func Save[T any](path string, value T) error {
	return SaveWithPolicy(context.Background(), path, value, retry.DefaultPolicy())
}

// SaveWithPolicy writes value to path atomically, retrying transient failures per policy.
func SaveWithPolicy[T any](ctx context.Context, path string, value T, policy retry.Policy) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "marshal data file").
			WithContext("path", path).
			Build()
	}
	data = append(data, '\n')

	return policy.Do(ctx, func(attempt int) error {
		if attempt > 0 {
			slog.Debug("Retrying data file write", logfields.Path(path), logfields.Attempt(attempt))
		}
		if err := writeAtomic(path, data); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryPersistence, "write data file").
				Retryable().
				WithContext("path", path).
				WithContext("attempt", attempt).
				Build()
		}
		return nil
	})
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	tempPath := path + ".tmp"
	f, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
