package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/companion/internal/foundation/errors"
	"git.home.luguber.info/inful/companion/internal/logfields"
)

// Load reads configuration from a YAML file and environment variables.
// Priority: ENV > YAML > defaults (via env-default tags). A .env file in the working
// directory is loaded first without overriding variables already set.
// A missing file is not an error; configuration then comes from ENV + defaults only.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env file", logfields.Error(err))
	}

	var cfg Config
	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "read configuration file").
				Fatal().
				WithContext("path", path).
				Build()
		}
	} else {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "stat configuration file").
				Fatal().
				WithContext("path", path).
				Build()
		}
		slog.Debug("Configuration file not found, using environment and defaults", logfields.Path(path))
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "read configuration from environment").
				Fatal().
				Build()
		}
	}

	for _, w := range Normalize(&cfg) {
		slog.Warn("Configuration adjusted", slog.String("detail", w), logfields.Path(path))
	}
	return &cfg, nil
}

// Init writes a default configuration file. An existing file is only replaced when force is set.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return ferrors.ValidationError("configuration file already exists (use --force to overwrite)").
			WithContext("path", path).
			Build()
	}

	cfg := Default()
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "marshal default configuration").Build()
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create configuration directory").
				WithContext("path", dir).
				Build()
		}
	}

	header := []byte("# companion configuration\n# Every key can be overridden with the COMPANION_* environment variables.\n")
	if err := os.WriteFile(path, append(header, data...), 0o644); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "write configuration file").
			WithContext("path", path).
			Build()
	}
	return nil
}
