package commands

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/companion/internal/companion"
	"git.home.luguber.info/inful/companion/internal/config"
)

// Global carries state shared by every subcommand.
type Global struct {
	Out io.Writer
}

// CLI definition and global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"companion.yaml" env:"COMPANION_CONFIG"`
	DataDir string           `short:"d" name:"data-dir" help:"Override the data directory"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Init         InitCmd         `cmd:"" help:"Write a default configuration file"`
	Run          RunCmd          `cmd:"" help:"Run the companion until interrupted"`
	Say          SayCmd          `cmd:"" help:"Add a message to the conversation"`
	Remind       RemindCmd       `cmd:"" help:"Manage reminders"`
	Mood         MoodCmd         `cmd:"" help:"Record and review moods"`
	Achievements AchievementsCmd `cmd:"" help:"List or reset achievements"`
	History      HistoryCmd      `cmd:"" help:"Show journaled notifications"`
	Status       StatusCmd       `cmd:"" help:"Show a short summary"`
}

// AfterApply runs after flag parsing and installs a stderr logger until configuration is read.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelWarn
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// LoadConfig reads the configuration, applies the data directory override and reconfigures logging.
func (c *CLI) LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	if c.DataDir != "" {
		cfg.DataDir = c.DataDir
	}
	slog.SetDefault(cfg.Logging.NewLogger(os.Stderr, c.Verbose))
	return cfg, nil
}

// withEngine opens the engine for a one-shot command and closes it afterwards so pending
// notifications are journaled and the timeline is saved.
func withEngine(root *CLI, fn func(ctx context.Context, e *companion.Engine) error, opts ...companion.Option) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	e, err := companion.New(cfg, opts...)
	if err != nil {
		return err
	}

	ctx := context.Background()
	runErr := fn(ctx, e)
	if err := e.Close(ctx); err != nil && runErr == nil {
		return err
	}
	return runErr
}

func out(g *Global) io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}
