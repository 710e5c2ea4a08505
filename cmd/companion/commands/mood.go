package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"git.home.luguber.info/inful/companion/internal/companion"
	"git.home.luguber.info/inful/companion/internal/mood"
)

// MoodCmd groups the mood subcommands.
type MoodCmd struct {
	Add     MoodAddCmd     `cmd:"" help:"Record how you feel"`
	Recent  MoodRecentCmd  `cmd:"" help:"Show the most recent entries"`
	Current MoodCurrentCmd `cmd:"" help:"Show the current mood"`
	List    MoodListCmd    `cmd:"" help:"List the available moods"`
}

type MoodAddCmd struct {
	Mood string   `arg:"" help:"Mood name or icon"`
	Note []string `arg:"" optional:"" help:"Optional note"`
}

func (c *MoodAddCmd) Run(g *Global, root *CLI) error {
	return withEngine(root, func(ctx context.Context, e *companion.Engine) error {
		entry, err := e.Moods.AddEntry(ctx, c.Mood, strings.Join(c.Note, " "))
		if err != nil {
			return err
		}
		fmt.Fprintf(out(g), "Recorded %s %s\n", entry.Mood, entry.Icon())
		return nil
	})
}

type MoodRecentCmd struct {
	Count int `short:"n" default:"5" help:"Number of entries"`
}

func (c *MoodRecentCmd) Run(g *Global, root *CLI) error {
	return withEngine(root, func(_ context.Context, e *companion.Engine) error {
		entries := e.Moods.RecentEntries(c.Count)
		if len(entries) == 0 {
			fmt.Fprintln(out(g), "No mood entries yet.")
			return nil
		}
		for _, entry := range entries {
			line := fmt.Sprintf("%s %-8s %s", entry.Icon(), entry.Mood, humanize.Time(entry.Timestamp))
			if entry.Note != "" {
				line += " - " + entry.Note
			}
			fmt.Fprintln(out(g), line)
		}
		return nil
	})
}

type MoodCurrentCmd struct{}

func (c *MoodCurrentCmd) Run(g *Global, root *CLI) error {
	return withEngine(root, func(_ context.Context, e *companion.Engine) error {
		fmt.Fprintln(out(g), e.Moods.CurrentMood())
		return nil
	})
}

type MoodListCmd struct{}

func (c *MoodListCmd) Run(g *Global, _ *CLI) error {
	for _, m := range mood.Moods() {
		fmt.Fprintln(out(g), m.String())
	}
	return nil
}
