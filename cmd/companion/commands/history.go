package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	ferrors "git.home.luguber.info/inful/companion/internal/foundation/errors"
	"git.home.luguber.info/inful/companion/internal/journal"
)

// HistoryCmd implements the 'history' command. It reads the journal directly and does not
// start the engine.
type HistoryCmd struct {
	Limit  int           `short:"n" default:"20" help:"Maximum number of notifications"`
	Source []string      `short:"s" help:"Only show these sources (user, companion, reminder, achievement, mood, notifier)"`
	Since  time.Duration `help:"Show everything from this long ago, e.g. 24h (ignores --limit and --source)"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.Journal.Disabled {
		return ferrors.ConfigError("the notification journal is disabled").Build()
	}

	j, err := journal.Open(cfg.JournalPath())
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()

	ctx := context.Background()
	var records []journal.Record
	if h.Since > 0 {
		now := time.Now()
		records, err = j.Range(ctx, now.Add(-h.Since), now)
	} else {
		records, err = j.Recent(ctx, h.Limit, h.Source...)
	}
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Fprintln(out(g), "No notifications recorded.")
		return nil
	}
	for _, r := range records {
		fmt.Fprintf(out(g), "#%-5d %-16s %-11s %s\n", r.Seq, humanize.Time(r.Timestamp), r.Source, r.Text)
	}
	return nil
}
