package commands

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"git.home.luguber.info/inful/companion/internal/companion"
	ferrors "git.home.luguber.info/inful/companion/internal/foundation/errors"
	"git.home.luguber.info/inful/companion/internal/reminder"
)

// RemindCmd groups the reminder subcommands.
type RemindCmd struct {
	Add      RemindAddCmd      `cmd:"" help:"Schedule a reminder"`
	List     RemindListCmd     `cmd:"" help:"List reminders"`
	Complete RemindCompleteCmd `cmd:"" help:"Mark a reminder as done"`
	Delete   RemindDeleteCmd   `cmd:"" help:"Remove a reminder"`
}

type RemindAddCmd struct {
	Title   string        `arg:"" help:"Reminder title"`
	Message string        `short:"m" help:"Longer reminder text"`
	At      string        `help:"Due time: RFC3339, '2006-01-02 15:04' or '15:04' (next occurrence)"`
	In      time.Duration `help:"Due after this duration, e.g. 45m"`
	Repeat  string        `short:"r" help:"Repeat pattern: daily, weekly or none"`
}

func (c *RemindAddCmd) Run(g *Global, root *CLI) error {
	repeat, err := reminder.ValidateRecurrence(c.Repeat)
	if err != nil {
		return err
	}
	return withEngine(root, func(ctx context.Context, e *companion.Engine) error {
		due, err := parseDue(time.Now(), c.At, c.In)
		if err != nil {
			return err
		}
		id, err := e.Reminders.Add(ctx, c.Title, c.Message, due, repeat != reminder.RecurrenceNone, string(repeat))
		if err != nil {
			return err
		}
		fmt.Fprintf(out(g), "Added reminder %s due %s (%s)\n", shortID(id), due.Format(time.DateTime), humanize.Time(due))
		return nil
	})
}

// parseDue resolves the due time. Without --at or --in the reminder is due immediately.
func parseDue(now time.Time, at string, in time.Duration) (time.Time, error) {
	at = strings.TrimSpace(at)
	switch {
	case at != "" && in != 0:
		return time.Time{}, ferrors.ValidationError("use either --at or --in, not both").Build()
	case in != 0:
		return now.Add(in), nil
	case at == "":
		return now, nil
	}

	if t, err := time.Parse(time.RFC3339, at); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04", at, now.Location()); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("15:04", at, now.Location()); err == nil {
		due := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
		if !due.After(now) {
			due = due.AddDate(0, 0, 1)
		}
		return due, nil
	}
	return time.Time{}, ferrors.ValidationError("unrecognized --at time").WithContext("value", at).Build()
}

type RemindListCmd struct {
	All bool `short:"a" help:"Include completed reminders"`
}

func (c *RemindListCmd) Run(g *Global, root *CLI) error {
	return withEngine(root, func(_ context.Context, e *companion.Engine) error {
		list := e.Reminders.ActiveReminders()
		if c.All {
			list = e.Reminders.All()
		}
		if len(list) == 0 {
			fmt.Fprintln(out(g), "No reminders.")
			return nil
		}

		tw := tabwriter.NewWriter(out(g), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTITLE\tDUE\tREPEAT\tSTATUS")
		for _, r := range list {
			status := "pending"
			if r.IsCompleted {
				status = "done"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", shortID(r.ID), r.Title, humanize.Time(r.DueTime), r.RecurrencePattern, status)
		}
		return tw.Flush()
	})
}

type RemindCompleteCmd struct {
	ID string `arg:"" help:"Reminder id or unique prefix"`
}

func (c *RemindCompleteCmd) Run(g *Global, root *CLI) error {
	return withEngine(root, func(ctx context.Context, e *companion.Engine) error {
		r, err := resolveReminder(e.Reminders, c.ID)
		if err != nil {
			return err
		}
		if !e.Reminders.Complete(ctx, r.ID) {
			fmt.Fprintf(out(g), "Reminder %q was already completed\n", r.Title)
			return nil
		}
		fmt.Fprintf(out(g), "Completed %q\n", r.Title)
		return nil
	})
}

type RemindDeleteCmd struct {
	ID string `arg:"" help:"Reminder id or unique prefix"`
}

func (c *RemindDeleteCmd) Run(g *Global, root *CLI) error {
	return withEngine(root, func(ctx context.Context, e *companion.Engine) error {
		r, err := resolveReminder(e.Reminders, c.ID)
		if err != nil {
			return err
		}
		e.Reminders.Delete(ctx, r.ID)
		fmt.Fprintf(out(g), "Deleted %q\n", r.Title)
		return nil
	})
}

func resolveReminder(s *reminder.Store, prefix string) (reminder.Reminder, error) {
	prefix = strings.TrimSpace(prefix)
	if r, ok := s.Get(prefix); ok {
		return r, nil
	}
	var matches []reminder.Reminder
	if prefix != "" {
		for _, r := range s.All() {
			if strings.HasPrefix(r.ID, prefix) {
				matches = append(matches, r)
			}
		}
	}
	switch len(matches) {
	case 0:
		return reminder.Reminder{}, ferrors.NotFoundError("no reminder with that id").WithContext("id", prefix).Build()
	case 1:
		return matches[0], nil
	default:
		return reminder.Reminder{}, ferrors.ValidationError("reminder id prefix is ambiguous").
			WithContext("id", prefix).WithContext("matches", len(matches)).Build()
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
