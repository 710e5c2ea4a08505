package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/companion/internal/companion"
	ferrors "git.home.luguber.info/inful/companion/internal/foundation/errors"
)

// AchievementsCmd groups the achievement subcommands.
type AchievementsCmd struct {
	List  AchievementsListCmd  `cmd:"" default:"1" help:"Show every achievement"`
	Reset AchievementsResetCmd `cmd:"" help:"Lock every achievement again"`
}

type AchievementsListCmd struct{}

func (c *AchievementsListCmd) Run(g *Global, root *CLI) error {
	return withEngine(root, func(_ context.Context, e *companion.Engine) error {
		tw := tabwriter.NewWriter(out(g), 0, 4, 2, ' ', 0)
		for _, a := range e.Achievements.Achievements() {
			state := "locked"
			if a.IsUnlocked && a.UnlockedDate != nil {
				state = "unlocked " + a.UnlockedDate.Local().Format(time.DateOnly)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.Icon, a.Title, a.Description, state)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(out(g), "%d of %d unlocked\n", e.Achievements.UnlockedCount(), len(e.Achievements.Achievements()))
		return nil
	})
}

type AchievementsResetCmd struct {
	Yes bool `short:"y" help:"Confirm the reset"`
}

func (c *AchievementsResetCmd) Run(g *Global, root *CLI) error {
	if !c.Yes {
		return ferrors.ValidationError("refusing to reset achievements without --yes").Build()
	}
	return withEngine(root, func(ctx context.Context, e *companion.Engine) error {
		e.Achievements.Reset(ctx)
		fmt.Fprintln(out(g), "Achievements reset")
		return nil
	})
}
