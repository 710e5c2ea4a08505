package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/companion/internal/companion"
)

type StatusCmd struct{}

func (s *StatusCmd) Run(g *Global, root *CLI) error {
	return withEngine(root, func(_ context.Context, e *companion.Engine) error {
		st := e.Status()
		w := out(g)
		fmt.Fprintf(w, "Messages:        %d\n", st.TimelineLength)
		fmt.Fprintf(w, "Reminders:       %d active\n", st.ActiveReminders)
		fmt.Fprintf(w, "Achievements:    %d of %d\n", st.UnlockedCount, st.AchievementCount)
		fmt.Fprintf(w, "Current mood:    %s\n", st.CurrentMood)
		if st.NotifierInterval > 0 {
			fmt.Fprintf(w, "Check-ins:       %d per hour (every %s)\n", st.NotifierRate, st.NotifierInterval)
		} else {
			fmt.Fprintln(w, "Check-ins:       off")
		}
		fmt.Fprintf(w, "Context window:  %d messages\n", st.ContextWindow)
		return nil
	})
}
