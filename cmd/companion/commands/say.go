package commands

import (
	"context"
	"fmt"
	"strings"

	"git.home.luguber.info/inful/companion/internal/companion"
)

// SayCmd implements the 'say' command.
type SayCmd struct {
	Text []string `arg:"" help:"Message text"`
}

func (s *SayCmd) Run(g *Global, root *CLI) error {
	return withEngine(root, func(ctx context.Context, e *companion.Engine) error {
		entries, err := e.Say(ctx, strings.Join(s.Text, " "))
		for _, entry := range entries {
			fmt.Fprintf(out(g), "#%d %s: %s\n", entry.Seq, entry.Source, entry.Text)
		}
		return err
	})
}
