package commands

import (
	"fmt"

	"git.home.luguber.info/inful/companion/internal/config"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force bool `help:"Overwrite existing configuration file"`
}

func (i *InitCmd) Run(g *Global, root *CLI) error {
	w := out(g)
	fmt.Fprintf(w, "Writing configuration to %s\n", root.Config)
	if err := config.Init(root.Config, i.Force); err != nil {
		return err
	}
	fmt.Fprintln(w, "initialized successfully")
	return nil
}
