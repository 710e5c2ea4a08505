package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/companion/cmd/companion/commands"
	ferrors "git.home.luguber.info/inful/companion/internal/foundation/errors"
	"git.home.luguber.info/inful/companion/internal/version"
)

func main() {
	var cli commands.CLI
	parser := kong.Parse(&cli,
		kong.Name("companion"),
		kong.Description("A local companion: reminders, mood journal, achievements and gentle check-ins."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Bind(&commands.Global{Out: os.Stdout}),
	)

	if err := parser.Run(&cli); err != nil {
		ferrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
	}
}
