package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/requireconcat/cmd/requireconcat/commands"
	ferrors "git.home.luguber.info/inful/requireconcat/internal/foundation/errors"
	"git.home.luguber.info/inful/requireconcat/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("requireconcat"),
		kong.Description("Concatenate a tree of require()-linked modules into one dependency-ordered bundle."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	global := &commands.Global{Logger: slog.Default(), Stdout: os.Stdout}
	err := parser.Run(global, cli)
	ferrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
}
