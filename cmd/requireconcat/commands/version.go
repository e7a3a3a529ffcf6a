package commands

import (
	"fmt"

	"git.home.luguber.info/inful/requireconcat/internal/version"
)

// VersionCmd implements the 'version' command.
type VersionCmd struct{}

func (v *VersionCmd) Run(g *Global, _ *CLI) error {
	_, err := fmt.Fprintln(g.stdout(), version.String())
	return err
}
