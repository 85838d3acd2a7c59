package commands

import (
	"fmt"
	"path/filepath"

	"git.home.luguber.info/inful/docvars/internal/config"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force  bool   `help:"Overwrite existing configuration file"`
	Output string `short:"o" name:"output" help:"Directory for the generated docvars.yaml (default: --config path)"`
}

func (i *InitCmd) Run(g *Global, root *CLI) error {
	path := root.Config
	if i.Output != "" {
		path = filepath.Join(i.Output, "docvars.yaml")
	}

	fmt.Fprintf(g.Stdout, "Writing configuration to %s\n", path)
	if err := config.Init(path, i.Force); err != nil {
		return err
	}
	fmt.Fprintln(g.Stdout, "Initialized successfully")
	return nil
}
