package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"git.home.luguber.info/inful/docvars/internal/plugin"
)

// PluginsCmd implements the 'plugins' command.
type PluginsCmd struct {
	Type string `help:"Only list plugins of this type" enum:",transform,renderer" default:""`
}

func (p *PluginsCmd) Run(g *Global, _ *CLI) error {
	reg := plugin.DefaultRegistry()
	list := reg.List()
	if p.Type != "" {
		list = reg.ListByType(plugin.PluginType(p.Type))
	}

	tw := tabwriter.NewWriter(g.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVERSION\tTYPE\tCAPABILITIES\tDESCRIPTION")
	for _, pl := range list {
		m := pl.Metadata()
		caps := strings.Join(m.Capabilities, ",")
		if caps == "" {
			caps = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", m.Name, m.Version, m.Type, caps, m.Description)
	}
	return tw.Flush()
}
