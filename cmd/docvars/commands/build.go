package commands

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/docvars/internal/build"
	"git.home.luguber.info/inful/docvars/internal/config"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	ReplacementFlags

	Output  string `short:"o" help:"Override output.directory"`
	Workers int    `short:"j" help:"Override build.workers"`
	Clean   bool   `help:"Remove the output directory before building"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root, b.ReplacementFlags)
	if err != nil {
		return err
	}
	if err := b.applyFlags(cfg); err != nil {
		return err
	}

	notifyOpts, closeNotifier := notifyOptions(g, cfg)
	defer closeNotifier()

	builder, err := build.NewBuilder(cfg, append([]build.Option{build.WithLogger(g.Logger)}, notifyOpts...)...)
	if err != nil {
		return err
	}
	report, err := builder.Build(g.Context)
	if err != nil {
		return err
	}

	fmt.Fprintf(g.Stdout, "Built %d documents into %s (%d replacements, %s)\n",
		report.Documents, report.OutputDir, report.Replacements, report.Duration.Round(time.Millisecond))
	return nil
}

func (b *BuildCmd) applyFlags(cfg *config.Config) error {
	if b.Output != "" {
		cfg.Output.Directory = b.Output
	}
	if b.Workers != 0 {
		cfg.Build.Workers = b.Workers
	}
	if b.Clean {
		cfg.Output.Clean = true
	}
	return cfg.Validate()
}
