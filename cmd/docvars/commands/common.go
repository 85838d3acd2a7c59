// Package commands implements the docvars command line.
package commands

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docvars/internal/build"
	"git.home.luguber.info/inful/docvars/internal/config"
	ferrors "git.home.luguber.info/inful/docvars/internal/foundation/errors"
	"git.home.luguber.info/inful/docvars/internal/logfields"
	"git.home.luguber.info/inful/docvars/internal/notify"
	"git.home.luguber.info/inful/docvars/internal/version"

	// Plugins register themselves with the default registry.
	_ "git.home.luguber.info/inful/docvars/internal/markdown"
	_ "git.home.luguber.info/inful/docvars/internal/plugin/transforms/variables"
)

// Global carries process-wide state shared by all commands.
type Global struct {
	Context context.Context
	Logger  *slog.Logger

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"docvars.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build      BuildCmd      `cmd:"" help:"Build HTML from the source directory with replacements applied"`
	Substitute SubstituteCmd `cmd:"" help:"Print a document with replacements applied"`
	Init       InitCmd       `cmd:"" help:"Initialize a new configuration file"`
	Watch      WatchCmd      `cmd:"" help:"Rebuild whenever sources or the configuration change"`
	Plugins    PluginsCmd    `cmd:"" help:"List registered plugins"`
}

// AfterApply runs after flag parsing and installs a bootstrap logger. Commands
// replace it once the configuration is loaded.
func (c *CLI) AfterApply(g *Global) error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	g.Logger = slog.New(slog.NewTextHandler(g.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(g.Logger)
	return nil
}

// ReplacementFlags is embedded by commands that accept per-run overrides.
type ReplacementFlags struct {
	Set []string `help:"Override a replacement (TOKEN=VALUE). Repeatable; new tokens run after configured ones." placeholder:"TOKEN=VALUE" sep:"none"`
}

// loadConfig reads the configuration and switches g to the configured logger.
func loadConfig(g *Global, root *CLI, overrides ReplacementFlags) (*config.Config, error) {
	cfg, err := readConfig(root, overrides)
	if err != nil {
		return nil, err
	}
	g.Logger = configLogger(g.Stderr, cfg, root.Verbose)
	return cfg, nil
}

// readConfig loads the configuration file and applies --set overrides without
// touching shared state.
func readConfig(root *CLI, overrides ReplacementFlags) (*config.Config, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyReplacementOverrides(overrides.Set); err != nil {
		return nil, err
	}
	return cfg, nil
}

// configLogger builds the configured logger and installs it as the slog default.
func configLogger(w io.Writer, cfg *config.Config, verbose bool) *slog.Logger {
	logger := cfg.Logging.NewLogger(w, verbose)
	slog.SetDefault(logger)
	logger.Debug("Configuration loaded",
		logfields.Path(cfg.Source),
		logfields.Tokens(cfg.Replacements().Len()))
	return logger
}

// notifyOptions connects the NATS notifier when notify.enabled is set. An
// unreachable server is logged and builds run without notifications.
func notifyOptions(g *Global, cfg *config.Config) ([]build.Option, func()) {
	if !cfg.Notify.Enabled {
		return nil, func() {}
	}
	client, err := notify.NewNATSClient(cfg.Notify, g.Logger)
	if err != nil {
		g.Logger.Warn("Build notifications disabled", logfields.Error(err))
		return nil, func() {}
	}
	return []build.Option{build.WithNotifier(client)}, client.Close
}

// Execute parses args, runs the selected command and returns the process exit code.
func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cli := &CLI{}
	g := &Global{Context: ctx, Logger: slog.Default(), Stdin: stdin, Stdout: stdout, Stderr: stderr}

	exitCode := -1
	parser, err := kong.New(cli,
		kong.Name("docvars"),
		kong.Description("Replace placeholder tokens in documentation sources before rendering."),
		kong.Vars{"version": version.String()},
		kong.Bind(g),
		kong.Writers(stdout, stderr),
		kong.Exit(func(code int) {
			if exitCode < 0 {
				exitCode = code
			}
		}),
	)
	if err != nil {
		return reportError(g, false, ferrors.WrapError(err, ferrors.CategoryInternal, "failed to build command line").Build())
	}

	kctx, err := parser.Parse(args)
	if exitCode >= 0 {
		// --help or --version
		return exitCode
	}
	if err != nil {
		var parseErr *kong.ParseError
		if errors.As(err, &parseErr) {
			_ = parseErr.Context.PrintUsage(true)
		}
		return reportError(g, cli.Verbose, ferrors.WrapError(err, ferrors.CategoryValidation, "invalid arguments").Build())
	}

	if err := kctx.Run(cli); err != nil {
		return reportError(g, cli.Verbose, err)
	}
	return ferrors.ExitOK
}

func reportError(g *Global, verbose bool, err error) int {
	return ferrors.NewCLIErrorAdapter(verbose, g.Logger).WithOutput(g.Stderr).Report(err)
}
