package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docvars/internal/config"
	ferrors "git.home.luguber.info/inful/docvars/internal/foundation/errors"
	"git.home.luguber.info/inful/docvars/internal/plugin"
	"git.home.luguber.info/inful/docvars/internal/plugin/transforms/variables"
)

// SubstituteCmd implements the 'substitute' command: it runs the source-read
// event on one document and prints the result.
type SubstituteCmd struct {
	ReplacementFlags

	File    string `arg:"" optional:"" help:"Document to process; reads stdin when omitted or '-'"`
	DocName string `name:"docname" help:"Document name passed to handlers (default: file name without extension)"`
}

func (s *SubstituteCmd) Run(g *Global, root *CLI) error {
	cfg, err := s.config(g, root)
	if err != nil {
		return err
	}

	text, err := s.read(g)
	if err != nil {
		return err
	}

	hub := plugin.NewHub()
	if err := variables.NewVariablesTransform().Setup(hub); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryPlugin, "failed to set up variable replacements").Build()
	}

	pc := plugin.NewPluginContext(g.Context, g.Logger, cfg, nil, uuid.NewString())
	src := &plugin.Source{Text: text}
	hub.EmitSourceRead(pc, s.docName(), src)

	_, err = io.WriteString(g.Stdout, src.Text)
	return err
}

// config loads the configuration file. Without one, only --set overrides apply.
func (s *SubstituteCmd) config(g *Global, root *CLI) (*config.Config, error) {
	cfg, err := loadConfig(g, root, s.ReplacementFlags)
	if err == nil {
		return cfg, nil
	}
	if !ferrors.HasCategory(err, ferrors.CategoryNotFound) {
		return nil, err
	}

	g.Logger.Debug("No configuration file; using --set overrides only", "path", root.Config)
	cfg = config.Default()
	if err := cfg.ApplyReplacementOverrides(s.Set); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *SubstituteCmd) read(g *Global) (string, error) {
	if s.File == "" || s.File == "-" {
		data, err := io.ReadAll(g.Stdin)
		if err != nil {
			return "", ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to read stdin").Build()
		}
		return string(data), nil
	}

	data, err := os.ReadFile(s.File)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ferrors.NotFoundError(fmt.Sprintf("document not found: %s", s.File)).
				WithContext("path", s.File).
				Build()
		}
		return "", ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to read document").
			WithContext("path", s.File).
			Build()
	}
	return string(data), nil
}

func (s *SubstituteCmd) docName() string {
	if s.DocName != "" {
		return s.DocName
	}
	if s.File == "" || s.File == "-" {
		return "stdin"
	}
	base := filepath.ToSlash(s.File)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
