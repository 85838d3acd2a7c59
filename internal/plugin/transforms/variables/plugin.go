// Package variables replaces placeholder tokens in document source with the
// values configured under variable_replacements.
package variables

import (
	"time"

	"git.home.luguber.info/inful/docvars/internal/config"
	"git.home.luguber.info/inful/docvars/internal/logfields"
	"git.home.luguber.info/inful/docvars/internal/plugin"
	"git.home.luguber.info/inful/docvars/internal/plugin/transforms"
)

// Name is the registered plugin name.
const Name = "variable-replacements"

// VariablesTransform runs the configured replacements on every document.
type VariablesTransform struct {
	transforms.BaseTransformPlugin
}

// NewVariablesTransform creates a new variables transform plugin.
func NewVariablesTransform() *VariablesTransform {
	return &VariablesTransform{}
}

// Metadata returns the plugin metadata for the variables transform.
func (p *VariablesTransform) Metadata() plugin.PluginMetadata {
	return plugin.PluginMetadata{
		Name:        Name,
		Version:     "v1.0.0",
		Type:        plugin.PluginTypeTransform,
		Description: "Replaces placeholder tokens in document source with configured values",
		Author:      "docvars",
		Capabilities: []string{
			string(plugin.CapabilityConcurrent),
			string(plugin.CapabilityMetrics),
		},
	}
}

// Validate accepts any configuration; a missing mapping means no replacements.
func (p *VariablesTransform) Validate(*config.Config) error {
	return nil
}

// Stage returns the preprocess stage: replacements happen before parsing.
func (p *VariablesTransform) Stage() transforms.TransformStage {
	return transforms.StagePreProcess
}

// Order makes replacements run ahead of other preprocess transforms.
func (p *VariablesTransform) Order() int {
	return -100
}

// Setup connects the plugin to the source-read event.
func (p *VariablesTransform) Setup(hub *plugin.Hub) error {
	return hub.Connect(plugin.EventSourceRead, p.SourceRead)
}

// SourceRead rewrites src.Text in place using the context's mapping.
func (p *VariablesTransform) SourceRead(pc *plugin.PluginContext, docname string, src *plugin.Source) {
	if src == nil {
		return
	}

	var cfg *config.Config
	if pc != nil {
		cfg = pc.Config
	}

	start := time.Now()
	text, stats := cfg.Replacements().ApplyWithStats(src.Text)
	src.Text = text

	recorder := pc.Recorder()
	for _, c := range stats.Counts {
		recorder.AddReplacements(c.Token, c.Count)
	}

	pc.Log().Debug("Applied variable replacements",
		logfields.Plugin(Name),
		logfields.DocName(docname),
		logfields.Replacements(stats.Total()),
		logfields.DurationMS(float64(time.Since(start).Microseconds())/1000))
}

// Apply implements the transform contract on top of SourceRead.
func (p *VariablesTransform) Apply(input *transforms.TransformInput) *transforms.TransformResult {
	src := &plugin.Source{Text: string(input.Content)}
	p.SourceRead(input.Build, input.DocName, src)
	return &transforms.TransformResult{Content: []byte(src.Text)}
}

func init() {
	// Register the plugin in the global plugin registry
	if err := plugin.Register(NewVariablesTransform()); err != nil {
		_ = err
	}
}
