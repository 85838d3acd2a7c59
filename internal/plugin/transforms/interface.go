package transforms

import (
	"fmt"
	"sort"
	"sync"

	"git.home.luguber.info/inful/docvars/internal/logfields"
	"git.home.luguber.info/inful/docvars/internal/plugin"
)

// TransformStage represents when a transform should be applied.
type TransformStage string

const (
	// StagePreProcess: applied to raw source text before markdown parsing.
	StagePreProcess TransformStage = "preprocess"

	// StagePostProcess: applied to rendered output.
	StagePostProcess TransformStage = "postprocess"
)

// TransformResult represents the result of a transform operation.
type TransformResult struct {
	Content []byte

	// Skipped indicates the transform left the content alone.
	Skipped bool

	Error error
}

// TransformInput represents input to a transform.
type TransformInput struct {
	// Build is the shared build context.
	Build *plugin.PluginContext

	// DocName is the document name: relative path without extension.
	DocName string

	FilePath string

	Content []byte
}

// TransformPlugin extends the base Plugin interface with transform-specific methods.
type TransformPlugin interface {
	plugin.Plugin

	// Stage returns when this transform should be applied.
	Stage() TransformStage

	// ShouldApply returns true if the transform should apply to the given input.
	ShouldApply(input *TransformInput) bool

	// Apply executes the transform on the input.
	Apply(input *TransformInput) *TransformResult

	// Order returns the execution order within a stage (lower values execute first).
	Order() int
}

// BaseTransformPlugin provides default implementations for optional transform methods.
type BaseTransformPlugin struct {
	plugin.BasePlugin
}

// Order returns default execution order (0).
func (b *BaseTransformPlugin) Order() int {
	return 0
}

// ShouldApply returns true by default (applies to all files).
func (b *BaseTransformPlugin) ShouldApply(*TransformInput) bool {
	return true
}

// TransformRegistry holds transform plugins and runs them per stage.
type TransformRegistry struct {
	mu         sync.RWMutex
	transforms []TransformPlugin
}

// NewTransformRegistry creates a new transform registry.
func NewTransformRegistry() *TransformRegistry {
	return &TransformRegistry{}
}

// FromRegistry collects every transform plugin found in reg.
func FromRegistry(reg *plugin.Registry) (*TransformRegistry, error) {
	tr := NewTransformRegistry()
	for _, p := range reg.ListByType(plugin.PluginTypeTransform) {
		t, ok := p.(TransformPlugin)
		if !ok {
			return nil, fmt.Errorf("plugin %s does not implement TransformPlugin", p.Metadata())
		}
		if err := tr.Register(t); err != nil {
			return nil, err
		}
	}
	return tr, nil
}

// Register adds a transform plugin to the registry.
func (r *TransformRegistry) Register(transform TransformPlugin) error {
	if transform == nil {
		return fmt.Errorf("cannot register nil transform")
	}

	metadata := transform.Metadata()
	if err := metadata.Validate(); err != nil {
		return fmt.Errorf("invalid transform metadata: %w", err)
	}
	if metadata.Type != plugin.PluginTypeTransform {
		return fmt.Errorf("plugin %s has type %s, expected %s", metadata.Name, metadata.Type, plugin.PluginTypeTransform)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.transforms = append(r.transforms, transform)
	return nil
}

// ForStage returns the transforms of stage sorted by Order. Ties keep
// registration order.
func (r *TransformRegistry) ForStage(stage TransformStage) []TransformPlugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []TransformPlugin
	for _, t := range r.transforms {
		if t.Stage() == stage {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Order() < out[j].Order()
	})
	return out
}

// Apply runs the transforms of stage on input, each on the previous result.
// input is not modified.
func (r *TransformRegistry) Apply(stage TransformStage, input *TransformInput) (*TransformResult, error) {
	current := *input
	result := &TransformResult{Content: input.Content, Skipped: true}

	for _, transform := range r.ForStage(stage) {
		if !transform.ShouldApply(&current) {
			continue
		}

		trResult := transform.Apply(&current)
		if trResult == nil {
			continue
		}
		if trResult.Error != nil {
			return nil, plugin.NewPluginError(transform.Metadata().Name, string(stage), trResult.Error)
		}
		if !trResult.Skipped {
			current.Content = trResult.Content
			result.Content = trResult.Content
			result.Skipped = false
		}
	}

	return result, nil
}

// Validate runs every transform's configuration check.
func (r *TransformRegistry) Validate(pc *plugin.PluginContext) error {
	for _, t := range r.List() {
		if err := t.Validate(pc.Config); err != nil {
			return plugin.NewPluginError(t.Metadata().Name, "validate", err)
		}
	}
	return nil
}

// List returns all registered transforms in registration order.
func (r *TransformRegistry) List() []TransformPlugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]TransformPlugin, len(r.transforms))
	copy(out, r.transforms)
	return out
}

// Count returns the number of registered transforms.
func (r *TransformRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.transforms)
}

// SourceReadHandler bridges the preprocess stage onto the source-read event.
// A failing transform is logged and the document text is left as it was.
func SourceReadHandler(r *TransformRegistry) plugin.SourceReadHandler {
	return func(pc *plugin.PluginContext, docname string, src *plugin.Source) {
		if src == nil {
			return
		}
		result, err := r.Apply(StagePreProcess, &TransformInput{
			Build:   pc,
			DocName: docname,
			Content: []byte(src.Text),
		})
		if err != nil {
			pc.Log().Error("Preprocess transform failed",
				logfields.DocName(docname),
				logfields.Stage(string(StagePreProcess)),
				logfields.Error(err))
			return
		}
		if !result.Skipped {
			src.Text = string(result.Content)
		}
	}
}
